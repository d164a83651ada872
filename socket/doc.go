// Copyright (c) 2025 Framed TCP socket implementation for GoVPS.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package socket provides the framed TCP channel of the simulator protocol.
//
// # Wire format
//
// Each frame is a 4-byte big-endian unsigned length prefix followed by
// exactly that many payload bytes. A reader never interprets payload
// bytes before the whole prefix is in hand, and loops over short reads
// until the declared length is satisfied. TCP_NODELAY is set on every
// connection so small control messages are not delayed.
//
// # Reconnect
//
// A Socket caches its remote address. After a mid-session transport
// failure, Reconnect substitutes a fresh connection in place: the first
// retry is immediate, later retries pause half a second, up to a
// configurable attempt ceiling. Requests whose replies were lost with
// the old connection are never answered; that is a documented property
// of the protocol, not something this layer hides.
package socket
