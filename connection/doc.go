// Copyright (c) 2025 Correlated connection implementation for GoVPS.
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

// Package connection multiplexes request/reply traffic on one framed socket.
//
// # Correlation
//
// Every outbound message gains a hidden _id field, assigned from a
// per-connection counter that starts at 0 and only ever increases. The
// simulator may finish processing requests in any order, so replies can
// arrive interleaved; a reply whose id does not match the one currently
// awaited is cached until its own caller asks for it. Each caller's
// Recv therefore only ever observes the reply to its own request.
//
// # Handshake
//
// The first exchange on every new socket is Hello/Hello carrying the
// protocol version of each side. A mismatch is fatal and reported with
// both version strings.
//
// # Failure semantics
//
// Transport failures during Send trigger one transparent reconnect and
// resend. Protocol violations (undecodable reply, missing _id, wrong
// reply type, version mismatch) are never retried. Errors the simulator
// embeds in a reply body surface as RemoteError or RemoteValueError
// instead of a message.
package connection
