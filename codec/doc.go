// Copyright (c) 2025 Message codec implementation for GoVPS.
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

// Package codec serializes protocol messages for the simulator API.
//
// The wire representation is MessagePack. A message is a string-keyed map
// whose values are numbers, strings, booleans, raw byte buffers and nested
// maps/sequences. On decode, byte values holding valid UTF-8 text are
// presented as strings; this is a one-way convenience for callers, not
// part of the wire contract.
package codec
