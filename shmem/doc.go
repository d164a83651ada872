// Copyright (c) 2025 Shared memory implementation for GoVPS.
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

// Package shmem provides the zero-copy data path for high-volume
// sensor payloads.
//
// A sensor session allocates a named region sized for its payload (for
// example width*height*4 bytes for an RGBA image) and sends the name
// and size to the simulator in the sensor's open request. Each poll is
// then a small socket round-trip signalling that data is ready, after
// which the client reads the mapping directly. Regions only work for
// simulator and client on the same host; every sensor that uses one
// also supports a pure-socket fallback carrying the payload in the
// poll reply.
package shmem
