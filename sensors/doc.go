// Copyright (c) 2025 Sensor session implementation for GoVPS.
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

// Package sensors implements sensor sessions on top of the correlated
// connection protocol.
//
// A session owns its sensor's shared-memory regions for the zero-copy
// data path (camera image channels, LiDAR point clouds) and falls back
// to buffers embedded in the poll reply when shared memory is disabled
// or the simulator runs on another host. Results are typed buffers
// rather than raw message maps; only this layer knows the shape of a
// sensor's payload.
package sensors
