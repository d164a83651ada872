// Copyright (c) 2025 Managed socket implementation for GoVPS.
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

// Package sockmgr multiplexes several framed sockets through one
// explicitly-lifetimed manager.
//
// The Manager owns the background I/O goroutines shared by all of its
// sockets. It starts on the first Add and stops once the last socket is
// removed; there is no implicit process-wide state, so a program can
// run several managers with independent lifetimes. Add and Remove are
// safe to call from any goroutine.
//
// Each AsyncSocket offers blocking Send/Recv for synchronous call sites
// and SendCtx/RecvCtx for callers that need cancellation, both backed
// by the same transport and the same wire framing as package socket.
package sockmgr
