// Copyright (c) 2025 Client entry points for GoVPS.
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

// Package govps is a client for controlling a running vehicle-physics
// simulator over its MessagePack control protocol.
package govps

import (
	"fmt"

	"github.com/vps-sim/govps/config"
	"github.com/vps-sim/govps/connection"
	"github.com/vps-sim/govps/socket"
)

// Connect dials the simulator's control endpoint and performs the
// Hello handshake. This call blocks until the simulator is connected,
// the connect retry budget is exhausted, or the handshake fails.
//
// The same entry point serves per-vehicle connections; each vehicle
// exposes its own port and every connection handshakes independently.
func Connect(host string, port int) (*connection.Connection, error) {
	return connect(fmt.Sprintf("%s:%d", host, port), nil)
}

// ConnectConfig is Connect driven by a loaded configuration.
func ConnectConfig(cfg *config.Config) (*connection.Connection, error) {
	opts := &socket.Options{
		ConnectAttempts:   cfg.Transport.ConnectAttempts,
		ConnectRetryDelay: cfg.Transport.ConnectRetryDelay.Std(),
		ReconnectAttempts: cfg.Transport.ReconnectAttempts,
		MaxFrameSize:      cfg.Transport.MaxFrameSize,
		LogAttempts:       true,
	}
	return connect(cfg.Addr(), opts)
}

func connect(addr string, opts *socket.Options) (*connection.Connection, error) {
	sock, err := socket.Dial(addr, opts)
	if err != nil {
		return nil, err
	}
	conn := connection.New(sock)
	if err := conn.Hello(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
