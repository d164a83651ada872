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

package connection

import (
	"errors"
	"fmt"
)

// ErrProtocol indicates a reply that violates the wire protocol: it
// could not be decoded, or lacks the correlation id every correlated
// reply must echo. Protocol errors are fatal and never retried; they
// point at client/simulator version skew or data corruption.
var ErrProtocol = errors.New("protocol error")

// ErrDisconnected is returned for requests issued while no socket is
// attached to the connection.
var ErrDisconnected = errors.New("not connected to the simulator")

// MismatchError is returned by the Hello handshake when the client and
// simulator disagree on the protocol version. It names both versions so
// the operator knows which side to upgrade.
type MismatchError struct {
	Client string
	Server string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("mismatching protocol versions: client has %s, simulator has %s; upgrade the outdated side", e.Client, e.Server)
}

// TypeError is returned when a reply's type does not match the one the
// caller expected. It means the simulator answered the wrong logical
// request; the call fails but the connection itself stays usable.
type TypeError struct {
	Got  string
	Want string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("got message type %q but expected %q", e.Got, e.Want)
}

// RemoteError is an error the simulator embedded in a reply in place of
// a result.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("simulator error: %s", e.Message)
}

// RemoteValueError is a value error the simulator embedded in a reply,
// typically rejecting one of the request's arguments.
type RemoteValueError struct {
	Message string
}

func (e *RemoteValueError) Error() string {
	return fmt.Sprintf("simulator value error: %s", e.Message)
}
