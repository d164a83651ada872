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
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vps-sim/govps/codec"
	"github.com/vps-sim/govps/socket"
)

// ProtocolVersion is the protocol version this client speaks. It is
// exchanged in the Hello handshake and must match the simulator's.
const ProtocolVersion = "v1.23"

const (
	idKey      = "_id"
	typeKey    = "type"
	resultKey  = "result"
	versionKey = "protocolVersion"

	// Remote-reported error keys the simulator may embed in a reply.
	errKey      = "error"
	valueErrKey = "valueError"
)

var (
	debug = strings.Contains(os.Getenv("DEBUG_GOVPS"), "connection")

	log logrus.FieldLogger
)

// SetLogger sets global logger.
func SetLogger(logger logrus.FieldLogger) {
	log = logger
}

func init() {
	logger := logrus.New()
	if debug {
		logger.Level = logrus.DebugLevel
		logger.Debug("govps: debug level enabled for connection")
	}
	log = logger.WithField("logger", "govps/connection")
}

// result is one demultiplexed reply: either a message or the local
// error the simulator's embedded error indicator was mapped to.
type result struct {
	msg codec.Message
	err error
}

// Connection correlates requests and replies on one framed socket. Every
// outbound message is tagged with a monotonically increasing id; inbound
// replies echo it, and replies arriving ahead of their caller are cached
// until the matching Recv.
type Connection struct {
	sock *socket.Socket

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]result
}

// New wraps an established socket in a correlated connection. The id
// counter starts at 0 and the pending cache is empty.
func New(sock *socket.Socket) *Connection {
	return &Connection{
		sock:    sock,
		pending: make(map[uint64]result),
	}
}

// Response associates a request id with the connection that issued it.
// It is consumed by exactly one Recv or Ack call; discarding it leaves
// no dangling resource.
type Response struct {
	conn *Connection
	id   uint64
}

// ID returns the correlation id assigned to the request.
func (r *Response) ID() uint64 {
	return r.id
}

// Send tags data with a fresh correlation id, encodes it and writes it
// as one frame. On a transport error the connection reconnects and
// retries the send exactly once; replies to requests that were in
// flight on the old socket are lost. The returned Response is the
// handle for receiving the reply.
func (c *Connection) Send(data codec.Message) (*Response, error) {
	if c.sock == nil {
		return nil, ErrDisconnected
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	data[idKey] = id
	if debug {
		log.Debugf("sending %v", data)
	}
	packed, err := codec.Marshal(data)
	if err != nil {
		return nil, err
	}

	if err := c.sock.Send(packed); err != nil {
		if !socket.IsTransportError(err) {
			return nil, err
		}
		if err := c.Reconnect(); err != nil {
			return nil, err
		}
		if err := c.sock.Send(packed); err != nil {
			return nil, err
		}
	}
	return &Response{conn: c, id: id}, nil
}

// Reconnect re-establishes the transport to the cached address and
// performs the handshake again. The id counter and pending cache
// survive the swap, but replies lost with the old socket stay lost.
func (c *Connection) Reconnect() error {
	if c.sock == nil {
		return ErrDisconnected
	}
	if err := c.sock.Reconnect(); err != nil {
		return err
	}
	return c.Hello()
}

// recv returns the reply with the given id, draining frames from the
// socket until it appears. Replies for other ids read along the way are
// cached for their own callers. The wait is unbounded; bounded waiting
// must be imposed externally.
func (c *Connection) recv(id uint64) (codec.Message, error) {
	c.mu.Lock()
	if res, ok := c.pending[id]; ok {
		delete(c.pending, id)
		c.mu.Unlock()
		return res.msg, res.err
	}
	c.mu.Unlock()

	if c.sock == nil {
		return nil, ErrDisconnected
	}

	for {
		payload, err := c.sock.Recv()
		if err != nil {
			return nil, err
		}
		msg, err := codec.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if debug {
			log.Debugf("received %v", msg)
		}

		gotID, ok := msg.Int(idKey)
		if !ok {
			return nil, fmt.Errorf("%w: reply carries no correlation id, the simulator version is incompatible with this client", ErrProtocol)
		}
		delete(msg, idKey)

		res := result{msg: msg}
		if text, ok := msg.String(errKey); ok {
			res = result{err: &RemoteError{Message: text}}
		} else if text, ok := msg.String(valueErrKey); ok {
			res = result{err: &RemoteValueError{Message: text}}
		}

		if uint64(gotID) == id {
			return res.msg, res.err
		}
		c.mu.Lock()
		c.pending[uint64(gotID)] = res
		c.mu.Unlock()
	}
}

// Recv returns the reply matching this response's request. If
// expectedType is non-empty and the reply's type differs, a TypeError
// is returned; the reply is still consumed.
func (r *Response) Recv(expectedType string) (codec.Message, error) {
	msg, err := r.conn.recv(r.id)
	if err != nil {
		return nil, err
	}
	if expectedType != "" {
		if got, _ := msg.String(typeKey); got != expectedType {
			return nil, &TypeError{Got: got, Want: expectedType}
		}
	}
	return msg, nil
}

// Ack consumes the reply and verifies it is the expected acknowledgment
// type, discarding the payload.
func (r *Response) Ack(ackType string) error {
	msg, err := r.conn.recv(r.id)
	if err != nil {
		return err
	}
	if got, _ := msg.String(typeKey); got != ackType {
		return &TypeError{Got: got, Want: ackType}
	}
	return nil
}

// Message sends a request of the given type with the given fields and
// blocks for its reply, which must carry the same type. The reply's
// result field is returned, or nil if the reply has none.
func (c *Connection) Message(req string, fields codec.Message) (any, error) {
	if fields == nil {
		fields = codec.Message{}
	}
	fields[typeKey] = req

	resp, err := c.Send(fields)
	if err != nil {
		return nil, err
	}
	msg, err := resp.Recv(req)
	if err != nil {
		return nil, err
	}
	return msg[resultKey], nil
}

// Hello performs the protocol-version handshake. It must be the first
// exchange on every new socket, before any other traffic is considered
// valid; a version mismatch is fatal and not retryable.
func (c *Connection) Hello() error {
	resp, err := c.Send(codec.Message{
		typeKey:    "Hello",
		versionKey: ProtocolVersion,
	})
	if err != nil {
		return err
	}
	msg, err := resp.Recv("Hello")
	if err != nil {
		return err
	}
	server, _ := msg.String(versionKey)
	if server != ProtocolVersion {
		return &MismatchError{Client: ProtocolVersion, Server: server}
	}
	log.Info("successfully connected to the simulator")
	return nil
}

// PendingCount reports how many replies are cached for callers that
// have not collected them yet.
func (c *Connection) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close releases the underlying socket. Cached replies stay readable
// until the connection is garbage collected.
func (c *Connection) Close() error {
	if c.sock == nil {
		return nil
	}
	return c.sock.Close()
}
