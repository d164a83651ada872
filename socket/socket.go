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

package socket

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// HeaderBytes is the width of the big-endian length prefix.
	HeaderBytes = 4
	// DefaultMaxFrameSize caps how large a declared frame may be before
	// it is treated as protocol corruption. Camera payloads on the
	// socket fallback path can reach tens of megabytes.
	DefaultMaxFrameSize = 256 * 1024 * 1024
	// DefaultConnectAttempts is the default connect retry budget.
	DefaultConnectAttempts = 25
	// DefaultReconnectAttempts bounds the reconnect loop. The source
	// protocol retried forever; a ceiling is deliberate here so a dead
	// simulator surfaces as an error instead of a hang.
	DefaultReconnectAttempts = 5
)

var (
	// DefaultConnectRetryDelay is the pause between connect attempts.
	DefaultConnectRetryDelay = 5 * time.Second
	// DefaultReconnectRetryDelay is the pause between reconnect attempts
	// after the first (the first retry happens immediately).
	DefaultReconnectRetryDelay = 500 * time.Millisecond
)

const defaultBufferSize = 4096

var (
	debug = strings.Contains(os.Getenv("DEBUG_GOVPS"), "socket")

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
		logger.Debug("govps: debug level enabled for socket")
	}
	log = logger.WithField("logger", "govps/socket")
}

// ErrTooLarge is returned when a frame declares a length beyond the
// configured maximum. It indicates corruption or a misbehaving peer and
// is never retried.
var ErrTooLarge = errors.New("frame length exceeds maximum")

// ErrClosed is returned for operations on a closed socket.
var ErrClosed = errors.New("socket is closed")

// Options configures connect and reconnect behavior of a Socket.
type Options struct {
	// ConnectAttempts is the number of initial dial attempts.
	ConnectAttempts int
	// ConnectRetryDelay is the pause between initial dial attempts.
	ConnectRetryDelay time.Duration
	// ConnectTimeout bounds each individual dial.
	ConnectTimeout time.Duration
	// ReconnectAttempts bounds the reconnect loop after a mid-session
	// transport failure. Zero means DefaultReconnectAttempts.
	ReconnectAttempts int
	// MaxFrameSize caps the declared length of inbound frames.
	MaxFrameSize uint32
	// LogAttempts enables per-attempt connect logging.
	LogAttempts bool
}

func (o *Options) withDefaults() Options {
	opts := Options{LogAttempts: true}
	if o != nil {
		opts = *o
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = DefaultConnectAttempts
	}
	if opts.ConnectRetryDelay <= 0 {
		opts.ConnectRetryDelay = DefaultConnectRetryDelay
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = DefaultReconnectAttempts
	}
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	return opts
}

// Socket turns a TCP byte stream into a sequence of length-prefixed
// frames. It caches its remote address so the connection can be
// re-established in place after a transport failure.
type Socket struct {
	addr string
	opts Options

	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	sendMu sync.Mutex
	recvMu sync.Mutex
	connMu sync.Mutex
}

// Dial opens a framed socket to addr ("host:port"), retrying per opts.
// The connection has TCP_NODELAY set so small control messages are not
// delayed by output buffering.
func Dial(addr string, opts *Options) (*Socket, error) {
	s := &Socket{
		addr: addr,
		opts: opts.withDefaults(),
	}

	tries := s.opts.ConnectAttempts
	for {
		err := s.connect()
		if err == nil {
			return s, nil
		}
		tries--
		if s.opts.LogAttempts {
			log.WithError(err).Errorf("connecting to simulator at %s failed, %d tries left", addr, tries)
		}
		if tries <= 0 {
			return nil, fmt.Errorf("connecting to %s: %w", addr, err)
		}
		time.Sleep(s.opts.ConnectRetryDelay)
	}
}

func (s *Socket) connect() error {
	dialer := &net.Dialer{Timeout: s.opts.ConnectTimeout}
	conn, err := dialer.Dial("tcp", s.addr)
	if err != nil {
		return err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			log.Debugf("failed to set TCP_NODELAY: %v", err)
		}
	}

	s.connMu.Lock()
	s.conn = conn
	s.reader = bufio.NewReaderSize(conn, defaultBufferSize)
	s.writer = bufio.NewWriterSize(conn, defaultBufferSize)
	s.connMu.Unlock()

	if debug {
		log.Debugf("connected to %v (local addr: %v)", conn.RemoteAddr(), conn.LocalAddr())
	}
	return nil
}

// RemoteAddr returns the configured remote address.
func (s *Socket) RemoteAddr() string {
	return s.addr
}

// Send writes one frame: a 4-byte big-endian length prefix followed by
// the payload. The buffered writer is flushed before returning, so a nil
// error means the whole frame was handed to the kernel.
func (s *Socket) Send(payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.connMu.Lock()
	writer := s.writer
	s.connMu.Unlock()
	if writer == nil {
		return ErrClosed
	}

	var header [HeaderBytes]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := writer.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := writer.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flushing frame: %w", err)
	}

	if debug {
		log.Debugf("sent frame (%d bytes)", len(payload))
	}
	return nil
}

// Recv reads one frame and returns its payload. Short reads are looped
// until the declared length is satisfied; a declared length beyond the
// configured maximum returns ErrTooLarge. A zero-length frame yields an
// empty payload.
func (s *Socket) Recv() ([]byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	s.connMu.Lock()
	reader := s.reader
	s.connMu.Unlock()
	if reader == nil {
		return nil, ErrClosed
	}

	var header [HeaderBytes]byte
	if _, err := io.ReadFull(reader, header[:]); err != nil {
		return nil, fmt.Errorf("reading frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > s.opts.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, length, s.opts.MaxFrameSize)
	}
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}

	if debug {
		log.Debugf("received frame (%d bytes)", length)
	}
	return payload, nil
}

// Reconnect discards the current connection and re-establishes one to
// the cached address. The first retry happens immediately, later ones
// after DefaultReconnectRetryDelay, up to the configured attempt
// ceiling. Replies to requests that were in flight on the old socket
// are lost; callers blocked on them will not be answered.
func (s *Socket) Reconnect() error {
	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
		s.reader = nil
		s.writer = nil
	}
	s.connMu.Unlock()

	sleep := time.Duration(0)
	tries := s.opts.ReconnectAttempts
	for {
		time.Sleep(sleep)
		err := s.connect()
		if err == nil {
			return nil
		}
		sleep = DefaultReconnectRetryDelay
		tries--
		log.WithError(err).Errorf("reconnecting to %s failed, %d tries left", s.addr, tries)
		if tries <= 0 {
			return fmt.Errorf("reconnecting to %s: %w", s.addr, err)
		}
	}
}

// Close releases the underlying connection. It is idempotent.
func (s *Socket) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	s.writer = nil
	return err
}

// IsTransportError reports whether err is a socket-level failure that a
// reconnect may heal, as opposed to a protocol-level error.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTooLarge) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClosed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
