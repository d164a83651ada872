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
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a mock simulator endpoint and hands accepted
// connections to the given handler.
func startServer(t *testing.T, handler func(conn net.Conn)) string {
	t.Helper()
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go handler(conn)
		}
	}()
	return listener.Addr().String()
}

// echoFrames reads frames and writes them back unchanged.
func echoFrames(conn net.Conn) {
	defer conn.Close()
	for {
		var header [HeaderBytes]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		length := binary.BigEndian.Uint32(header[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		conn.Write(header[:])
		conn.Write(payload)
	}
}

func testOptions() *Options {
	return &Options{
		ConnectAttempts:   1,
		ConnectRetryDelay: 10 * time.Millisecond,
		ConnectTimeout:    time.Second,
		ReconnectAttempts: 3,
		LogAttempts:       false,
	}
}

func TestFrameRoundTrip(t *testing.T) {
	addr := startServer(t, echoFrames)

	sock, err := Dial(addr, testOptions())
	require.NoError(t, err)
	defer sock.Close()

	payload := []byte("the quick brown fox")
	require.NoError(t, sock.Send(payload))

	got, err := sock.Recv()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRecvChunkedDelivery(t *testing.T) {
	payload := []byte("delivered one byte at a time")

	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		var header [HeaderBytes]byte
		binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
		frame := append(header[:], payload...)
		// dribble the frame across many writes, splitting both the
		// header and the payload at arbitrary boundaries
		for _, b := range frame {
			conn.Write([]byte{b})
			time.Sleep(time.Millisecond)
		}
	})

	sock, err := Dial(addr, testOptions())
	require.NoError(t, err)
	defer sock.Close()

	got, err := sock.Recv()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRecvZeroLengthFrame(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		var header [HeaderBytes]byte
		conn.Write(header[:]) // length 0
		// follow up with a regular frame to prove the stream is not
		// desynchronized
		binary.BigEndian.PutUint32(header[:], 2)
		conn.Write(header[:])
		conn.Write([]byte("ok"))
	})

	sock, err := Dial(addr, testOptions())
	require.NoError(t, err)
	defer sock.Close()

	got, err := sock.Recv()
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = sock.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
}

func TestRecvRejectsAbsurdLength(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		var header [HeaderBytes]byte
		binary.BigEndian.PutUint32(header[:], 1<<30)
		conn.Write(header[:])
	})

	opts := testOptions()
	opts.MaxFrameSize = 1024
	sock, err := Dial(addr, opts)
	require.NoError(t, err)
	defer sock.Close()

	_, err = sock.Recv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, IsTransportError(err))
}

func TestDialFailureExhaustsAttempts(t *testing.T) {
	opts := testOptions()
	opts.ConnectAttempts = 2
	opts.ConnectTimeout = 100 * time.Millisecond

	start := time.Now()
	_, err := Dial("localhost:1", opts)
	require.Error(t, err)
	// one retry delay between the two attempts
	assert.GreaterOrEqual(t, time.Since(start), opts.ConnectRetryDelay)
}

func TestReconnectPreservesAddress(t *testing.T) {
	addr := startServer(t, echoFrames)

	sock, err := Dial(addr, testOptions())
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, sock.Reconnect())
	assert.Equal(t, addr, sock.RemoteAddr())

	payload := []byte("still works")
	require.NoError(t, sock.Send(payload))
	got, err := sock.Recv()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCloseIdempotent(t *testing.T) {
	addr := startServer(t, echoFrames)

	sock, err := Dial(addr, testOptions())
	require.NoError(t, err)

	require.NoError(t, sock.Close())
	require.NoError(t, sock.Close())

	assert.ErrorIs(t, sock.Send([]byte("x")), ErrClosed)
	_, err = sock.Recv()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIsTransportError(t *testing.T) {
	assert.False(t, IsTransportError(nil))
	assert.True(t, IsTransportError(io.EOF))
	assert.True(t, IsTransportError(io.ErrUnexpectedEOF))
	assert.True(t, IsTransportError(net.ErrClosed))
	assert.True(t, IsTransportError(ErrClosed))
	assert.False(t, IsTransportError(ErrTooLarge))
}
