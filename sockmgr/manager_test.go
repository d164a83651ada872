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

package sockmgr

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T) string {
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
			go func() {
				defer conn.Close()
				for {
					var header [headerBytes]byte
					if _, err := io.ReadFull(conn, header[:]); err != nil {
						return
					}
					payload := make([]byte, binary.BigEndian.Uint32(header[:]))
					if _, err := io.ReadFull(conn, payload); err != nil {
						return
					}
					conn.Write(header[:])
					conn.Write(payload)
				}
			}()
		}
	}()
	return listener.Addr().String()
}

func TestManagerLifecycle(t *testing.T) {
	addr := startEchoServer(t)
	mgr := NewManager()
	assert.False(t, mgr.Running())

	// starts on first add
	sockA, err := mgr.Add(addr)
	require.NoError(t, err)
	assert.True(t, mgr.Running())
	assert.Equal(t, 1, mgr.Active())

	sockB, err := mgr.Add(addr)
	require.NoError(t, err)
	assert.Equal(t, 2, mgr.Active())

	// stays running until the last socket is removed
	require.NoError(t, mgr.Remove(sockA))
	assert.True(t, mgr.Running())

	require.NoError(t, mgr.Remove(sockB))
	assert.False(t, mgr.Running())
	assert.Equal(t, 0, mgr.Active())
}

func TestManagerFailedFirstAddStaysStopped(t *testing.T) {
	mgr := NewManager()
	mgr.SetDialTimeout(100 * time.Millisecond)

	_, err := mgr.Add("localhost:1")
	require.Error(t, err)
	assert.False(t, mgr.Running())
	assert.Equal(t, 0, mgr.Active())
}

func TestManagerRemoveUnknownSocket(t *testing.T) {
	addr := startEchoServer(t)
	mgrA := NewManager()
	mgrB := NewManager()

	sock, err := mgrA.Add(addr)
	require.NoError(t, err)
	defer mgrA.Remove(sock)

	assert.Error(t, mgrB.Remove(sock))
}

func TestAsyncSocketRoundTrip(t *testing.T) {
	addr := startEchoServer(t)
	mgr := NewManager()

	sock, err := mgr.Add(addr)
	require.NoError(t, err)
	defer mgr.Remove(sock)

	payload := []byte("hello over the managed socket")
	require.NoError(t, sock.Send(payload))

	got, err := sock.Recv()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestAsyncSocketConcurrentSenders(t *testing.T) {
	addr := startEchoServer(t)
	mgr := NewManager()

	sock, err := mgr.Add(addr)
	require.NoError(t, err)
	defer mgr.Remove(sock)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sock.Send([]byte("ping")))
		}()
	}
	wg.Wait()

	// frames are never interleaved mid-write, so every echo comes
	// back intact
	for i := 0; i < n; i++ {
		got, err := sock.Recv()
		require.NoError(t, err)
		assert.Equal(t, []byte("ping"), got)
	}
}

func TestAsyncSocketRecvCtxCancel(t *testing.T) {
	addr := startEchoServer(t)
	mgr := NewManager()

	sock, err := mgr.Add(addr)
	require.NoError(t, err)
	defer mgr.Remove(sock)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = sock.RecvCtx(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the socket is still usable after a cancelled wait
	require.NoError(t, sock.Send([]byte("after cancel")))
	got, err := sock.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("after cancel"), got)
}

func TestAsyncSocketClosedOperations(t *testing.T) {
	addr := startEchoServer(t)
	mgr := NewManager()

	sock, err := mgr.Add(addr)
	require.NoError(t, err)
	require.NoError(t, mgr.Remove(sock))

	assert.ErrorIs(t, sock.Send([]byte("x")), net.ErrClosed)
	_, err = sock.Recv()
	assert.ErrorIs(t, err, net.ErrClosed)
}
