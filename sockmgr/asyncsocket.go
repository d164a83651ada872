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
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

const (
	headerBytes       = 4
	defaultBufferSize = 4096
)

type sendRequest struct {
	payload []byte
	done    chan error
}

type recvResult struct {
	payload []byte
	err     error
}

// AsyncSocket is a framed socket whose I/O runs on the manager's
// background goroutines. The framing is identical to package socket:
// 4-byte big-endian length prefix plus payload. Blocking Send/Recv and
// context-aware SendCtx/RecvCtx are both served by the same underlying
// transport, so synchronous and asynchronous call sites can share one
// socket.
type AsyncSocket struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	sendCh chan sendRequest
	recvCh chan recvResult
	quit   chan struct{}

	closeOnce sync.Once
}

func newAsyncSocket(conn net.Conn, wg *sync.WaitGroup) *AsyncSocket {
	s := &AsyncSocket{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, defaultBufferSize),
		writer: bufio.NewWriterSize(conn, defaultBufferSize),
		sendCh: make(chan sendRequest),
		recvCh: make(chan recvResult),
		quit:   make(chan struct{}),
	}
	wg.Add(2)
	go s.writerLoop(wg)
	go s.readerLoop(wg)
	return s
}

// LocalAddr returns the local address of the underlying connection.
func (s *AsyncSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *AsyncSocket) writerLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	defer log.Debug("writer loop done")

	for {
		select {
		case <-s.quit:
			return
		case req := <-s.sendCh:
			req.done <- s.writeFrame(req.payload)
		}
	}
}

func (s *AsyncSocket) readerLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	defer log.Debug("reader loop done")

	for {
		payload, err := s.readFrame()
		select {
		case <-s.quit:
			return
		case s.recvCh <- recvResult{payload: payload, err: err}:
		}
		if err != nil {
			return
		}
	}
}

func (s *AsyncSocket) writeFrame(payload []byte) error {
	var header [headerBytes]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := s.writer.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := s.writer.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flushing frame: %w", err)
	}
	return nil
}

func (s *AsyncSocket) readFrame() ([]byte, error) {
	var header [headerBytes]byte
	if _, err := io.ReadFull(s.reader, header[:]); err != nil {
		return nil, fmt.Errorf("reading frame header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return []byte{}, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(s.reader, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return payload, nil
}

// Send writes one frame, blocking until the background writer has
// flushed it or failed.
func (s *AsyncSocket) Send(payload []byte) error {
	return s.SendCtx(context.Background(), payload)
}

// SendCtx is Send with cancellation.
func (s *AsyncSocket) SendCtx(ctx context.Context, payload []byte) error {
	req := sendRequest{payload: payload, done: make(chan error, 1)}
	select {
	case <-s.quit:
		return net.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.sendCh <- req:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.done:
		return err
	}
}

// Recv blocks until the background reader delivers the next frame.
func (s *AsyncSocket) Recv() ([]byte, error) {
	return s.RecvCtx(context.Background())
}

// RecvCtx is Recv with cancellation. A cancelled wait leaves the frame
// for the next caller.
func (s *AsyncSocket) RecvCtx(ctx context.Context) ([]byte, error) {
	select {
	case <-s.quit:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-s.recvCh:
		return res.payload, res.err
	}
}

func (s *AsyncSocket) close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		err = s.conn.Close()
	})
	return err
}
