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
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	debug = strings.Contains(os.Getenv("DEBUG_GOVPS"), "sockmgr")

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
		logger.Debug("govps: debug level enabled for sockmgr")
	}
	log = logger.WithField("logger", "govps/sockmgr")
}

// DefaultDialTimeout bounds each dial performed by Add.
var DefaultDialTimeout = 3 * time.Second

// Manager owns the background I/O machinery shared by a set of managed
// sockets. The machinery starts lazily on the first Add and is torn
// down when the last socket is removed. Add and Remove may be called
// from any goroutine; registry mutations and lifecycle decisions are
// serialized internally.
type Manager struct {
	mu      sync.Mutex
	socks   map[*AsyncSocket]struct{}
	running bool
	wg      sync.WaitGroup

	dialTimeout time.Duration
}

// NewManager returns a manager with no live sockets. The background
// machinery is not started until the first Add.
func NewManager() *Manager {
	return &Manager{
		socks:       make(map[*AsyncSocket]struct{}),
		dialTimeout: DefaultDialTimeout,
	}
}

// SetDialTimeout sets the per-dial timeout used by Add.
func (m *Manager) SetDialTimeout(t time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialTimeout = t
}

// Add opens a new managed socket to addr and registers it. The first
// successful Add starts the manager; a failed first Add leaves it
// stopped.
func (m *Manager) Add(addr string) (*AsyncSocket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		m.running = true
		log.Debug("socket manager started")
	}

	dialer := &net.Dialer{Timeout: m.dialTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		if len(m.socks) == 0 {
			m.running = false
			log.Debug("socket manager stopped")
		}
		return nil, fmt.Errorf("adding connection to %s: %w", addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			log.Debugf("failed to set TCP_NODELAY: %v", err)
		}
	}

	sock := newAsyncSocket(conn, &m.wg)
	m.socks[sock] = struct{}{}
	if debug {
		log.Debugf("added managed socket to %s (%d live)", addr, len(m.socks))
	}
	return sock, nil
}

// Remove closes the socket and deregisters it. Removing the last socket
// stops the manager and waits for all its I/O goroutines to finish.
func (m *Manager) Remove(sock *AsyncSocket) error {
	m.mu.Lock()
	if _, ok := m.socks[sock]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("socket is not managed by this manager")
	}
	delete(m.socks, sock)
	last := len(m.socks) == 0
	m.mu.Unlock()

	err := sock.close()
	if last {
		m.wg.Wait()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		log.Debug("socket manager stopped")
	}
	return err
}

// Running reports whether the background machinery is live.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Active returns the number of registered sockets.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.socks)
}
