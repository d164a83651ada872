// Copyright (c) 2025 Shared memory implementation for GoVPS.
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

package shmem

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

// DefaultPrefix is where named regions are backed on the filesystem.
const DefaultPrefix = "/dev/shm/"

var (
	debug = strings.Contains(os.Getenv("DEBUG_GOVPS"), "shmem")

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
		logger.Debug("govps: debug level enabled for shmem")
	}
	log = logger.WithField("logger", "govps/shmem")
}

// Name derives the handle of a sensor's region. The pid makes it unique
// across client processes on one host, the owner prefix (vehicle id, or
// empty for world-fixed sensors) and sensor name across sensors, and
// the channel across a sensor's buffers, e.g. "1234..camera1.colour".
func Name(owner, sensor, channel string) string {
	return fmt.Sprintf("%d.%s.%s.%s", os.Getpid(), owner, sensor, channel)
}

// Region is one named block of shared memory. The simulator attaches to
// the same name and writes payloads into it; the client re-reads the
// mapping in place after each poll notification. A region is owned by
// the sensor session that created it and is not request-correlated.
type Region struct {
	name string
	size int

	file *os.File
	data []byte
}

// Create allocates and maps a region of exactly size bytes under the
// given name, replacing any stale backing file left by a crashed
// process.
func Create(name string, size int) (*Region, error) {
	return open(name, size, true)
}

// Open maps an existing region of the given name and size.
func Open(name string, size int) (*Region, error) {
	return open(name, size, false)
}

func open(name string, size int, create bool) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid shared memory size %d for %q", size, name)
	}
	path := DefaultPrefix + name

	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening shared memory %s: %w", path, err)
	}
	if create {
		if err := file.Truncate(int64(size)); err != nil {
			file.Close()
			return nil, fmt.Errorf("sizing shared memory %s: %w", path, err)
		}
	}

	data, err := syscall.Mmap(
		int(file.Fd()),
		0,
		size,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
	)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mapping shared memory %s: %w", path, err)
	}

	if debug {
		log.Debugf("mapped shared memory %s (%d bytes)", name, size)
	}
	return &Region{name: name, size: size, file: file, data: data}, nil
}

// Name returns the region's handle as shared with the simulator.
func (r *Region) Name() string {
	return r.name
}

// Size returns the mapped size in bytes.
func (r *Region) Size() int {
	return r.size
}

// Read copies the first n bytes of the region. Each poll re-reads from
// the start of the mapping; there is no cursor.
func (r *Region) Read(n int) ([]byte, error) {
	if r.data == nil {
		return nil, fmt.Errorf("shared memory %s is closed", r.name)
	}
	if n < 0 || n > r.size {
		return nil, fmt.Errorf("read of %d bytes out of range for %d-byte region %s", n, r.size, r.name)
	}
	out := make([]byte, n)
	copy(out, r.data[:n])
	return out, nil
}

// Write copies b to the start of the region. The simulator side is the
// usual writer; this is used by tests and local tooling.
func (r *Region) Write(b []byte) error {
	if r.data == nil {
		return fmt.Errorf("shared memory %s is closed", r.name)
	}
	if len(b) > r.size {
		return fmt.Errorf("write of %d bytes exceeds %d-byte region %s", len(b), r.size, r.name)
	}
	copy(r.data, b)
	return nil
}

// Close unmaps the region and releases the backing file. It is
// idempotent and keeps the name allocated for peers still attached.
func (r *Region) Close() error {
	if r.data != nil {
		if err := syscall.Munmap(r.data); err != nil {
			log.Debugf("failed to unmap %s: %v", r.name, err)
		}
		r.data = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			log.Debugf("failed to close backing file of %s: %v", r.name, err)
		}
		r.file = nil
	}
	return nil
}

// Unlink removes the backing file so the name can be reused. The owner
// calls it once the simulator side has released its counterpart.
func (r *Region) Unlink() error {
	if err := os.Remove(DefaultPrefix + r.name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlinking shared memory %s: %w", r.name, err)
	}
	return nil
}
