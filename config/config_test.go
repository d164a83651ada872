// Copyright (c) 2025 Client configuration implementation for GoVPS.
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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:25252", cfg.Addr())
	assert.Equal(t, 25, cfg.Transport.ConnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.Transport.ConnectRetryDelay.Std())
	assert.True(t, cfg.Transport.SharedMemory)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	content := `
simulator:
  host: simhost
  port: 4711
transport:
  connect_attempts: 3
  connect_retry_delay: 250ms
  reconnect_attempts: 2
  max_frame_size: 1048576
  shared_memory: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "simhost:4711", cfg.Addr())
	assert.Equal(t, 3, cfg.Transport.ConnectAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Transport.ConnectRetryDelay.Std())
	assert.Equal(t, 2, cfg.Transport.ReconnectAttempts)
	assert.Equal(t, uint32(1048576), cfg.Transport.MaxFrameSize)
	assert.False(t, cfg.Transport.SharedMemory)
}

func TestLoadPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulator:\n  host: remote\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "remote", cfg.Simulator.Host)
	assert.Equal(t, 25252, cfg.Simulator.Port)
	assert.Equal(t, 25, cfg.Transport.ConnectAttempts)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  connect_retry_delay: nonsense\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\t not yaml ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
