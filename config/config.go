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

// Package config loads client configuration for connecting to the
// simulator.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the client-side connection configuration.
type Config struct {
	Simulator SimulatorConfig `yaml:"simulator"`
	Transport TransportConfig `yaml:"transport"`
}

// SimulatorConfig locates the simulator's control endpoint.
type SimulatorConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TransportConfig tunes the socket layer.
type TransportConfig struct {
	// ConnectAttempts is the initial dial retry budget.
	ConnectAttempts int `yaml:"connect_attempts"`
	// ConnectRetryDelay is the pause between dial attempts, e.g. "5s".
	ConnectRetryDelay Duration `yaml:"connect_retry_delay"`
	// ReconnectAttempts bounds the mid-session reconnect loop.
	ReconnectAttempts int `yaml:"reconnect_attempts"`
	// MaxFrameSize caps inbound frame lengths in bytes.
	MaxFrameSize uint32 `yaml:"max_frame_size"`
	// SharedMemory enables the zero-copy sensor path. Disable when the
	// simulator runs on another machine.
	SharedMemory bool `yaml:"shared_memory"`
}

// Addr returns the simulator endpoint as "host:port".
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Simulator.Host, c.Simulator.Port)
}

// Load reads a YAML config from path, falling back to defaults when no
// file exists there.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		cfg := Default()
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present: a
// local simulator on the standard control port with shared memory
// enabled.
func Default() Config {
	return Config{
		Simulator: SimulatorConfig{
			Host: "localhost",
			Port: 25252,
		},
		Transport: TransportConfig{
			ConnectAttempts:   25,
			ConnectRetryDelay: Duration(5 * time.Second),
			ReconnectAttempts: 5,
			SharedMemory:      true,
		},
	}
}
