// Copyright (c) 2025 Message codec implementation for GoVPS.
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

package codec

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
)

// Message is one decoded protocol message: a mapping from string keys to
// numbers, strings, booleans, raw byte buffers and nested mappings/sequences.
type Message map[string]any

// Marshal encodes a message to MessagePack bytes.
func Marshal(msg Message) ([]byte, error) {
	data, err := msgpack.Marshal(map[string]any(msg))
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return data, nil
}

// Unmarshal decodes MessagePack bytes into a Message. Byte values that are
// valid UTF-8 are converted to strings, recursively through nested
// mappings and sequences; anything else is left as raw bytes.
func Unmarshal(data []byte) (Message, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	m, ok := textify(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decoding message: expected map, got %T", raw)
	}
	return Message(m), nil
}

// textify converts byte values holding valid UTF-8 to strings. The
// conversion is presentational and idempotent; a second pass is a no-op.
func textify(v any) any {
	switch val := v.(type) {
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return val
	case map[string]any:
		for k, elem := range val {
			val[k] = textify(elem)
		}
		return val
	case map[any]any:
		// non-string keys can appear in sensor payloads keyed by number
		for k, elem := range val {
			val[k] = textify(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = textify(elem)
		}
		return val
	default:
		return v
	}
}

// String returns the value under key as a string.
func (m Message) String(key string) (string, bool) {
	switch v := m[key].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// Int returns the value under key as an int64, converting from any
// integer or float representation the decoder may have produced.
func (m Message) Int(key string) (int64, bool) {
	switch v := m[key].(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float returns the value under key as a float64.
func (m Message) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// Bytes returns the value under key as raw bytes. Values already
// textified to strings are handed back as their byte contents.
func (m Message) Bytes(key string) ([]byte, bool) {
	switch v := m[key].(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}

// Bool returns the value under key as a bool.
func (m Message) Bool(key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

// Map returns the value under key as a nested message.
func (m Message) Map(key string) (Message, bool) {
	v, ok := m[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return Message(v), true
}
