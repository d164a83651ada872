// Copyright (c) 2025 Sensor session implementation for GoVPS.
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

package sensors

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vps-sim/govps/codec"
	"github.com/vps-sim/govps/connection"
	"github.com/vps-sim/govps/shmem"
)

// bytesPerPixel is the stride of every image channel: RGBA for colour
// and annotation, one float32 per pixel for depth.
const bytesPerPixel = 4

// Image is one raw image buffer read from the simulator, row-major with
// 4 bytes per pixel.
type Image struct {
	Width  int
	Height int
	Pixels []byte
}

// CameraFrames is the result of one camera poll. Channels the camera
// was not configured for, or that the simulator failed to render, are
// nil.
type CameraFrames struct {
	Colour     *Image
	Annotation *Image
	// Depth holds one float32 distance per pixel, row-major.
	Depth []float32
}

// CameraConfig describes a camera sensor session.
type CameraConfig struct {
	Name string
	// Vehicle is the owner prefix for the shared-memory names; empty
	// for a world-fixed camera.
	Vehicle string
	Width   int
	Height  int

	Colour     bool
	Annotation bool
	Depth      bool

	// UseSharedMemory selects the zero-copy path. When false, poll
	// replies carry the buffers on the socket (base64 or raw binary)
	// at the cost of latency and traffic, which is the only option
	// when the simulator runs on another machine.
	UseSharedMemory bool

	// RequestedUpdateTime is the polling cadence the simulator should
	// target, in seconds. Negative disables automatic updates.
	RequestedUpdateTime float64
}

// Camera is a live camera sensor session. It builds requests and
// decodes payloads on top of the connection's correlated protocol; the
// heavy image buffers travel through shared memory when enabled.
type Camera struct {
	conn *connection.Connection
	cfg  CameraConfig

	colourRegion     *shmem.Region
	annotationRegion *shmem.Region
	depthRegion      *shmem.Region
}

// OpenCamera allocates the camera's shared-memory regions (when
// enabled) and registers the sensor with the simulator. The region
// names and sizes travel in the open request so the simulator can
// attach to the same blocks.
func OpenCamera(conn *connection.Connection, cfg CameraConfig) (*Camera, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid camera resolution %dx%d", cfg.Width, cfg.Height)
	}
	cam := &Camera{conn: conn, cfg: cfg}
	bufferSize := cfg.Width * cfg.Height * bytesPerPixel

	if cfg.UseSharedMemory {
		var err error
		if cfg.Colour {
			cam.colourRegion, err = shmem.Create(shmem.Name(cfg.Vehicle, cfg.Name, "colour"), bufferSize)
			if err != nil {
				return nil, err
			}
		}
		if cfg.Annotation {
			cam.annotationRegion, err = shmem.Create(shmem.Name(cfg.Vehicle, cfg.Name, "annotation"), bufferSize)
			if err != nil {
				cam.releaseRegions()
				return nil, err
			}
		}
		if cfg.Depth {
			cam.depthRegion, err = shmem.Create(shmem.Name(cfg.Vehicle, cfg.Name, "depth"), bufferSize)
			if err != nil {
				cam.releaseRegions()
				return nil, err
			}
		}
	}

	req := codec.Message{
		"name":                cfg.Name,
		"vehicle":             cfg.Vehicle,
		"width":               cfg.Width,
		"height":              cfg.Height,
		"colour":              cfg.Colour,
		"annotation":          cfg.Annotation,
		"depth":               cfg.Depth,
		"useSharedMemory":     cfg.UseSharedMemory,
		"requestedUpdateTime": cfg.RequestedUpdateTime,
	}
	if cam.colourRegion != nil {
		req["colourShmemName"] = cam.colourRegion.Name()
		req["colourShmemSize"] = bufferSize
	}
	if cam.annotationRegion != nil {
		req["annotationShmemName"] = cam.annotationRegion.Name()
		req["annotationShmemSize"] = bufferSize
	}
	if cam.depthRegion != nil {
		req["depthShmemName"] = cam.depthRegion.Name()
		req["depthShmemSize"] = bufferSize
	}
	req["type"] = "OpenCamera"

	resp, err := conn.Send(req)
	if err != nil {
		cam.releaseRegions()
		return nil, err
	}
	if err := resp.Ack("OpenedCamera"); err != nil {
		cam.releaseRegions()
		return nil, err
	}
	return cam, nil
}

// Poll fetches the camera's most recent readings. Over shared memory
// the reply only flags which channels rendered; over the socket the
// reply's data field carries the buffers themselves. Sensor replies
// place their payload under data, unlike generic commands which use
// result.
func (c *Camera) Poll() (*CameraFrames, error) {
	resp, err := c.conn.Send(codec.Message{
		"type":            "PollCamera",
		"name":            c.cfg.Name,
		"useSharedMemory": c.cfg.UseSharedMemory,
	})
	if err != nil {
		return nil, err
	}
	msg, err := resp.Recv("PolledCamera")
	if err != nil {
		return nil, err
	}
	readings, ok := msg.Map("data")
	if !ok {
		return nil, fmt.Errorf("camera %s: poll reply carries no data map", c.cfg.Name)
	}

	frames := &CameraFrames{}
	bufferSize := c.cfg.Width * c.cfg.Height * bytesPerPixel

	if c.cfg.UseSharedMemory {
		if _, rendered := readings["colour"]; rendered && c.colourRegion != nil {
			pixels, err := c.colourRegion.Read(bufferSize)
			if err != nil {
				return nil, err
			}
			frames.Colour = &Image{Width: c.cfg.Width, Height: c.cfg.Height, Pixels: pixels}
		}
		if _, rendered := readings["annotation"]; rendered && c.annotationRegion != nil {
			pixels, err := c.annotationRegion.Read(bufferSize)
			if err != nil {
				return nil, err
			}
			frames.Annotation = &Image{Width: c.cfg.Width, Height: c.cfg.Height, Pixels: pixels}
		}
		if _, rendered := readings["depth"]; rendered && c.depthRegion != nil {
			buf, err := c.depthRegion.Read(bufferSize)
			if err != nil {
				return nil, err
			}
			frames.Depth = decodeFloat32(buf)
		}
		return frames, nil
	}

	if buf, err := channelBytes(readings, "colour"); err != nil {
		return nil, fmt.Errorf("camera %s: %w", c.cfg.Name, err)
	} else if buf != nil {
		frames.Colour = &Image{Width: c.cfg.Width, Height: c.cfg.Height, Pixels: buf}
	}
	if buf, err := channelBytes(readings, "annotation"); err != nil {
		return nil, fmt.Errorf("camera %s: %w", c.cfg.Name, err)
	} else if buf != nil {
		frames.Annotation = &Image{Width: c.cfg.Width, Height: c.cfg.Height, Pixels: buf}
	}
	if buf, err := channelBytes(readings, "depth"); err != nil {
		return nil, fmt.Errorf("camera %s: %w", c.cfg.Name, err)
	} else if buf != nil {
		frames.Depth = decodeFloat32(buf)
	}
	return frames, nil
}

// Close removes the sensor from the simulation and releases the
// shared-memory regions.
func (c *Camera) Close() error {
	resp, err := c.conn.Send(codec.Message{
		"type": "CloseCamera",
		"name": c.cfg.Name,
	})
	if err == nil {
		err = resp.Ack("ClosedCamera")
	}
	c.releaseRegions()
	return err
}

func (c *Camera) releaseRegions() {
	for _, region := range []*shmem.Region{c.colourRegion, c.annotationRegion, c.depthRegion} {
		if region != nil {
			_ = region.Close()
			_ = region.Unlink()
		}
	}
	c.colourRegion, c.annotationRegion, c.depthRegion = nil, nil, nil
}

// channelBytes extracts a socket-fallback buffer for one channel. The
// simulator sends either raw binary or a base64 string depending on its
// version; absent channels yield nil without error.
func channelBytes(readings codec.Message, key string) ([]byte, error) {
	val, ok := readings[key]
	if !ok {
		return nil, nil
	}
	switch v := val.(type) {
	case []byte:
		return v, nil
	case string:
		buf, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 %s channel: %w", key, err)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("unexpected %s channel payload of type %T", key, val)
	}
}

// decodeFloat32 reinterprets a little-endian byte buffer as float32
// values, dropping any trailing partial value.
func decodeFloat32(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// asInt converts a decoded scalar reply value to int64.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
