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
	"fmt"

	"github.com/vps-sim/govps/codec"
	"github.com/vps-sim/govps/connection"
	"github.com/vps-sim/govps/shmem"
)

// MaxLidarPoints is the point-cloud capacity a LiDAR region is sized
// for. Shared memory has to be allocated before the first reading, so
// the region is a fixed maximum rather than sized per frame.
const MaxLidarPoints = 2000000

// PointCloud is one LiDAR reading: a flat x/y/z float32 triplet per
// point, plus one RGBA colour value per point when the sensor is
// configured to colour its returns.
type PointCloud struct {
	// Points holds 3*N float32 values, x/y/z per point.
	Points []float32
	// Colours holds 4*N bytes, RGBA per point; nil if not requested.
	Colours []byte
}

// LidarConfig describes a LiDAR sensor session.
type LidarConfig struct {
	Name    string
	Vehicle string

	// Colour requests a per-point colour buffer alongside positions.
	Colour bool

	// UseSharedMemory selects the zero-copy path; the socket fallback
	// embeds the buffers in the poll reply.
	UseSharedMemory bool

	RequestedUpdateTime float64
}

// Lidar is a live LiDAR sensor session.
type Lidar struct {
	conn *connection.Connection
	cfg  LidarConfig

	pointRegion  *shmem.Region
	colourRegion *shmem.Region
}

// OpenLidar allocates the point-cloud (and optionally colour) regions
// and registers the sensor with the simulator.
func OpenLidar(conn *connection.Connection, cfg LidarConfig) (*Lidar, error) {
	l := &Lidar{conn: conn, cfg: cfg}
	pointBytes := MaxLidarPoints * 3 * 4
	colourBytes := MaxLidarPoints * 4

	if cfg.UseSharedMemory {
		var err error
		l.pointRegion, err = shmem.Create(shmem.Name(cfg.Vehicle, cfg.Name, "pointCloud"), pointBytes)
		if err != nil {
			return nil, err
		}
		if cfg.Colour {
			l.colourRegion, err = shmem.Create(shmem.Name(cfg.Vehicle, cfg.Name, "colour"), colourBytes)
			if err != nil {
				l.releaseRegions()
				return nil, err
			}
		}
	}

	req := codec.Message{
		"type":                "OpenLidar",
		"name":                cfg.Name,
		"vehicle":             cfg.Vehicle,
		"colour":              cfg.Colour,
		"useSharedMemory":     cfg.UseSharedMemory,
		"requestedUpdateTime": cfg.RequestedUpdateTime,
	}
	if l.pointRegion != nil {
		req["pointCloudShmemName"] = l.pointRegion.Name()
		req["pointCloudShmemSize"] = pointBytes
	}
	if l.colourRegion != nil {
		req["colourShmemName"] = l.colourRegion.Name()
		req["colourShmemSize"] = colourBytes
	}

	resp, err := conn.Send(req)
	if err != nil {
		l.releaseRegions()
		return nil, err
	}
	if err := resp.Ack("OpenedLidar"); err != nil {
		l.releaseRegions()
		return nil, err
	}
	return l, nil
}

// Poll fetches the most recent point cloud. The reply's data map
// carries the rendered point count; over shared memory only the sized
// prefix of each region is read.
func (l *Lidar) Poll() (*PointCloud, error) {
	resp, err := l.conn.Send(codec.Message{
		"type":            "PollLidar",
		"name":            l.cfg.Name,
		"useSharedMemory": l.cfg.UseSharedMemory,
	})
	if err != nil {
		return nil, err
	}
	msg, err := resp.Recv("PolledLidar")
	if err != nil {
		return nil, err
	}
	readings, ok := msg.Map("data")
	if !ok {
		return nil, fmt.Errorf("lidar %s: poll reply carries no data map", l.cfg.Name)
	}

	count, ok := readings.Int("pointCount")
	if !ok {
		return nil, fmt.Errorf("lidar %s: poll reply carries no point count", l.cfg.Name)
	}
	if count < 0 || count > MaxLidarPoints {
		return nil, fmt.Errorf("lidar %s: point count %d out of range", l.cfg.Name, count)
	}

	cloud := &PointCloud{}
	if l.cfg.UseSharedMemory {
		buf, err := l.pointRegion.Read(int(count) * 3 * 4)
		if err != nil {
			return nil, err
		}
		cloud.Points = decodeFloat32(buf)
		if l.colourRegion != nil {
			cloud.Colours, err = l.colourRegion.Read(int(count) * 4)
			if err != nil {
				return nil, err
			}
		}
		return cloud, nil
	}

	buf, err := channelBytes(readings, "pointCloud")
	if err != nil {
		return nil, fmt.Errorf("lidar %s: %w", l.cfg.Name, err)
	}
	cloud.Points = decodeFloat32(buf)
	if l.cfg.Colour {
		cloud.Colours, err = channelBytes(readings, "colour")
		if err != nil {
			return nil, fmt.Errorf("lidar %s: %w", l.cfg.Name, err)
		}
	}
	return cloud, nil
}

// AdHocPoll requests a one-off reading outside the sensor's automatic
// update cadence. The returned id is later passed to CollectAdHocPoll
// once the simulator reports it ready.
func (l *Lidar) AdHocPoll() (int64, error) {
	raw, err := l.conn.Message("SendAdHocRequestLidar", codec.Message{"name": l.cfg.Name})
	if err != nil {
		return 0, err
	}
	id, ok := asInt(raw)
	if !ok {
		return 0, fmt.Errorf("lidar %s: ad-hoc request returned no id", l.cfg.Name)
	}
	return id, nil
}

// AdHocPollReady checks whether a previously-issued ad-hoc request has
// been processed.
func (l *Lidar) AdHocPollReady(requestID int64) (bool, error) {
	raw, err := l.conn.Message("IsAdHocPollRequestReadyLidar", codec.Message{
		"name":      l.cfg.Name,
		"requestId": requestID,
	})
	if err != nil {
		return false, err
	}
	ready, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("lidar %s: readiness reply carries no flag", l.cfg.Name)
	}
	return ready, nil
}

// Close removes the sensor from the simulation and releases its
// regions.
func (l *Lidar) Close() error {
	resp, err := l.conn.Send(codec.Message{
		"type": "CloseLidar",
		"name": l.cfg.Name,
	})
	if err == nil {
		err = resp.Ack("ClosedLidar")
	}
	l.releaseRegions()
	return err
}

func (l *Lidar) releaseRegions() {
	for _, region := range []*shmem.Region{l.pointRegion, l.colourRegion} {
		if region != nil {
			_ = region.Close()
			_ = region.Unlink()
		}
	}
	l.pointRegion, l.colourRegion = nil, nil
}
