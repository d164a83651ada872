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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	pid := os.Getpid()

	assert.Equal(t, fmt.Sprintf("%d.vehicle0.camera1.colour", pid), Name("vehicle0", "camera1", "colour"))
	// world-fixed sensors have an empty owner prefix
	assert.Equal(t, fmt.Sprintf("%d..lidar1.pointCloud", pid), Name("", "lidar1", "pointCloud"))
}

func TestCreateReadWrite(t *testing.T) {
	region, err := Create(Name("", "testcam", "colour"), 64)
	require.NoError(t, err)
	defer func() {
		region.Close()
		region.Unlink()
	}()

	assert.Equal(t, 64, region.Size())

	payload := []byte("pixel data goes here")
	require.NoError(t, region.Write(payload))

	got, err := region.Read(len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSecondAttachSeesWrites(t *testing.T) {
	name := Name("", "testcam", "depth")
	owner, err := Create(name, 32)
	require.NoError(t, err)
	defer func() {
		owner.Close()
		owner.Unlink()
	}()

	// the simulator side attaches to the same name
	writer, err := Open(name, 32)
	require.NoError(t, err)
	defer writer.Close()

	require.NoError(t, writer.Write([]byte("from the simulator")))

	got, err := owner.Read(18)
	require.NoError(t, err)
	assert.Equal(t, []byte("from the simulator"), got)
}

func TestReadBounds(t *testing.T) {
	region, err := Create(Name("", "testcam", "annotation"), 16)
	require.NoError(t, err)
	defer func() {
		region.Close()
		region.Unlink()
	}()

	_, err = region.Read(17)
	assert.Error(t, err)
	_, err = region.Read(-1)
	assert.Error(t, err)

	got, err := region.Read(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteBounds(t *testing.T) {
	region, err := Create(Name("", "testcam", "small"), 4)
	require.NoError(t, err)
	defer func() {
		region.Close()
		region.Unlink()
	}()

	assert.Error(t, region.Write([]byte("too large for region")))
}

func TestCloseIdempotent(t *testing.T) {
	region, err := Create(Name("", "testcam", "closing"), 8)
	require.NoError(t, err)
	defer region.Unlink()

	require.NoError(t, region.Close())
	require.NoError(t, region.Close())

	_, err = region.Read(1)
	assert.Error(t, err)
	assert.Error(t, region.Write([]byte{1}))
}

func TestInvalidSize(t *testing.T) {
	_, err := Create(Name("", "testcam", "zero"), 0)
	assert.Error(t, err)
}

func TestOpenMissingRegion(t *testing.T) {
	_, err := Open("no-such-region-name", 8)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "opening shared memory"))
}
