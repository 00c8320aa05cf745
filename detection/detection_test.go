// go-spibridge
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-spibridge.
//
// go-spibridge is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-spibridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-spibridge; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	err       error
	transport string
	devices   []DeviceInfo
	delay     time.Duration
}

func (s *stubDetector) Transport() string {
	return s.transport
}

func (s *stubDetector) Detect(ctx context.Context, _ *Options) ([]DeviceInfo, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		case <-time.After(s.delay):
		}
	}
	return s.devices, s.err
}

// withDetectors replaces the registry for the duration of a test
func withDetectors(t *testing.T, ds ...Detector) {
	t.Helper()
	detectorsMu.Lock()
	saved := detectors
	detectors = make(map[string]Detector)
	detectorsMu.Unlock()

	for _, d := range ds {
		RegisterDetector(d)
	}
	t.Cleanup(func() {
		detectorsMu.Lock()
		detectors = saved
		detectorsMu.Unlock()
	})
}

//nolint:paralleltest // uses the global detector registry
func TestDetectAllContext_MergesAndSorts(t *testing.T) {
	withDetectors(t,
		&stubDetector{transport: "spidev", devices: []DeviceInfo{
			{Transport: "spidev", Path: "/dev/spidev0.1", Confidence: Medium},
			{Transport: "spidev", Path: "/dev/spidev0.0", Confidence: Medium},
		}},
		&stubDetector{transport: "buspirate", devices: []DeviceInfo{
			{Transport: "buspirate", Path: "/dev/ttyUSB0", Confidence: High},
			{Transport: "buspirate", Path: "/dev/ttyUSB1", Confidence: Low},
		}},
	)

	devices, err := DetectAllContext(context.Background(), nil)
	require.NoError(t, err)

	paths := make([]string, 0, len(devices))
	for _, d := range devices {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/spidev0.0", "/dev/spidev0.1", "/dev/ttyUSB1"}, paths)
	assert.Equal(t, []string{"buspirate", "spidev"}, Transports())
}

//nolint:paralleltest // uses the global detector registry
func TestDetectAllContext_SkipsEmptyDetectors(t *testing.T) {
	withDetectors(t,
		&stubDetector{transport: "spidev", err: ErrUnsupportedPlatform},
		&stubDetector{transport: "buspirate", err: ErrNoDevicesFound},
	)

	_, err := DetectAll(nil)
	require.ErrorIs(t, err, ErrNoDevicesFound)
}

//nolint:paralleltest // uses the global detector registry
func TestDetectAllContext_PropagatesFailures(t *testing.T) {
	boom := errors.New("enumeration failed")
	withDetectors(t, &stubDetector{transport: "buspirate", err: boom})

	_, err := DetectAll(nil)
	require.ErrorIs(t, err, boom)
}

//nolint:paralleltest // uses the global detector registry
func TestDetectAllContext_MinConfidence(t *testing.T) {
	withDetectors(t, &stubDetector{transport: "buspirate", devices: []DeviceInfo{
		{Transport: "buspirate", Path: "/dev/ttyUSB0", Confidence: Low},
		{Transport: "buspirate", Path: "/dev/ttyACM0", Confidence: High},
	}})

	opts := DefaultOptions()
	opts.MinConfidence = Medium
	devices, err := DetectAllContext(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyACM0", devices[0].Path)
}

//nolint:paralleltest // uses the global detector registry
func TestDetectAllContext_Timeout(t *testing.T) {
	withDetectors(t, &stubDetector{transport: "buspirate", delay: time.Second})

	opts := DefaultOptions()
	opts.Timeout = 10 * time.Millisecond
	start := time.Now()
	_, err := DetectAllContext(context.Background(), &opts)
	require.ErrorIs(t, err, ErrDetectionTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

//nolint:paralleltest // uses the global detector registry
func TestDetectTransport(t *testing.T) {
	withDetectors(t, &stubDetector{transport: "spidev", devices: []DeviceInfo{
		{Transport: "spidev", Path: "/dev/spidev1.0", Confidence: Medium},
	}})

	devices, err := DetectTransport(context.Background(), "spidev", nil)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	_, err = DetectTransport(context.Background(), "buspirate", nil)
	require.ErrorIs(t, err, ErrUnknownTransport)
}

func TestModeAndConfidenceNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "passive", Passive.String())
	assert.Equal(t, "safe", Safe.String())
	assert.Equal(t, "full", Full.String())
	assert.Equal(t, "high", High.String())
	assert.Equal(t, "unknown", Confidence(7).String())
}
