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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZaparooProject/go-spibridge/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetectMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    detection.Mode
		wantErr bool
	}{
		{name: "passive", want: detection.Passive},
		{name: "Safe", want: detection.Safe},
		{name: "FULL", want: detection.Full},
		{name: "aggressive", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseDetectMode(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinkFromDevice_UnknownTransport(t *testing.T) {
	t.Parallel()

	_, err := linkFromDevice(detection.DeviceInfo{Transport: "i2c", Path: "/dev/i2c-1"}, &config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i2c")
}

func TestNewLogger_WritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := newLogger(path, false)
	logger.Debugw("refill", "bytes", 16)
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"refill"`, "file records debug output")
}
