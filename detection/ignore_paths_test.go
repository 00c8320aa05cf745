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
	"testing"

	"github.com/stretchr/testify/assert"
)

type pathIgnoredTest struct {
	name        string
	devicePath  string
	ignorePaths []string
	expected    bool
}

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []pathIgnoredTest{
		{
			name:        "empty ignore list",
			devicePath:  "/dev/ttyUSB0",
			ignorePaths: []string{},
			expected:    false,
		},
		{
			name:        "empty device path",
			devicePath:  "",
			ignorePaths: []string{"/dev/ttyUSB0"},
			expected:    false,
		},
		{
			name:        "exact match bus pirate symlink",
			devicePath:  "/dev/buspirate",
			ignorePaths: []string{"/dev/buspirate"},
			expected:    true,
		},
		{
			name:        "windows COM port case insensitive",
			devicePath:  "com4",
			ignorePaths: []string{"COM4"},
			expected:    true,
		},
		{
			name:        "spidev node",
			devicePath:  "/dev/spidev0.1",
			ignorePaths: []string{"/dev/spidev0.0", "/dev/spidev0.1"},
			expected:    true,
		},
		{
			name:        "other chip select on same bus",
			devicePath:  "/dev/spidev0.1",
			ignorePaths: []string{"/dev/spidev0.0"},
			expected:    false,
		},
		{
			name:        "path with relative components",
			devicePath:  "/dev/../dev/ttyACM0",
			ignorePaths: []string{"/dev/ttyACM0"},
			expected:    true,
		},
		{
			name:        "empty strings in ignore list",
			devicePath:  "/dev/ttyUSB0",
			ignorePaths: []string{"", "/dev/ttyUSB0", ""},
			expected:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsPathIgnored(tt.devicePath, tt.ignorePaths),
				"IsPathIgnored(%q, %v)", tt.devicePath, tt.ignorePaths)
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{"2341:0043", " 1a86:7523 "}

	assert.True(t, IsBlocked("2341:0043", blocklist))
	assert.True(t, IsBlocked("1A86:7523", blocklist))
	assert.False(t, IsBlocked("0403:6001", blocklist), "FTDI Bus Pirate is allowed")
	assert.False(t, IsBlocked("04d8:fb00", nil))
}

func TestParseVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		descriptor string
		want       string
	}{
		{descriptor: "0403:6001", want: "0403:6001"},
		{descriptor: "VID:04D8 PID:FB00", want: "04D8:FB00"},
		{descriptor: "USB VID=0403 PID=6001 SER=A10KZP45", want: "0403:6001"},
		{descriptor: "vendor=04d8 product=fb00", want: "04D8:FB00"},
		{descriptor: `USB\VID_0403&PID_6001\A10KZP45`, want: "0403:6001"},
		{descriptor: "403:6001", want: "0403:6001"},
		{descriptor: "0403:6001:01", want: ""},
		{descriptor: "Bus Pirate v4", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.descriptor, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseVIDPID(tt.descriptor))
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Nil(t, opts.IgnorePaths)
	assert.Equal(t, Passive, opts.Mode)
	assert.Equal(t, DefaultBlocklist(), opts.Blocklist)

	opts.IgnorePaths = []string{"/dev/ttyUSB0", "COM2"}
	assert.Len(t, opts.IgnorePaths, 2)
}
