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
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// DefaultBlocklist returns USB serial devices that share a VID:PID with
// supported adapters but must never receive binary mode commands.
// Entries are VID:PID in hexadecimal, case-insensitive.
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno, resets on open
		"1A86:7523", // CH340 serial, common on 3D printer boards
	}
}

var (
	// "VID:04D8 PID:FB00", "VID=0403 PID=6001", "USB\VID_0403&PID_6001",
	// "vendor=04d8 product=fb00"
	taggedIDs = regexp.MustCompile(`(?i)(?:vid[:=_]|vendor=)\s*([0-9a-f]{1,4})\b.*?(?:pid[:=_]|product=)\s*([0-9a-f]{1,4})\b`)
	// "0403:6001"
	pairedIDs = regexp.MustCompile(`(?i)^([0-9a-f]{1,4}):([0-9a-f]{1,4})$`)
)

// ParseVIDPID extracts a USB identity from a descriptor string and returns
// it as upper-case "VVVV:PPPP", or "" when none is found.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.TrimSpace(descriptor)
	match := pairedIDs.FindStringSubmatch(descriptor)
	if match == nil {
		match = taggedIDs.FindStringSubmatch(descriptor)
	}
	if match == nil {
		return ""
	}

	vid, err := strconv.ParseUint(match[1], 16, 16)
	if err != nil {
		return ""
	}
	pid, err := strconv.ParseUint(match[2], 16, 16)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%04X:%04X", vid, pid)
}

// IsBlocked reports whether vidpid matches an entry of blocklist. Both sides
// are normalized with ParseVIDPID.
func IsBlocked(vidpid string, blocklist []string) bool {
	id := ParseVIDPID(vidpid)
	if id == "" {
		return false
	}
	return slices.ContainsFunc(blocklist, func(entry string) bool {
		return ParseVIDPID(entry) == id
	})
}

// IsPathIgnored reports whether devicePath is listed in ignorePaths.
// Paths are cleaned and compared case-insensitively so that "com4" matches
// "COM4".
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	key := pathKey(devicePath)
	return slices.ContainsFunc(ignorePaths, func(ignored string) bool {
		return ignored != "" && pathKey(ignored) == key
	})
}

func pathKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
