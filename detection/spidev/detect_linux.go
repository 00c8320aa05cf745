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

//go:build linux

package spidev

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ZaparooProject/go-spibridge/detection"
	"golang.org/x/sys/unix"
)

// devGlob and accessible reach the filesystem. They're variables so tests
// can use a temporary directory.
var (
	devGlob    = "/dev/spidev*"
	accessible = func(path string) bool {
		return unix.Access(path, unix.R_OK|unix.W_OK) == nil
	}
)

// spidevNode describes one /dev/spidevB.C node
type spidevNode struct {
	Path       string // Device path, e.g., "/dev/spidev0.0"
	Bus        int    // SPI controller number
	ChipSelect int    // Kernel chip-select line, unused by the bridge
}

func detectPorts(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	nodes, err := findNodes()
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	devices := make([]detection.DeviceInfo, 0, len(nodes))
	for _, node := range nodes {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(node.Path, opts.IgnorePaths) {
			continue
		}
		devices = append(devices, deviceInfo(node))
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func deviceInfo(node spidevNode) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  transportName,
		Path:       node.Path,
		Name:       fmt.Sprintf("SPI bus %d chip-select %d", node.Bus, node.ChipSelect),
		Confidence: detection.Low,
		Metadata: map[string]string{
			"bus":         fmt.Sprintf("%d", node.Bus),
			"chip_select": fmt.Sprintf("%d", node.ChipSelect),
			"access":      "denied",
		},
	}
	if accessible(node.Path) {
		device.Confidence = detection.Medium
		device.Metadata["access"] = "read-write"
	}
	return device
}

// findNodes discovers spidev nodes on the system
func findNodes() ([]spidevNode, error) {
	matches, err := filepath.Glob(devGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for spidev devices: %w", err)
	}

	nodes := make([]spidevNode, 0, len(matches))
	for _, path := range matches {
		var node spidevNode
		if _, err := fmt.Sscanf(filepath.Base(path), "spidev%d.%d", &node.Bus, &node.ChipSelect); err != nil {
			continue
		}
		node.Path = path
		nodes = append(nodes, node)
	}
	return nodes, nil
}
