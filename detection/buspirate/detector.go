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

// Package buspirate detects Bus Pirate adapters among USB serial ports
package buspirate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-spibridge/detection"
	bplink "github.com/ZaparooProject/go-spibridge/link/buspirate"
	"go.bug.st/serial/enumerator"
)

const (
	transportName = "buspirate"

	// rawModeAttempts spreads the probe timeout over the raw mode attempts
	rawModeAttempts = 20
)

// Known USB identities. The v3 uses a stock FTDI bridge, so its VID:PID
// alone is weak evidence.
const (
	vidpidV3 = "0403:6001"
	vidpidV4 = "04D8:FB00"
)

// listPorts and probePort reach the hardware. They're variables so tests
// can substitute fixed port lists.
var (
	listPorts = enumerator.GetDetailedPortsList
	probePort = probeRawMode
)

// detector implements the Detector interface for Bus Pirates
type detector struct{}

// New creates a new Bus Pirate detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport name
func (*detector) Transport() string {
	return transportName
}

// Detect lists USB serial ports that identify as a Bus Pirate. In Full
// mode each candidate is switched into raw mode to confirm it.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		device, ok := candidate(port, opts)
		if !ok {
			continue
		}

		if opts.Mode == detection.Full {
			confirmed, probeErr := probePort(ctx, port.Name)
			switch {
			case confirmed:
				device.Confidence = detection.High
				device.Metadata["probe"] = "raw mode banner"
			case device.Confidence == detection.Low:
				continue
			case probeErr != nil:
				device.Metadata["probe_error"] = probeErr.Error()
			}
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// candidate filters a port on its USB descriptor alone
func candidate(port *enumerator.PortDetails, opts *detection.Options) (detection.DeviceInfo, bool) {
	if port == nil || !port.IsUSB {
		return detection.DeviceInfo{}, false
	}
	if detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	vidpid := detection.ParseVIDPID(port.VID + ":" + port.PID)
	if detection.IsBlocked(vidpid, opts.Blocklist) {
		return detection.DeviceInfo{}, false
	}

	named := strings.Contains(strings.ToLower(port.Product), "bus pirate")
	var confidence detection.Confidence
	switch {
	case vidpid == vidpidV4, named:
		confidence = detection.Medium
	case vidpid == vidpidV3:
		confidence = detection.Low
	default:
		return detection.DeviceInfo{}, false
	}

	name := "Bus Pirate"
	if port.Product != "" {
		name = port.Product
	}
	return detection.DeviceInfo{
		Transport:  transportName,
		Path:       port.Name,
		Name:       fmt.Sprintf("%s on %s", name, port.Name),
		Confidence: confidence,
		Metadata: map[string]string{
			"vid_pid":       vidpid,
			"serial_number": port.SerialNumber,
		},
	}, true
}

// probeRawMode opens the port, asks for raw mode and resets the adapter
// back to its terminal
func probeRawMode(ctx context.Context, path string) (bool, error) {
	timeout := 200 * time.Millisecond
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return false, detection.ErrDetectionTimeout
	}

	link, err := bplink.Open(path,
		bplink.WithTimeout(timeout/rawModeAttempts),
		bplink.WithResetDelay(10*time.Millisecond))
	if err != nil {
		return false, err
	}
	defer func() { _ = link.Close() }()

	ok, err := link.EnterRawMode()
	if err != nil {
		return false, fmt.Errorf("raw mode probe on %s: %w", path, err)
	}
	if resetErr := link.Reset(); resetErr != nil {
		return ok, fmt.Errorf("reset after probe on %s: %w", path, resetErr)
	}
	return ok, nil
}
