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

// Package detection finds bus adapters a bridge can be opened on
package detection

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Mode controls how intrusive detection may be
type Mode int

const (
	// Passive only enumerates device nodes and USB descriptors
	Passive Mode = iota
	// Safe may open devices but sends nothing that changes their state
	Safe
	// Full may switch adapters into binary mode to confirm them. The adapter
	// is reset to its terminal afterwards.
	Full
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// Confidence expresses how sure a detector is that a device is an adapter
type Confidence int

const (
	// Low means the device could be an adapter
	Low Confidence = iota
	// Medium means the device identifies like an adapter
	Medium
	// High means the device answered like an adapter
	High
)

// String returns the confidence name
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no devices found")
	ErrDetectionTimeout    = errors.New("detection timed out")
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	ErrUnknownTransport    = errors.New("no detector registered for transport")
)

// DeviceInfo describes one detected adapter
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

// Options configures detection
type Options struct {
	// Blocklist holds VID:PID pairs that are never reported
	Blocklist []string
	// IgnorePaths holds device paths that are never reported or probed
	IgnorePaths []string
	// Timeout bounds the whole detection run
	Timeout time.Duration
	// Mode selects how intrusive detection may be
	Mode Mode
	// MinConfidence drops devices below this confidence
	MinConfidence Confidence
}

// DefaultOptions returns passive detection with a five second timeout
func DefaultOptions() Options {
	return Options{
		Mode:      Passive,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds adapters reachable over one transport
type Detector interface {
	// Transport returns the transport name, such as "buspirate" or "spidev"
	Transport() string
	// Detect returns the adapters found, or ErrNoDevicesFound
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	detectorsMu sync.RWMutex
	detectors   = make(map[string]Detector)
)

// RegisterDetector makes a detector available to DetectAll. Detector
// packages call it from init.
func RegisterDetector(d Detector) {
	detectorsMu.Lock()
	defer detectorsMu.Unlock()
	detectors[d.Transport()] = d
}

// Transports returns the names of all registered detectors, sorted
func Transports() []string {
	detectorsMu.RLock()
	defer detectorsMu.RUnlock()
	names := make([]string, 0, len(detectors))
	for name := range detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectAll runs every registered detector with a background context
func DetectAll(opts *Options) ([]DeviceInfo, error) {
	return DetectAllContext(context.Background(), opts)
}

// DetectAllContext runs every registered detector concurrently and merges
// their results, highest confidence first. Detectors that find nothing or
// do not support the platform are skipped.
func DetectAllContext(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	detectorsMu.RLock()
	active := make([]Detector, 0, len(detectors))
	for _, d := range detectors {
		active = append(active, d)
	}
	detectorsMu.RUnlock()

	var mu sync.Mutex
	var devices []DeviceInfo
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range active {
		d := d
		g.Go(func() error {
			found, err := d.Detect(gctx, opts)
			if err != nil && !skippable(err) {
				return err
			}
			mu.Lock()
			devices = append(devices, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil && len(devices) == 0 {
		return nil, ErrDetectionTimeout
	}

	devices = filterConfidence(devices, opts.MinConfidence)
	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	sortDevices(devices)
	return devices, nil
}

// DetectTransport runs the detector registered for one transport
func DetectTransport(ctx context.Context, transport string, opts *Options) ([]DeviceInfo, error) {
	detectorsMu.RLock()
	d, ok := detectors[transport]
	detectorsMu.RUnlock()
	if !ok {
		return nil, ErrUnknownTransport
	}
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	devices, err := d.Detect(ctx, opts)
	if err != nil {
		return nil, err
	}
	devices = filterConfidence(devices, opts.MinConfidence)
	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	sortDevices(devices)
	return devices, nil
}

func skippable(err error) bool {
	return errors.Is(err, ErrNoDevicesFound) ||
		errors.Is(err, ErrUnsupportedPlatform) ||
		errors.Is(err, ErrDetectionTimeout)
}

func filterConfidence(devices []DeviceInfo, minConfidence Confidence) []DeviceInfo {
	kept := devices[:0]
	for _, d := range devices {
		if d.Confidence >= minConfidence {
			kept = append(kept, d)
		}
	}
	return kept
}

func sortDevices(devices []DeviceInfo) {
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].Confidence != devices[j].Confidence {
			return devices[i].Confidence > devices[j].Confidence
		}
		if devices[i].Transport != devices[j].Transport {
			return devices[i].Transport < devices[j].Transport
		}
		return devices[i].Path < devices[j].Path
	})
}
