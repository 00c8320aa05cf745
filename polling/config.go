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

package polling

import (
	"fmt"
	"time"
)

// Config controls the polling reader
type Config struct {
	// PollInterval is the pause between reads while data is flowing
	PollInterval time.Duration
	// IdlePollInterval is the pause between reads once the stream is idle
	IdlePollInterval time.Duration
	// IdleTimeout is how long without data before the stream counts as idle
	IdleTimeout time.Duration
	// IdleByte, when set, is the filler an idle module clocks out. Reads
	// made up only of this byte are still delivered but do not keep the
	// stream active. Leave nil for ports that return nothing when idle.
	IdleByte *byte
	// ReadSize is the largest read per poll
	ReadSize int
}

// DefaultConfig returns polling settings suited to a 2 MHz bridge
func DefaultConfig() *Config {
	return &Config{
		PollInterval:     5 * time.Millisecond,
		IdlePollInterval: 50 * time.Millisecond,
		IdleTimeout:      2 * time.Second,
		ReadSize:         64,
	}
}

// IsIdle reports whether data holds nothing but the idle filler
func (c *Config) IsIdle(data []byte) bool {
	if c.IdleByte == nil || len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b != *c.IdleByte {
			return false
		}
	}
	return true
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.IdlePollInterval < c.PollInterval {
		return fmt.Errorf("idle poll interval %v is shorter than poll interval %v",
			c.IdlePollInterval, c.PollInterval)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %v", c.IdleTimeout)
	}
	if c.ReadSize <= 0 {
		return fmt.Errorf("read size must be positive, got %d", c.ReadSize)
	}
	return nil
}
