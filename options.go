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

package spibridge

import (
	"fmt"
	"time"
)

// Config contains configuration options for the Bridge
type Config struct {
	// WireConfig is applied after the speed during open
	WireConfig WireConfig
	// PinConfig is applied last during open and normally enables power
	PinConfig PinConfig
	// PollInterval is the pause between empty reads in the context helpers
	PollInterval time.Duration
	// ChunkSize is the largest payload sent in one bulk transfer on write
	ChunkSize int
	// ProbeSize is the number of filler bytes clocked out per refill
	ProbeSize int
	// Speed selects the SPI clock
	Speed Speed
	// Filler is the byte clocked out during a refill
	Filler byte
}

// DefaultConfig returns default bridge configuration
func DefaultConfig() *Config {
	return &Config{
		Speed:        Speed2MHz,
		WireConfig:   DefaultWireConfig(),
		PinConfig:    PowerOn(),
		ChunkSize:    MaxTransferSize,
		ProbeSize:    MaxTransferSize,
		Filler:       0x00,
		PollInterval: 5 * time.Millisecond,
	}
}

// validate checks the configuration before any bus traffic happens
func (c *Config) validate() error {
	if !c.Speed.Valid() {
		return fmt.Errorf("%w: speed selector %d", ErrInvalidParameter, byte(c.Speed))
	}
	if c.ChunkSize < 1 || c.ChunkSize > MaxTransferSize {
		return fmt.Errorf("%w: chunk size %d not in 1..%d", ErrInvalidParameter, c.ChunkSize, MaxTransferSize)
	}
	if c.ProbeSize < 1 || c.ProbeSize > MaxTransferSize {
		return fmt.Errorf("%w: probe size %d not in 1..%d", ErrInvalidParameter, c.ProbeSize, MaxTransferSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval %v", ErrInvalidParameter, c.PollInterval)
	}
	return nil
}

// Option is a functional option for configuring a Bridge
type Option func(*Config) error

// WithSpeed sets the SPI clock selector
func WithSpeed(speed Speed) Option {
	return func(c *Config) error {
		c.Speed = speed
		return nil
	}
}

// WithWireConfig overrides the default wire configuration
func WithWireConfig(cfg WireConfig) Option {
	return func(c *Config) error {
		c.WireConfig = cfg
		return nil
	}
}

// WithPinConfig overrides the pin configuration applied at open
func WithPinConfig(cfg PinConfig) Option {
	return func(c *Config) error {
		c.PinConfig = cfg
		return nil
	}
}

// WithChunkSize sets the largest write payload per bulk transfer
func WithChunkSize(size int) Option {
	return func(c *Config) error {
		c.ChunkSize = size
		return nil
	}
}

// WithProbeSize sets the number of filler bytes clocked out per refill
func WithProbeSize(size int) Option {
	return func(c *Config) error {
		c.ProbeSize = size
		return nil
	}
}

// WithFiller sets the byte clocked out during refills
func WithFiller(filler byte) Option {
	return func(c *Config) error {
		c.Filler = filler
		return nil
	}
}

// WithPollInterval sets the pause between empty reads in ReadFullContext
// and WaitAvailable
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) error {
		c.PollInterval = interval
		return nil
	}
}
