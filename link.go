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
	"strings"

	"periph.io/x/conn/v3/physic"
)

// MaxTransferSize is the largest payload a single bulk transfer may carry
const MaxTransferSize = 16

// Link defines the bus transaction driver the bridge is built on.
// This can be implemented by a Bus Pirate, a Linux spidev port, or a mock.
//
// Implementations do not need to be safe for concurrent use: the bridge
// serializes every call.
type Link interface {
	// Reset returns the adapter to its power-on default mode
	Reset() error

	// EnterRawMode switches the adapter into raw bit-bang mode.
	// A false result with a nil error means the adapter did not answer.
	EnterRawMode() (bool, error)

	// EnterSPIMode switches the adapter from raw mode into SPI mode
	EnterSPIMode() (bool, error)

	// SetSpeed selects the SPI clock
	SetSpeed(speed Speed) error

	// SetWireConfig sets clock polarity, clock edge, sample point and output type
	SetWireConfig(cfg WireConfig) error

	// SetPinConfig drives the power rail and auxiliary pins
	SetPinConfig(cfg PinConfig) error

	// AssertChipSelect pulls chip-select active (low)
	AssertChipSelect() error

	// DeassertChipSelect releases chip-select (high)
	DeassertChipSelect() error

	// BulkTransfer clocks out up to MaxTransferSize bytes and returns the
	// bytes clocked in at the same time
	BulkTransfer(out []byte) ([]byte, error)

	// Close releases the underlying device handle
	Close() error

	// Type returns the link type
	Type() LinkType
}

// LinkNamer is implemented by links that can name the device they drive.
// The name shows up in errors and logs.
type LinkNamer interface {
	Name() string
}

// LinkType represents the kind of adapter behind a Link
type LinkType string

const (
	// LinkBusPirate represents a Bus Pirate in binary SPI mode.
	LinkBusPirate LinkType = "buspirate"
	// LinkSPIDev represents a Linux spidev port with GPIO chip-select.
	LinkSPIDev LinkType = "spidev"
	// LinkMock represents a mock link for testing
	LinkMock LinkType = "mock"
)

// linkName returns the device name of a link, falling back to its type
func linkName(link Link) string {
	if namer, ok := link.(LinkNamer); ok {
		return namer.Name()
	}
	return string(link.Type())
}

// Speed is the adapter clock selector
type Speed byte

// Clock selectors, in the order the Bus Pirate numbers them.
const (
	Speed30kHz Speed = iota
	Speed125kHz
	Speed250kHz
	Speed1MHz
	Speed2MHz
	Speed2600kHz
	Speed4MHz
	Speed8MHz
)

var speedFrequencies = [...]physic.Frequency{
	Speed30kHz:   30 * physic.KiloHertz,
	Speed125kHz:  125 * physic.KiloHertz,
	Speed250kHz:  250 * physic.KiloHertz,
	Speed1MHz:    1 * physic.MegaHertz,
	Speed2MHz:    2 * physic.MegaHertz,
	Speed2600kHz: 2600 * physic.KiloHertz,
	Speed4MHz:    4 * physic.MegaHertz,
	Speed8MHz:    8 * physic.MegaHertz,
}

var speedNames = [...]string{
	Speed30kHz:   "30kHz",
	Speed125kHz:  "125kHz",
	Speed250kHz:  "250kHz",
	Speed1MHz:    "1MHz",
	Speed2MHz:    "2MHz",
	Speed2600kHz: "2.6MHz",
	Speed4MHz:    "4MHz",
	Speed8MHz:    "8MHz",
}

// Valid reports whether s is a known selector
func (s Speed) Valid() bool {
	return int(s) < len(speedFrequencies)
}

// Frequency returns the clock frequency of the selector
func (s Speed) Frequency() physic.Frequency {
	if !s.Valid() {
		return 0
	}
	return speedFrequencies[s]
}

// String implements fmt.Stringer
func (s Speed) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Speed(%d)", byte(s))
	}
	return speedNames[s]
}

// ParseSpeed parses a selector name such as "2MHz" or "250kHz"
func ParseSpeed(name string) (Speed, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range speedNames {
		if strings.ToLower(candidate) == normalized {
			return Speed(i), nil
		}
	}
	if normalized == "2600khz" {
		return Speed2600kHz, nil
	}
	return 0, fmt.Errorf("%w: unknown speed %q", ErrInvalidParameter, name)
}

// WireConfig describes the SPI wire format
type WireConfig struct {
	// Output3V3 drives outputs push-pull at 3.3 V instead of open drain
	Output3V3 bool
	// ClockIdleHigh sets the clock idle level (CPOL)
	ClockIdleHigh bool
	// ClockActiveToIdle shifts data out on the active-to-idle clock edge
	ClockActiveToIdle bool
	// SampleAtEnd samples input at the end of the data output time
	SampleAtEnd bool
}

// DefaultWireConfig returns idle-low clock, idle-to-active edge, middle
// sampling and 3.3 V outputs
func DefaultWireConfig() WireConfig {
	return WireConfig{Output3V3: true}
}

// Bits encodes the configuration as the Bus Pirate wxyz nibble
func (c WireConfig) Bits() byte {
	var b byte
	if c.Output3V3 {
		b |= 0x08
	}
	if c.ClockIdleHigh {
		b |= 0x04
	}
	if c.ClockActiveToIdle {
		b |= 0x02
	}
	if c.SampleAtEnd {
		b |= 0x01
	}
	return b
}

// PinConfig describes the adapter's peripheral pins
type PinConfig struct {
	// Power enables the adapter's power supply rail
	Power bool
	// Pullups enables the on-board pull-up resistors
	Pullups bool
	// AUX drives the auxiliary pin high
	AUX bool
	// ChipSelect drives the chip-select pin high
	ChipSelect bool
}

// PowerOn returns the pin configuration used while the bridge is open
func PowerOn() PinConfig {
	return PinConfig{Power: true}
}

// Bits encodes the configuration as the Bus Pirate wxyz nibble
func (c PinConfig) Bits() byte {
	var b byte
	if c.Power {
		b |= 0x08
	}
	if c.Pullups {
		b |= 0x04
	}
	if c.AUX {
		b |= 0x02
	}
	if c.ChipSelect {
		b |= 0x01
	}
	return b
}
