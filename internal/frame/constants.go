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

// Package frame provides command encoding and protocol constants for the
// Bus Pirate binary SPI mode
package frame

// Mode switching commands
const (
	EnterRawMode  = 0x00 // From terminal or any binary mode back to raw bit-bang mode
	EnterSPIMode  = 0x01 // From raw bit-bang mode into binary SPI mode
	HardwareReset = 0x0F // From raw bit-bang mode back to the user terminal
)

// SPI mode commands
const (
	ChipSelectLow  = 0x02 // Pull chip-select low
	ChipSelectHigh = 0x03 // Release chip-select high
	BulkTransfer   = 0x10 // Low nibble carries the byte count minus one
	PinConfig      = 0x40 // Low nibble: power, pullups, AUX, CS
	SetSpeed       = 0x60 // Low three bits select the clock
	SPIConfig      = 0x80 // Low nibble: output type, CKP, CKE, SMP
)

// Ack is the byte the adapter sends after every accepted SPI mode command
const Ack = 0x01

// Limits
const (
	MaxBulkLength  = 16 // Largest payload of one bulk transfer
	MaxRawAttempts = 20 // Zero bytes sent before giving up on raw mode
)

// Mode banners returned on a successful mode switch
var (
	RawModeBanner = []byte("BBIO1")
	SPIModeBanner = []byte("SPI1")
)

// Bulk returns the command byte announcing a bulk transfer of n bytes.
// n must be in 1..MaxBulkLength.
func Bulk(n int) byte {
	return BulkTransfer | byte(n-1)&0x0F
}

// BulkLength returns the payload size announced by a bulk command byte
func BulkLength(cmd byte) int {
	return int(cmd&0x0F) + 1
}

// Nibble combines a command with a four-bit argument
func Nibble(cmd, arg byte) byte {
	return cmd | arg&0x0F
}

// Speed combines the speed command with a clock selector
func Speed(selector byte) byte {
	return SetSpeed | selector&0x07
}

// Command returns the high nibble of a command byte
func Command(b byte) byte {
	return b & 0xF0
}
