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

// Port is the serial-port-shaped stream a framed protocol stack consumes.
// It is implemented by Bridge for SPI adapters and by transport/uart for
// modules wired to a real serial port.
type Port interface {
	// Available returns the number of bytes that can be read without
	// touching the bus again. It may perform one look-ahead transaction.
	Available() (int, error)

	// Read copies up to len(p) buffered bytes into p. It returns fewer
	// bytes than requested, possibly zero, instead of waiting for more.
	Read(p []byte) (int, error)

	// Write sends p to the module
	Write(p []byte) (int, error)

	// IsOpen returns true while the port can be used
	IsOpen() bool

	// Close releases the port. Calling Close more than once is safe.
	Close() error
}
