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

/*
Package spibridge presents an SPI slave module behind a bus adapter as if it
were an ordinary serial port.

A protocol stack written for a byte stream (XBee API frames, modem AT
command parsers and the like) can run unchanged on top of a module that is
only reachable over SPI. The Bridge keeps a look-ahead buffer: when the
caller asks for data and the buffer is empty, one chip-select bracket clocks
16 filler bytes through the bus and keeps whatever the module sent back.
Writes are split into 16-byte bulk transfers inside a single chip-select
bracket, and the bytes the module clocks out at the same time are kept for
later reads.

Features:
  - Bus Pirate binary SPI mode over a USB serial port
  - Linux spidev with GPIO chip-select and power rail
  - Adapter auto-detection
  - Context-aware read helpers and a polling reader
  - Structured errors classified by kind

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-spibridge"
	    "github.com/ZaparooProject/go-spibridge/link/buspirate"
	)

	logger := zap.Must(zap.NewDevelopment()).Sugar()

	link, err := buspirate.Open("/dev/buspirate")
	if err != nil {
	    log.Fatal(err)
	}

	bridge, err := spibridge.Open(link, logger, spibridge.WithSpeed(spibridge.Speed2MHz))
	if err != nil {
	    log.Fatal(err)
	}
	defer bridge.Close()

	if _, err := bridge.Write([]byte("test")); err != nil {
	    log.Fatal(err)
	}

	reply, err := bridge.ReadN(50)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("res = % x\n", reply)

Reads never block waiting for more data than a single refill produced.
Callers that need a whole frame use ReadFullContext with a deadline.

Error Handling:

Errors carry a kind that tells the caller how to react:

	switch spibridge.GetErrorKind(err) {
	case spibridge.KindTransport:
	    // The session is dead; close and reopen the adapter.
	case spibridge.KindAdapterMode:
	    // Open failed; check the adapter firmware and wiring.
	}

Any transport failure is fatal to the session. The bridge never retries.

Thread Safety:

Bridge operations are safe for concurrent use. A single mutex serializes
every bus transaction, so a polling reader and a writer may share a bridge.
*/
package spibridge
