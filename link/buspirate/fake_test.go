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

package buspirate

import (
	"errors"
	"sync"
	"time"

	"github.com/ZaparooProject/go-spibridge/internal/frame"
)

type fakeMode int

const (
	modeTerminal fakeMode = iota
	modeRaw
	modeSPI
)

var errUnplugged = errors.New("device not configured")

// fakeAdapter simulates Bus Pirate firmware on the far side of a serial port
type fakeAdapter struct {
	writeErr    error
	miso        []byte
	mosi        []byte
	out         []byte
	commands    []byte
	bulkSizes   []int
	mu          sync.Mutex
	readTimeout time.Duration
	zerosNeeded int
	zeros       int
	zerosSent   int
	bulkLeft    int
	flushes     int
	closes      int
	mode        fakeMode
	csLow       bool
	refuseSPI   bool
	silent      bool
	nack        bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{zerosNeeded: 1}
}

func (f *fakeAdapter) queueMISO(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.miso = append(f.miso, p...)
}

func (f *fakeAdapter) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeAdapter) emit(p ...byte) {
	if !f.silent {
		f.out = append(f.out, p...)
	}
}

func (f *fakeAdapter) ack() {
	if f.nack {
		f.emit(0x00)
		return
	}
	f.emit(frame.Ack)
}

func (f *fakeAdapter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	for _, b := range p {
		f.process(b)
	}
	return len(p), nil
}

func (f *fakeAdapter) process(b byte) {
	if f.bulkLeft > 0 {
		f.mosi = append(f.mosi, b)
		f.bulkLeft--
		var in byte
		if len(f.miso) > 0 {
			in = f.miso[0]
			f.miso = f.miso[1:]
		}
		f.emit(in)
		return
	}

	if b == frame.EnterRawMode {
		f.zerosSent++
	}

	switch f.mode {
	case modeTerminal:
		if b == frame.EnterRawMode {
			f.zeros++
			if f.zeros >= f.zerosNeeded {
				f.mode = modeRaw
				f.emit(frame.RawModeBanner...)
			}
		}
	case modeRaw:
		switch b {
		case frame.EnterRawMode:
			f.emit(frame.RawModeBanner...)
		case frame.EnterSPIMode:
			if !f.refuseSPI {
				f.mode = modeSPI
				f.emit(frame.SPIModeBanner...)
			}
		case frame.HardwareReset:
			f.mode = modeTerminal
			f.zeros = 0
			f.emit([]byte("\r\nBus Pirate v3.5\r\nHiZ>")...)
		}
	case modeSPI:
		f.processSPI(b)
	}
}

func (f *fakeAdapter) processSPI(b byte) {
	switch {
	case b == frame.EnterRawMode:
		f.mode = modeRaw
		f.emit(frame.RawModeBanner...)
	case b == frame.ChipSelectLow:
		f.csLow = true
		f.ack()
	case b == frame.ChipSelectHigh:
		f.csLow = false
		f.ack()
	case frame.Command(b) == frame.BulkTransfer:
		f.bulkLeft = frame.BulkLength(b)
		f.bulkSizes = append(f.bulkSizes, f.bulkLeft)
		f.ack()
	case frame.Command(b) == frame.PinConfig,
		frame.Command(b) == frame.SetSpeed,
		frame.Command(b) == frame.SPIConfig:
		f.commands = append(f.commands, b)
		f.ack()
	default:
		f.emit(0x00)
	}
}

func (f *fakeAdapter) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(p, f.out)
	f.out = f.out[n:]
	return n, nil
}

func (f *fakeAdapter) SetReadTimeout(t time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readTimeout = t
	return nil
}

func (f *fakeAdapter) ResetInputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = nil
	f.flushes++
	return nil
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeAdapter) state() (fakeMode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode, f.csLow
}

var _ serialPort = (*fakeAdapter)(nil)
