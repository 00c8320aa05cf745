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

// Package spidev provides a link over a Linux spidev port with GPIO
// chip-select and an optional GPIO power rail
package spidev

import (
	"errors"
	"fmt"

	spibridge "github.com/ZaparooProject/go-spibridge"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	// ErrPinNotFound is returned when a GPIO name is not known to the host
	ErrPinNotFound = errors.New("gpio pin not found")
	// ErrClosed is returned when the link is used after Close
	ErrClosed = errors.New("spidev link closed")
)

// pinOut is the subset of gpio.PinIO the link drives
type pinOut interface {
	Out(l gpio.Level) error
}

type txer interface {
	Tx(w, r []byte) error
}

type busPort interface {
	Connect(f physic.Frequency, mode spi.Mode, bits int) (txer, error)
	Close() error
}

// periphPort adapts a periph SPI port to busPort
type periphPort struct {
	port spi.PortCloser
}

func (p periphPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (txer, error) {
	conn, err := p.port.Connect(f, mode, bits)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (p periphPort) Close() error {
	return p.port.Close()
}

// openBus and pinByName reach the host drivers. They're variables so tests
// can run without SPI hardware.
var (
	openBus = func(name string) (busPort, error) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize periph host: %w", err)
		}
		port, err := spireg.Open(name)
		if err != nil {
			return nil, err
		}
		return periphPort{port: port}, nil
	}

	pinByName = func(name string) (pinOut, error) {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
		}
		return pin, nil
	}
)

// Config names the SPI port and the GPIO lines of a spidev link
type Config struct {
	// BusName is the periph SPI port name, such as "/dev/spidev0.0" or
	// "SPI0.0". Empty selects the first port.
	BusName string
	// ChipSelectPin is the GPIO driving the module's chip-select line
	ChipSelectPin string
	// PowerPin is the GPIO switching the module's supply. Empty if the
	// module is always powered.
	PowerPin string
}

// Link implements spibridge.Link over spidev. The kernel chip-select is
// disabled so that one chip-select bracket can span several transfers.
//
// A periph port accepts a single Connect, so changing speed or wire mode
// after the first transaction closes and reopens the port.
type Link struct {
	port    busPort
	conn    txer
	cs      pinOut
	power   pinOut
	reopen  func(name string) (busPort, error)
	busName string
	name    string
	freq    physic.Frequency
	mode    spi.Mode
}

// Open opens the SPI port and claims the GPIO lines. Chip-select is driven
// high straight away.
func Open(cfg Config) (*Link, error) {
	if cfg.ChipSelectPin == "" {
		return nil, fmt.Errorf("%w: chip-select pin is required", spibridge.ErrInvalidParameter)
	}

	port, err := openBus(cfg.BusName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", cfg.BusName, err)
	}

	cs, err := pinByName(cfg.ChipSelectPin)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	if err := cs.Out(gpio.High); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to release chip-select %s: %w", cfg.ChipSelectPin, err)
	}

	var power pinOut
	if cfg.PowerPin != "" {
		power, err = pinByName(cfg.PowerPin)
		if err != nil {
			_ = port.Close()
			return nil, err
		}
	}

	name := cfg.BusName
	if name == "" {
		name = "spidev"
	}

	return &Link{
		port:    port,
		cs:      cs,
		power:   power,
		reopen:  openBus,
		busName: cfg.BusName,
		name:    name,
		freq:    spibridge.Speed2MHz.Frequency(),
		mode:    wireMode(spibridge.DefaultWireConfig()),
	}, nil
}

// wireMode maps the adapter wire configuration onto a periph SPI mode.
// The output type is fixed by the board and has no equivalent.
func wireMode(cfg spibridge.WireConfig) spi.Mode {
	mode := spi.Mode0
	if cfg.ClockIdleHigh {
		mode |= spi.Mode2
	}
	if !cfg.ClockActiveToIdle {
		mode |= spi.Mode1
	}
	return mode | spi.NoCS
}

// Name returns the SPI port name
func (l *Link) Name() string {
	return l.name
}

// Type returns the link type
func (*Link) Type() spibridge.LinkType {
	return spibridge.LinkSPIDev
}

// Reset releases chip-select. The connection is kept.
func (l *Link) Reset() error {
	if l.port == nil {
		return ErrClosed
	}
	if err := l.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to release chip-select: %w", err)
	}
	return nil
}

// EnterRawMode reports whether the port is open. A spidev port has no
// adapter modes.
func (l *Link) EnterRawMode() (bool, error) {
	return l.port != nil, nil
}

// EnterSPIMode reports whether the port is open
func (l *Link) EnterSPIMode() (bool, error) {
	return l.port != nil, nil
}

// SetSpeed selects the clock used by the next connection
func (l *Link) SetSpeed(speed spibridge.Speed) error {
	if !speed.Valid() {
		return fmt.Errorf("%w: speed selector %d", spibridge.ErrInvalidParameter, byte(speed))
	}
	if l.port == nil {
		return ErrClosed
	}
	freq := speed.Frequency()
	if freq == l.freq {
		return nil
	}
	l.freq = freq
	return l.disconnect()
}

// SetWireConfig sets clock polarity and phase for the next connection
func (l *Link) SetWireConfig(cfg spibridge.WireConfig) error {
	if l.port == nil {
		return ErrClosed
	}
	mode := wireMode(cfg)
	if mode == l.mode {
		return nil
	}
	l.mode = mode
	return l.disconnect()
}

// disconnect drops the current connection by reopening the port, so the
// next transaction can connect with new settings
func (l *Link) disconnect() error {
	if l.conn == nil {
		return nil
	}
	l.conn = nil
	if err := l.port.Close(); err != nil {
		l.port = nil
		return fmt.Errorf("failed to close %s for reconnect: %w", l.name, err)
	}
	port, err := l.reopen(l.busName)
	if err != nil {
		l.port = nil
		return fmt.Errorf("failed to reopen %s: %w", l.name, err)
	}
	l.port = port
	return nil
}

// SetPinConfig switches the power rail. Pull-ups and AUX have no GPIO on
// this link and are ignored.
func (l *Link) SetPinConfig(cfg spibridge.PinConfig) error {
	if l.port == nil {
		return ErrClosed
	}
	if l.power == nil {
		return nil
	}
	level := gpio.Low
	if cfg.Power {
		level = gpio.High
	}
	if err := l.power.Out(level); err != nil {
		return fmt.Errorf("failed to switch power rail: %w", err)
	}
	return nil
}

// AssertChipSelect connects on first use and pulls chip-select low
func (l *Link) AssertChipSelect() error {
	if l.port == nil {
		return ErrClosed
	}
	if l.conn == nil {
		conn, err := l.port.Connect(l.freq, l.mode, 8)
		if err != nil {
			return fmt.Errorf("failed to connect to %s at %s: %w", l.name, l.freq, err)
		}
		l.conn = conn
	}
	if err := l.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to assert chip-select: %w", err)
	}
	return nil
}

// DeassertChipSelect releases chip-select high
func (l *Link) DeassertChipSelect() error {
	if l.port == nil {
		return ErrClosed
	}
	if err := l.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to release chip-select: %w", err)
	}
	return nil
}

// BulkTransfer clocks out 1 to 16 bytes full duplex
func (l *Link) BulkTransfer(out []byte) ([]byte, error) {
	if len(out) == 0 || len(out) > spibridge.MaxTransferSize {
		return nil, fmt.Errorf("%w: %d bytes", spibridge.ErrTransferSize, len(out))
	}
	if l.port == nil {
		return nil, ErrClosed
	}
	if l.conn == nil {
		return nil, fmt.Errorf("%w: transfer outside chip-select", spibridge.ErrChipSelect)
	}

	in := make([]byte, len(out))
	if err := l.conn.Tx(out, in); err != nil {
		return nil, fmt.Errorf("SPI transfer on %s: %w", l.name, err)
	}
	return in, nil
}

// Close releases the SPI port. It is safe to call more than once.
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}
	port := l.port
	l.port = nil
	l.conn = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", l.name, err)
	}
	return nil
}

// Ensure Link implements the bridge interfaces
var (
	_ spibridge.Link      = (*Link)(nil)
	_ spibridge.LinkNamer = (*Link)(nil)
)
