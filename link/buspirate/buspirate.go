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

// Package buspirate provides a Bus Pirate binary SPI mode link
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	spibridge "github.com/ZaparooProject/go-spibridge"
	"github.com/ZaparooProject/go-spibridge/internal/frame"
	"github.com/ZaparooProject/go-spibridge/internal/retry"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the Bus Pirate binary mode line speed
	DefaultBaudRate = 115200
	// DefaultTimeout bounds the wait for each reply
	DefaultTimeout = 100 * time.Millisecond
	// DefaultResetDelay is the pause after each reset command
	DefaultResetDelay = 100 * time.Millisecond

	// readSlice is the serial read timeout used while waiting for a reply
	readSlice = 10 * time.Millisecond
)

var (
	// ErrNoAck is returned when a command is not acknowledged with 0x01
	ErrNoAck = errors.New("bus pirate did not acknowledge command")
	// ErrTimeout is returned when a reply does not arrive in time
	ErrTimeout = errors.New("bus pirate reply timeout")
	// ErrClosed is returned when the link is used after Close
	ErrClosed = errors.New("bus pirate link closed")
)

// serialPort is the subset of serial.Port the link uses
type serialPort interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// openPort opens a serial device. It's a variable so tests can substitute
// a simulated adapter.
var openPort = func(name string, mode *serial.Mode) (serialPort, error) {
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Config contains the serial settings of a Bus Pirate link
type Config struct {
	BaudRate   int
	Timeout    time.Duration
	ResetDelay time.Duration
}

// DefaultConfig returns the settings for a Bus Pirate v3/v4
func DefaultConfig() Config {
	return Config{
		BaudRate:   DefaultBaudRate,
		Timeout:    DefaultTimeout,
		ResetDelay: DefaultResetDelay,
	}
}

// Option adjusts the link configuration
type Option func(*Config)

// WithBaudRate overrides the serial line speed
func WithBaudRate(baud int) Option {
	return func(c *Config) {
		c.BaudRate = baud
	}
}

// WithTimeout sets how long to wait for each reply
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithResetDelay sets the pause after each reset command
func WithResetDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.ResetDelay = delay
	}
}

// Link implements spibridge.Link for a Bus Pirate in binary SPI mode
type Link struct {
	port     serialPort
	portName string
	config   Config
	reply    []byte
}

// Open opens the Bus Pirate serial port at 8N1. The adapter is left in
// whatever mode it was in; the bridge resets it during its own setup.
func Open(portName string, opts ...Option) (*Link, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open bus pirate %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readSlice); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return newLink(port, portName, config), nil
}

func newLink(port serialPort, portName string, config Config) *Link {
	return &Link{
		port:     port,
		portName: portName,
		config:   config,
		reply:    make([]byte, 1+frame.MaxBulkLength),
	}
}

// Name returns the serial port name
func (l *Link) Name() string {
	return l.portName
}

// Type returns the link type
func (*Link) Type() spibridge.LinkType {
	return spibridge.LinkBusPirate
}

// Reset leaves any binary mode and returns the adapter to its user
// terminal. Pending replies are discarded.
func (l *Link) Reset() error {
	if l.port == nil {
		return ErrClosed
	}
	if err := l.write(frame.EnterRawMode); err != nil {
		return err
	}
	time.Sleep(l.config.ResetDelay)
	if err := l.write(frame.HardwareReset); err != nil {
		return err
	}
	time.Sleep(l.config.ResetDelay)
	return l.flush()
}

// EnterRawMode sends up to 20 zero bytes until the adapter answers with its
// raw mode banner. It reports false if the adapter never answers.
func (l *Link) EnterRawMode() (bool, error) {
	if l.port == nil {
		return false, ErrClosed
	}
	if err := l.flush(); err != nil {
		return false, err
	}

	banner := l.reply[:len(frame.RawModeBanner)]
	_, err := retry.Do(retry.Config{
		Description: "enter raw mode",
		MaxAttempts: frame.MaxRawAttempts,
	}, func() (struct{}, bool, error) {
		if err := l.write(frame.EnterRawMode); err != nil {
			return struct{}{}, false, err
		}
		err := l.readFull(banner)
		if errors.Is(err, ErrTimeout) {
			return struct{}{}, true, nil
		}
		if err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, !bytes.Equal(banner, frame.RawModeBanner), nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Extra banners from earlier zero bytes may still be queued.
	return true, l.flush()
}

// EnterSPIMode switches from raw mode into SPI mode. It reports false if
// the adapter does not answer with the SPI banner.
func (l *Link) EnterSPIMode() (bool, error) {
	if l.port == nil {
		return false, ErrClosed
	}
	if err := l.write(frame.EnterSPIMode); err != nil {
		return false, err
	}
	banner := l.reply[:len(frame.SPIModeBanner)]
	err := l.readFull(banner)
	if errors.Is(err, ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bytes.Equal(banner, frame.SPIModeBanner), nil
}

// SetSpeed selects the SPI clock
func (l *Link) SetSpeed(speed spibridge.Speed) error {
	if !speed.Valid() {
		return fmt.Errorf("%w: speed selector %d", spibridge.ErrInvalidParameter, byte(speed))
	}
	return l.command("setSpeed", frame.Speed(byte(speed)))
}

// SetWireConfig sets output type, clock polarity, clock edge and sample point
func (l *Link) SetWireConfig(cfg spibridge.WireConfig) error {
	return l.command("setWireConfig", frame.Nibble(frame.SPIConfig, cfg.Bits()))
}

// SetPinConfig drives the power rail, pull-ups, AUX and CS pins
func (l *Link) SetPinConfig(cfg spibridge.PinConfig) error {
	return l.command("setPinConfig", frame.Nibble(frame.PinConfig, cfg.Bits()))
}

// AssertChipSelect pulls chip-select low
func (l *Link) AssertChipSelect() error {
	return l.command("assertCS", frame.ChipSelectLow)
}

// DeassertChipSelect releases chip-select high
func (l *Link) DeassertChipSelect() error {
	return l.command("deassertCS", frame.ChipSelectHigh)
}

// BulkTransfer clocks out 1 to 16 bytes and returns the bytes clocked in
func (l *Link) BulkTransfer(out []byte) ([]byte, error) {
	if len(out) == 0 || len(out) > frame.MaxBulkLength {
		return nil, fmt.Errorf("%w: %d bytes", spibridge.ErrTransferSize, len(out))
	}
	if l.port == nil {
		return nil, ErrClosed
	}

	cmd := make([]byte, 0, 1+len(out))
	cmd = append(cmd, frame.Bulk(len(out)))
	cmd = append(cmd, out...)
	if _, err := l.port.Write(cmd); err != nil {
		return nil, fmt.Errorf("bulk transfer write on %s: %w", l.portName, err)
	}

	reply := l.reply[:1+len(out)]
	if err := l.readFull(reply); err != nil {
		return nil, fmt.Errorf("bulk transfer of %d bytes: %w", len(out), err)
	}
	if reply[0] != frame.Ack {
		return nil, fmt.Errorf("%w: bulk transfer reply 0x%02x", ErrNoAck, reply[0])
	}

	in := make([]byte, len(out))
	copy(in, reply[1:])
	return in, nil
}

// Close closes the serial port. It is safe to call more than once.
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}
	port := l.port
	l.port = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", l.portName, err)
	}
	return nil
}

// command sends a single byte command and waits for its ack
func (l *Link) command(op string, cmd byte) error {
	if l.port == nil {
		return ErrClosed
	}
	if err := l.write(cmd); err != nil {
		return err
	}
	ack := l.reply[:1]
	if err := l.readFull(ack); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ack[0] != frame.Ack {
		return fmt.Errorf("%w: %s reply 0x%02x", ErrNoAck, op, ack[0])
	}
	return nil
}

func (l *Link) write(cmd byte) error {
	if _, err := l.port.Write([]byte{cmd}); err != nil {
		return fmt.Errorf("write 0x%02x to %s: %w", cmd, l.portName, err)
	}
	return nil
}

// readFull fills p or returns ErrTimeout once the reply timeout passes.
// A serial read returns 0, nil when its own short timeout expires.
func (l *Link) readFull(p []byte) error {
	deadline := time.Now().Add(l.config.Timeout)
	got := 0
	for got < len(p) {
		n, err := l.port.Read(p[got:])
		if err != nil {
			return fmt.Errorf("read from %s: %w", l.portName, err)
		}
		got += n
		if n == 0 && time.Now().After(deadline) {
			return fmt.Errorf("%w: got %d of %d bytes", ErrTimeout, got, len(p))
		}
	}
	return nil
}

func (l *Link) flush() error {
	if err := l.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", l.portName, err)
	}
	return nil
}

// Ensure Link implements the bridge interfaces
var (
	_ spibridge.Link      = (*Link)(nil)
	_ spibridge.LinkNamer = (*Link)(nil)
)
