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

// Package uart provides a serial port that satisfies spibridge.Port, so a
// module wired to a plain UART can be driven by the same protocol code as
// one behind the SPI bridge
package uart

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	spibridge "github.com/ZaparooProject/go-spibridge"
	"github.com/ZaparooProject/go-spibridge/internal/buffer"
	"go.bug.st/serial"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate matches the factory setting of most serial radio modules
	DefaultBaudRate = 9600
	// DefaultReadTimeout bounds a single look-ahead read
	DefaultReadTimeout = 10 * time.Millisecond

	readChunk = 64
)

// ErrClosed is returned when the transport is used after Close
var ErrClosed = errors.New("uart transport closed")

type serialPort interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// openPort opens a serial device. It's a variable so tests can substitute
// an in-memory port.
var openPort = func(name string, mode *serial.Mode) (serialPort, error) {
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Config contains the serial settings of a transport
type Config struct {
	Logger      *zap.SugaredLogger
	BaudRate    int
	ReadTimeout time.Duration
}

// Option adjusts the transport configuration
type Option func(*Config)

// WithBaudRate sets the line speed
func WithBaudRate(baud int) Option {
	return func(c *Config) {
		c.BaudRate = baud
	}
}

// WithReadTimeout sets how long a single look-ahead read may wait
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = timeout
	}
}

// WithLogger sets the logger used for traffic at debug level
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Transport is a serial port with the look-ahead read semantic of the SPI
// bridge: Available and Read perform at most one bounded device read and
// never wait for more.
type Transport struct {
	port     serialPort
	logger   *zap.SugaredLogger
	buf      *buffer.Queue
	portName string
	chunk    []byte
	open     atomic.Bool
	mu       sync.Mutex
}

// New opens portName at 8N1
func New(portName string, opts ...Option) (*Transport, error) {
	config := Config{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	port, err := openPort(portName, &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(config.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", portName, err)
	}

	return newTransport(port, portName, config.Logger), nil
}

func newTransport(port serialPort, portName string, logger *zap.SugaredLogger) *Transport {
	t := &Transport{
		port:     port,
		logger:   logger.With("port", portName),
		buf:      buffer.NewQueue(readChunk),
		portName: portName,
		chunk:    make([]byte, readChunk),
	}
	t.open.Store(true)
	return t
}

// Name returns the serial port name
func (t *Transport) Name() string {
	return t.portName
}

// IsOpen returns true until Close is called or the port fails
func (t *Transport) IsOpen() bool {
	return t.open.Load()
}

// Available returns the number of buffered bytes, reading from the port
// once when the buffer is empty
func (t *Transport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, ErrClosed
	}
	if t.buf.Len() == 0 {
		if err := t.fillLocked(); err != nil {
			return 0, err
		}
	}
	return t.buf.Len(), nil
}

// Read copies buffered bytes into p, reading from the port once when the
// buffer is empty. It returns 0, nil when nothing arrived within the read
// timeout.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if t.buf.Len() == 0 {
		if err := t.fillLocked(); err != nil {
			return 0, err
		}
	}
	return t.buf.Read(p), nil
}

// Write sends all of p
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return 0, ErrClosed
	}

	t.logger.Debugf("write(): % x", p)
	written := 0
	for written < len(p) {
		n, err := t.port.Write(p[written:])
		written += n
		if err != nil {
			t.open.Store(false)
			return written, fmt.Errorf("UART write on %s: %w", t.portName, err)
		}
		if n == 0 {
			return written, fmt.Errorf("UART write on %s: %w", t.portName, io.ErrShortWrite)
		}
	}
	return written, nil
}

func (t *Transport) fillLocked() error {
	n, err := t.port.Read(t.chunk)
	if err != nil {
		t.open.Store(false)
		return fmt.Errorf("UART read on %s: %w", t.portName, err)
	}
	if n > 0 {
		t.buf.Write(t.chunk[:n])
		t.logger.Debugf("read(): % x (l = %d)", t.chunk[:n], t.buf.Len())
	}
	return nil
}

// Close closes the port. It is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.open.Store(false)
	if t.port == nil {
		return nil
	}
	port := t.port
	t.port = nil
	t.buf.Reset()
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// Ensure Transport implements spibridge.Port
var _ spibridge.Port = (*Transport)(nil)
