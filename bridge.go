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
	"io"
	"sync"

	"github.com/ZaparooProject/go-spibridge/internal/buffer"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Bridge presents a bus transaction Link as a serial byte stream.
//
// Reads are served from a look-ahead buffer. When the buffer is empty a
// refill clocks ProbeSize filler bytes through the bus inside one
// chip-select bracket and keeps whatever came back. Writes are split into
// ChunkSize transfers inside a single chip-select bracket; the bytes clocked
// in while writing are kept for later reads.
//
// Thread Safety: Bridge is safe for concurrent use. One mutex serializes every
// bus transaction and every buffer mutation, so a polling reader goroutine and
// a writer goroutine can share a Bridge. No two logical operations interleave
// their transfers.
type Bridge struct {
	link   Link
	failed error
	logger *zap.SugaredLogger
	config *Config
	buf    *buffer.Queue
	name   string
	probe  []byte
	open   atomic.Bool
	mu     sync.Mutex

	// spiMode is set once the adapter has entered SPI mode and accepts
	// pin configuration
	spiMode bool
}

// Open configures the adapter behind link and returns a ready bridge.
//
// The adapter is reset, switched into raw mode and then SPI mode, given its
// speed and wire configuration, and finally powered. Open takes ownership of
// link: if any step fails the adapter is powered down, reset and closed, and
// no Bridge is returned. A nil logger is a configuration error.
func Open(link Link, logger *zap.SugaredLogger, opts ...Option) (*Bridge, error) {
	if link == nil {
		return nil, NewConfigurationError("open", fmt.Errorf("%w: nil link", ErrInvalidParameter))
	}
	if logger == nil {
		_ = link.Close()
		return nil, NewConfigurationError("open", ErrNoLogger)
	}

	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(config); err != nil {
			_ = link.Close()
			return nil, NewConfigurationError("open", err)
		}
	}
	if err := config.validate(); err != nil {
		_ = link.Close()
		return nil, NewConfigurationError("open", err)
	}

	name := linkName(link)
	b := &Bridge{
		link:   link,
		logger: logger.With("link", name),
		config: config,
		buf:    buffer.NewQueue(4 * MaxTransferSize),
		name:   name,
		probe:  makeProbe(config.ProbeSize, config.Filler),
	}

	b.logger.Infow("bridge starting", "type", link.Type(), "speed", config.Speed)

	if err := b.configure(); err != nil {
		b.logger.Errorw("bridge failed to start", "error", err)
		if teardownErr := b.teardown(); teardownErr != nil {
			b.logger.Warnw("bridge teardown after failed start", "error", teardownErr)
		}
		return nil, err
	}

	b.open.Store(true)
	b.logger.Infow("bridge configured")
	return b, nil
}

func makeProbe(size int, filler byte) []byte {
	probe := make([]byte, size)
	for i := range probe {
		probe[i] = filler
	}
	return probe
}

// configure walks the adapter through the mode transitions needed before
// the first transaction
func (b *Bridge) configure() error {
	if err := b.link.Reset(); err != nil {
		return NewAdapterModeError("reset", b.name, err)
	}

	ok, err := b.link.EnterRawMode()
	if err != nil {
		return NewAdapterModeError("enterRawMode", b.name, fmt.Errorf("%w: %w", ErrRawMode, err))
	}
	if !ok {
		return NewAdapterModeError("enterRawMode", b.name, ErrRawMode)
	}

	ok, err = b.link.EnterSPIMode()
	if err != nil {
		return NewAdapterModeError("enterSPIMode", b.name, fmt.Errorf("%w: %w", ErrSPIMode, err))
	}
	if !ok {
		return NewAdapterModeError("enterSPIMode", b.name, ErrSPIMode)
	}
	b.spiMode = true

	if err := b.link.SetSpeed(b.config.Speed); err != nil {
		return NewAdapterModeError("setSpeed", b.name, fmt.Errorf("%w: %w", ErrAdapterSetup, err))
	}
	if err := b.link.SetWireConfig(b.config.WireConfig); err != nil {
		return NewAdapterModeError("setWireConfig", b.name, fmt.Errorf("%w: %w", ErrAdapterSetup, err))
	}
	if err := b.link.SetPinConfig(b.config.PinConfig); err != nil {
		return NewAdapterModeError("setPinConfig", b.name, fmt.Errorf("%w: %w", ErrAdapterSetup, err))
	}
	return nil
}

// Name returns the name of the adapter behind the bridge
func (b *Bridge) Name() string {
	return b.name
}

// IsOpen returns true until Close is called or a transport failure occurs
func (b *Bridge) IsOpen() bool {
	return b.open.Load()
}

// Available returns the number of buffered bytes, performing one refill
// first when the buffer is empty. It reports whatever a single refill
// produced and never waits for more.
func (b *Bridge) Available() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.usableLocked("available"); err != nil {
		return 0, err
	}
	if b.buf.Len() == 0 {
		if err := b.refillLocked(); err != nil {
			return 0, err
		}
	}
	return b.buf.Len(), nil
}

// Buffered returns the number of bytes already buffered without touching
// the bus
func (b *Bridge) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Read copies up to len(p) bytes from the front of the buffer into p,
// refilling once if the buffer is empty. It returns 0, nil when the refill
// produced no data; callers that need a minimum amount should keep reading
// (see ReadFullContext).
func (b *Bridge) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.usableLocked("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if b.buf.Len() == 0 {
		if err := b.refillLocked(); err != nil {
			return 0, err
		}
	}
	return b.buf.Read(p), nil
}

// ReadN removes and returns up to maxSize bytes, refilling once if the
// buffer is empty. The result is shorter than maxSize, possibly empty, when
// fewer bytes are available.
func (b *Bridge) ReadN(maxSize int) ([]byte, error) {
	if maxSize < 0 {
		return nil, NewConfigurationError("read", fmt.Errorf("%w: negative size %d", ErrInvalidParameter, maxSize))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.usableLocked("read"); err != nil {
		return nil, err
	}
	if maxSize == 0 {
		return []byte{}, nil
	}
	if b.buf.Len() == 0 {
		if err := b.refillLocked(); err != nil {
			return nil, err
		}
	}
	return b.buf.Next(maxSize), nil
}

// Write sends p to the module. The payload is split into ChunkSize bulk
// transfers bracketed by a single chip-select assert/deassert pair. Bytes
// clocked in during the transfers are appended to the read buffer. Any
// failure is fatal to the session.
func (b *Bridge) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.usableLocked("write"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	b.logger.Infof("write(): % x", p)

	if err := b.link.AssertChipSelect(); err != nil {
		return 0, b.failLocked("write", ErrChipSelect, err)
	}

	written := 0
	var transferErr error
	for written < len(p) {
		chunk := p[written:min(written+b.config.ChunkSize, len(p))]
		b.logger.Debugf("bulk transfer(%d)", len(chunk))
		in, err := b.link.BulkTransfer(chunk)
		if err != nil {
			transferErr = err
			break
		}
		b.buf.Write(in)
		written += len(chunk)
	}

	deassertErr := b.link.DeassertChipSelect()
	if transferErr != nil {
		return written, b.failLocked("write", ErrTransfer, transferErr)
	}
	if deassertErr != nil {
		return written, b.failLocked("write", ErrChipSelect, deassertErr)
	}
	return written, nil
}

// refillLocked clocks one probe through the bus and keeps the result.
// The adapter has no "no data" signal, so the probe is always full size.
func (b *Bridge) refillLocked() error {
	if err := b.link.AssertChipSelect(); err != nil {
		return b.failLocked("refill", ErrChipSelect, err)
	}
	in, transferErr := b.link.BulkTransfer(b.probe)
	deassertErr := b.link.DeassertChipSelect()
	if transferErr != nil {
		return b.failLocked("refill", ErrTransfer, transferErr)
	}
	if deassertErr != nil {
		return b.failLocked("refill", ErrChipSelect, deassertErr)
	}

	b.buf.Write(in)
	b.logger.Debugf("refill(): % x (l = %d)", in, b.buf.Len())
	return nil
}

// usableLocked returns an error when the session can no longer talk to the bus
func (b *Bridge) usableLocked(op string) error {
	if b.link == nil {
		return NewClosedError(op, b.name)
	}
	if b.failed != nil {
		return NewTransportError(op, b.name, fmt.Errorf("%w: %w", ErrSessionFailed, b.failed))
	}
	return nil
}

// failLocked records a fatal transport failure. The link stays attached so
// Close can still power the adapter down.
func (b *Bridge) failLocked(op string, kind, cause error) error {
	err := NewTransportError(op, b.name, fmt.Errorf("%w: %w", kind, cause))
	b.failed = err
	b.open.Store(false)
	b.logger.Errorw("bridge transport failure", "op", op, "error", cause)
	return err
}

// Close powers the adapter down, resets it to its default mode and releases
// the link. Teardown failures are logged and never returned, so Close is safe
// to call from cleanup paths and more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.link == nil {
		b.logger.Debugw("bridge already closed")
		return nil
	}

	b.open.Store(false)
	if err := b.teardown(); err != nil {
		b.logger.Warnw("bridge teardown failed", "error", err)
	}
	b.buf.Reset()
	b.logger.Infow("bridge stopped")
	return nil
}

// teardown turns the power rail off, resets the adapter and closes the link.
// Every step runs even if an earlier one failed. The power step is skipped
// when the adapter never entered SPI mode.
func (b *Bridge) teardown() error {
	link := b.link
	b.link = nil
	if link == nil {
		return nil
	}
	// An adapter that never reached SPI mode cannot take pin commands.
	var powerErr error
	if b.spiMode {
		powerErr = teardownError("setPinConfig", b.name, link.SetPinConfig(PinConfig{}))
	}
	return multierr.Combine(
		powerErr,
		teardownError("reset", b.name, link.Reset()),
		teardownError("close", b.name, link.Close()),
	)
}

func teardownError(op, port string, err error) error {
	if err == nil {
		return nil
	}
	return &BridgeError{Op: op, Port: port, Err: fmt.Errorf("%w: %w", ErrTeardown, err), Kind: KindTeardown}
}

// Ensure Bridge implements the stream interfaces
var (
	_ Port               = (*Bridge)(nil)
	_ io.ReadWriteCloser = (*Bridge)(nil)
)
