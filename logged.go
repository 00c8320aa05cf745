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
	"encoding/hex"

	"go.uber.org/zap"
)

// LogOption is a bitmask for selecting which link operations to log
type LogOption uint8

const (
	// LogSetup logs reset, mode, speed and pin configuration calls
	LogSetup LogOption = 1 << iota
	// LogChipSelect logs chip-select edges
	LogChipSelect
	// LogTransfer logs every bulk transfer with its payloads
	LogTransfer

	// LogNone disables all operation logging
	LogNone LogOption = 0
	// LogAll logs everything
	LogAll = LogSetup | LogChipSelect | LogTransfer
)

// NewLoggedLink wraps a Link and logs the selected operations at debug
// level. Errors are always logged at warn level.
func NewLoggedLink(inner Link, logger *zap.SugaredLogger, opts LogOption) Link {
	return &loggedLink{
		inner:  inner,
		logger: logger.With("link", linkName(inner)),
		opts:   opts,
	}
}

type loggedLink struct {
	inner  Link
	logger *zap.SugaredLogger
	opts   LogOption
}

func (l *loggedLink) log(opt LogOption, op string, err error, keysAndValues ...any) {
	if err != nil {
		l.logger.Warnw("link "+op+" failed", append(keysAndValues, "error", err)...)
		return
	}
	if l.opts&opt != 0 {
		l.logger.Debugw("link "+op, keysAndValues...)
	}
}

func (l *loggedLink) Reset() error {
	err := l.inner.Reset()
	l.log(LogSetup, "reset", err)
	return err
}

func (l *loggedLink) EnterRawMode() (bool, error) {
	ok, err := l.inner.EnterRawMode()
	l.log(LogSetup, "enter raw mode", err, "ok", ok)
	return ok, err
}

func (l *loggedLink) EnterSPIMode() (bool, error) {
	ok, err := l.inner.EnterSPIMode()
	l.log(LogSetup, "enter SPI mode", err, "ok", ok)
	return ok, err
}

func (l *loggedLink) SetSpeed(speed Speed) error {
	err := l.inner.SetSpeed(speed)
	l.log(LogSetup, "set speed", err, "speed", speed.String())
	return err
}

func (l *loggedLink) SetWireConfig(cfg WireConfig) error {
	err := l.inner.SetWireConfig(cfg)
	l.log(LogSetup, "set wire config", err, "bits", cfg.Bits())
	return err
}

func (l *loggedLink) SetPinConfig(cfg PinConfig) error {
	err := l.inner.SetPinConfig(cfg)
	l.log(LogSetup, "set pin config", err, "bits", cfg.Bits())
	return err
}

func (l *loggedLink) AssertChipSelect() error {
	err := l.inner.AssertChipSelect()
	l.log(LogChipSelect, "cs assert", err)
	return err
}

func (l *loggedLink) DeassertChipSelect() error {
	err := l.inner.DeassertChipSelect()
	l.log(LogChipSelect, "cs deassert", err)
	return err
}

func (l *loggedLink) BulkTransfer(out []byte) ([]byte, error) {
	in, err := l.inner.BulkTransfer(out)
	l.log(LogTransfer, "bulk transfer", err, "out", hex.EncodeToString(out), "in", hex.EncodeToString(in))
	return in, err
}

func (l *loggedLink) Close() error {
	err := l.inner.Close()
	l.log(LogSetup, "close", err)
	return err
}

func (l *loggedLink) Type() LinkType {
	return l.inner.Type()
}

// Name forwards the wrapped link's name
func (l *loggedLink) Name() string {
	return linkName(l.inner)
}
