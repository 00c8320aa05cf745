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
	"errors"
	"fmt"
)

// Configuration errors
var (
	ErrNoLogger         = errors.New("no logger provided")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Adapter mode errors
var (
	ErrRawMode      = errors.New("adapter failed to enter raw bit-bang mode")
	ErrSPIMode      = errors.New("adapter failed to enter SPI mode")
	ErrAdapterSetup = errors.New("adapter configuration rejected")
)

// Transport errors
var (
	ErrTransfer      = errors.New("bulk transfer failed")
	ErrChipSelect    = errors.New("chip-select control failed")
	ErrTransferSize  = errors.New("transfer size out of range")
	ErrSessionFailed = errors.New("bridge session failed")
)

// Lifecycle errors
var (
	ErrBridgeClosed = errors.New("bridge closed")
	ErrTeardown     = errors.New("bridge teardown failed")
)

// ErrorKind classifies bridge errors by how the caller is expected to react
type ErrorKind int

const (
	// KindUnknown is used for errors the bridge did not classify
	KindUnknown ErrorKind = iota
	// KindConfiguration means the bridge was opened with bad parameters
	KindConfiguration
	// KindAdapterMode means the adapter refused a mode transition during open
	KindAdapterMode
	// KindTransport means a bus transaction failed; the session is unusable
	KindTransport
	// KindTeardown means power-off or reset failed while closing
	KindTeardown
	// KindClosed means the operation was attempted on a closed bridge
	KindClosed
)

// String returns a human readable name for the kind
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAdapterMode:
		return "adapter-mode"
	case KindTransport:
		return "transport"
	case KindTeardown:
		return "teardown"
	case KindClosed:
		return "closed"
	case KindUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// BridgeError carries the failing operation and the adapter it ran against
type BridgeError struct {
	Err  error
	Op   string
	Port string
	Kind ErrorKind
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s on %s: %v", e.Kind, e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(op string, err error) *BridgeError {
	return &BridgeError{Op: op, Err: err, Kind: KindConfiguration}
}

// NewAdapterModeError creates an adapter mode error
func NewAdapterModeError(op, port string, err error) *BridgeError {
	return &BridgeError{Op: op, Port: port, Err: err, Kind: KindAdapterMode}
}

// NewTransportError creates a transport error
func NewTransportError(op, port string, err error) *BridgeError {
	return &BridgeError{Op: op, Port: port, Err: err, Kind: KindTransport}
}

// NewClosedError creates an error for operations on a closed bridge
func NewClosedError(op, port string) *BridgeError {
	return &BridgeError{Op: op, Port: port, Err: ErrBridgeClosed, Kind: KindClosed}
}

// GetErrorKind returns the kind of a bridge error. Bare sentinels are
// classified too so link implementations can return them directly.
func GetErrorKind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var bridgeErr *BridgeError
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Kind
	}

	switch {
	case errors.Is(err, ErrNoLogger), errors.Is(err, ErrInvalidParameter):
		return KindConfiguration
	case errors.Is(err, ErrRawMode), errors.Is(err, ErrSPIMode), errors.Is(err, ErrAdapterSetup):
		return KindAdapterMode
	case errors.Is(err, ErrTransfer), errors.Is(err, ErrChipSelect),
		errors.Is(err, ErrTransferSize), errors.Is(err, ErrSessionFailed):
		return KindTransport
	case errors.Is(err, ErrTeardown):
		return KindTeardown
	case errors.Is(err, ErrBridgeClosed):
		return KindClosed
	default:
		return KindUnknown
	}
}

// IsFatal reports whether err leaves the session unusable. Only a reopen
// recovers from a fatal error; the bridge never retries internally.
func IsFatal(err error) bool {
	switch GetErrorKind(err) {
	case KindConfiguration, KindAdapterMode, KindTransport, KindClosed:
		return true
	case KindTeardown, KindUnknown:
		return false
	default:
		return false
	}
}
