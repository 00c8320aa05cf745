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

// Package retry runs adapter handshakes that need several attempts
package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt asked to be retried
var ErrExhausted = errors.New("attempts exhausted")

// Operation is one attempt. It returns the result, whether another attempt
// is wanted, and any error that should stop retrying at once.
type Operation[T any] func() (T, bool, error)

// Config configures retry behavior
type Config struct {
	// OnRetry runs between attempts. An error from it stops retrying.
	OnRetry     func() error
	Description string
	// MaxAttempts is the total number of attempts, at least one
	MaxAttempts int
	Delay       time.Duration
}

// Do runs operation until it succeeds, fails, or MaxAttempts attempts
// have asked to be retried
func Do[T any](config Config, operation Operation[T]) (T, error) {
	var zero T

	attempts := max(config.MaxAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, again, err := operation()
		if err != nil {
			return zero, err
		}
		if !again {
			return result, nil
		}
		if attempt == attempts {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, err
			}
		}
		if config.Delay > 0 {
			time.Sleep(config.Delay)
		}
	}

	return zero, fmt.Errorf("%s: %w after %d attempts", config.Description, ErrExhausted, attempts)
}
