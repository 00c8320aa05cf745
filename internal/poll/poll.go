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

// Package poll provides the polling loop shared by the stream helpers
package poll

import (
	"context"
	"fmt"
	"time"
)

// DefaultInterval is used when a non-positive interval is passed to Until
const DefaultInterval = time.Millisecond

// Operation represents one polling attempt
// Returns: data, done, error
// - data: the result when done is true
// - done: true if polling should stop and return data
// - error: any permanent error that should stop polling
type Operation[T any] func() (T, bool, error)

// Until runs operation until it reports done, fails, or ctx is finished.
// When ctx ends first, the last result is returned alongside the wrapped
// context error so partial progress is not lost.
func Until[T any](ctx context.Context, interval time.Duration, operation Operation[T]) (T, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	var last T
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		select {
		case <-ctx.Done():
			return last, fmt.Errorf("polling stopped: %w", ctx.Err())
		default:
		}

		result, done, err := operation()
		last = result
		if err != nil {
			return result, err
		}
		if done {
			return result, nil
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return last, fmt.Errorf("polling stopped: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
