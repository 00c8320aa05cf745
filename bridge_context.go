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
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-spibridge/internal/poll"
)

// WaitAvailable polls Available until at least one byte is buffered or ctx
// is done. Each poll is one refill transaction at most.
func (b *Bridge) WaitAvailable(ctx context.Context) (int, error) {
	n, err := poll.Until(ctx, b.config.PollInterval, func() (int, bool, error) {
		n, err := b.Available()
		if err != nil {
			return 0, false, err
		}
		return n, n > 0, nil
	})
	if err != nil {
		return n, fmt.Errorf("wait for data on %s: %w", b.name, err)
	}
	return n, nil
}

// ReadFullContext reads until p is full or ctx is done. It is built from
// bounded Read calls, so the bridge lock is released between polls and
// writers are never starved. On cancellation the bytes read so far are kept
// in p and their count is returned with the context error.
func (b *Bridge) ReadFullContext(ctx context.Context, p []byte) (int, error) {
	return ReadFullContext(ctx, b, p, b.config.PollInterval)
}

// ReadFullContext fills p from any Port by repeated bounded reads, waiting
// interval between reads that return nothing
func ReadFullContext(ctx context.Context, port Port, p []byte, interval time.Duration) (int, error) {
	total := 0
	_, err := poll.Until(ctx, interval, func() (int, bool, error) {
		for total < len(p) {
			n, err := port.Read(p[total:])
			if err != nil {
				return total, false, err
			}
			if n == 0 {
				return total, false, nil
			}
			total += n
		}
		return total, true, nil
	})
	if err != nil {
		return total, fmt.Errorf("read %d of %d bytes: %w", total, len(p), err)
	}
	return total, nil
}
