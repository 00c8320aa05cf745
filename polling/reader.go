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

// Package polling runs a background reader over a bridge port and hands
// received bytes to a callback
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	spibridge "github.com/ZaparooProject/go-spibridge"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrReaderRunning is returned by Start on a reader that is already running
	ErrReaderRunning = errors.New("reader already running")
	// ErrReaderNotRunning is returned by Stop on a reader that was never started
	ErrReaderNotRunning = errors.New("reader not running")
)

// Callbacks receive reader events. They run on the poll goroutine and
// should return quickly.
type Callbacks struct {
	// OnData receives a copy of every non-empty read
	OnData func(data []byte)
	// OnError receives read failures. The reader stops after a fatal one.
	OnError func(err error)
	// OnStateChange is called when the stream turns active or idle
	OnStateChange func(state StreamState)
}

// Metrics is a snapshot of reader counters
type Metrics struct {
	PollCycles      int64
	BytesRead       int64
	PollErrors      int64
	LastPollLatency time.Duration
	State           StreamState
}

// Reader polls a port in the background. The port's own lock keeps the
// reader's polls and the caller's writes from interleaving on the bus.
type Reader struct {
	port      spibridge.Port
	logger    *zap.SugaredLogger
	config    *Config
	callbacks Callbacks
	cancel    context.CancelFunc
	done      chan struct{}
	err       error

	pollCycles  atomic.Int64
	bytesRead   atomic.Int64
	pollErrors  atomic.Int64
	lastLatency atomic.Duration
	state       atomic.Int32

	mu      sync.Mutex
	running bool
}

// NewReader creates a reader for port. A nil config selects DefaultConfig
// and a nil logger discards output.
func NewReader(port spibridge.Port, config *Config, callbacks Callbacks, logger *zap.SugaredLogger) (*Reader, error) {
	if port == nil {
		return nil, fmt.Errorf("%w: port is required", spibridge.ErrInvalidParameter)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", spibridge.ErrInvalidParameter, err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reader{
		port:      port,
		logger:    logger,
		config:    config,
		callbacks: callbacks,
	}, nil
}

// Start launches the poll goroutine. It stops when ctx is done, Stop is
// called, or a read fails fatally.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrReaderRunning
	}
	if !r.port.IsOpen() {
		return fmt.Errorf("start reader: %w", spibridge.ErrBridgeClosed)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.err = nil
	r.running = true

	go r.pollLoop(loopCtx, r.done)
	return nil
}

// Stop cancels the poll goroutine and waits for it to exit. It returns the
// fatal read error that ended the loop, if any.
func (r *Reader) Stop() error {
	r.mu.Lock()
	if r.done == nil {
		r.mu.Unlock()
		return ErrReaderNotRunning
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = nil
	return r.err
}

// Done is closed when the poll goroutine exits
func (r *Reader) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// IsRunning returns true while the poll goroutine is active
func (r *Reader) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Metrics returns a snapshot of the reader counters
func (r *Reader) Metrics() Metrics {
	return Metrics{
		PollCycles:      r.pollCycles.Load(),
		BytesRead:       r.bytesRead.Load(),
		PollErrors:      r.pollErrors.Load(),
		LastPollLatency: r.lastLatency.Load(),
		State:           StreamState(r.state.Load()),
	}
}

func (r *Reader) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var act activity
	defer act.stop()

	buf := make([]byte, r.config.ReadSize)
	interval := r.config.IdlePollInterval
	timer := time.NewTimer(0)
	defer safeTimerStop(timer)

	for {
		select {
		case <-ctx.Done():
			r.finish(nil)
			return
		case <-act.idleC():
			act.transitionToIdle()
			r.setState(StateIdle)
			interval = r.config.IdlePollInterval
		case <-timer.C:
			n, err := r.pollOnce(buf)
			if err != nil {
				if spibridge.IsFatal(err) || !r.port.IsOpen() {
					r.finish(err)
					return
				}
			} else if n > 0 && !r.config.IsIdle(buf[:n]) {
				if act.markData(time.Now(), r.config.IdleTimeout) {
					r.setState(StateActive)
				}
				interval = r.config.PollInterval
			}
			// Drain without waiting while a poll fills the whole buffer.
			if n == len(buf) {
				timer.Reset(0)
			} else {
				timer.Reset(interval)
			}
		}
	}
}

func (r *Reader) pollOnce(buf []byte) (int, error) {
	start := time.Now()
	n, err := r.port.Read(buf)
	r.lastLatency.Store(time.Since(start))
	r.pollCycles.Inc()

	if err != nil {
		r.pollErrors.Inc()
		r.logger.Debugw("poll read failed", "error", err)
		if r.callbacks.OnError != nil {
			r.callbacks.OnError(err)
		}
		return 0, err
	}
	if n > 0 {
		r.bytesRead.Add(int64(n))
		if r.callbacks.OnData != nil {
			r.callbacks.OnData(append([]byte(nil), buf[:n]...))
		}
	}
	return n, nil
}

func (r *Reader) setState(state StreamState) {
	r.state.Store(int32(state))
	r.logger.Debugw("stream state changed", "state", state.String())
	if r.callbacks.OnStateChange != nil {
		r.callbacks.OnStateChange(state)
	}
}

func (r *Reader) finish(err error) {
	if err != nil {
		r.logger.Warnw("reader stopped on read failure", "error", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.running = false
}
