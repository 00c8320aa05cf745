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

package polling

import (
	"time"
)

// StreamState tracks whether the module has been sending data recently
type StreamState int

const (
	// StateIdle means no data arrived within the idle timeout
	StateIdle StreamState = iota
	// StateActive means data arrived recently
	StateActive
)

// String returns the state name
func (s StreamState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// activity is the idle/active state machine. The idle timer fires the
// transition back to idle; it is owned by the poll loop goroutine.
type activity struct {
	lastData  time.Time
	idleTimer *time.Timer
	state     StreamState
}

// safeTimerStop stops a timer and drains its channel if it already fired
func safeTimerStop(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// markData records incoming data and restarts the idle timer. It reports
// true on the idle to active transition.
func (a *activity) markData(now time.Time, timeout time.Duration) bool {
	wasIdle := a.state == StateIdle
	a.state = StateActive
	a.lastData = now
	safeTimerStop(a.idleTimer)
	a.idleTimer = time.NewTimer(timeout)
	return wasIdle
}

// idleC returns the channel that fires when the stream goes idle, or nil
// while already idle
func (a *activity) idleC() <-chan time.Time {
	if a.state == StateIdle || a.idleTimer == nil {
		return nil
	}
	return a.idleTimer.C
}

// transitionToIdle resets to the idle state
func (a *activity) transitionToIdle() {
	a.state = StateIdle
	safeTimerStop(a.idleTimer)
	a.idleTimer = nil
}

// stop releases the idle timer without changing state
func (a *activity) stop() {
	safeTimerStop(a.idleTimer)
	a.idleTimer = nil
}
