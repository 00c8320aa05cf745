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
	"sync"
	"time"
)

// LinkOp names a Link method in a MockLink call record
type LinkOp string

// Link operations recorded by MockLink
const (
	OpReset         LinkOp = "reset"
	OpEnterRawMode  LinkOp = "enterRawMode"
	OpEnterSPIMode  LinkOp = "enterSPIMode"
	OpSetSpeed      LinkOp = "setSpeed"
	OpSetWireConfig LinkOp = "setWireConfig"
	OpSetPinConfig  LinkOp = "setPinConfig"
	OpAssertCS      LinkOp = "assertCS"
	OpDeassertCS    LinkOp = "deassertCS"
	OpBulkTransfer  LinkOp = "bulkTransfer"
	OpClose         LinkOp = "close"
)

// LinkCall is one recorded call on a MockLink
type LinkCall struct {
	Op LinkOp
	// Data holds the outbound payload for transfers and the config byte
	// for setup calls
	Data []byte
}

// MockLink is an in-memory Link for tests. Bytes queued with Inject are
// clocked in by transfers in FIFO order, and every call is recorded so tests
// can check chip-select framing and chunking. It also records protocol
// violations such as a transfer outside a chip-select bracket or two
// overlapping calls.
type MockLink struct {
	errors       map[LinkOp]error
	transferFunc func(out []byte) ([]byte, error)
	idleFill     *byte
	name         string
	inbound      []byte
	calls        []LinkCall
	violations   []string
	brackets     [][]int
	delay        time.Duration
	inFlight     int
	closeCount   int
	mu           sync.Mutex
	rawModeOK    bool
	spiModeOK    bool
	csAsserted   bool
}

// NewMockLink creates a mock link whose mode transitions succeed
func NewMockLink() *MockLink {
	return &MockLink{
		errors:    make(map[LinkOp]error),
		name:      "mock",
		rawModeOK: true,
		spiModeOK: true,
	}
}

// Inject queues bytes the remote side will send on the next transfers
func (m *MockLink) Inject(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, p...)
}

// SetIdleFill makes transfers pad their reply with b once the injected
// bytes run out, the way real hardware always returns a full frame
func (m *MockLink) SetIdleFill(b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleFill = &b
}

// SetTransferFunc replaces the injected-queue behavior of BulkTransfer
func (m *MockLink) SetTransferFunc(fn func(out []byte) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transferFunc = fn
}

// SetError makes every later call of op fail with err. A nil err clears it.
func (m *MockLink) SetError(op LinkOp, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, op)
		return
	}
	m.errors[op] = err
}

// SetModeResults sets what EnterRawMode and EnterSPIMode report
func (m *MockLink) SetModeResults(rawOK, spiOK bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawModeOK = rawOK
	m.spiModeOK = spiOK
}

// SetTransferDelay makes each transfer take at least d
func (m *MockLink) SetTransferDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetName sets the name reported through LinkNamer
func (m *MockLink) SetName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

// begin records a call and flags overlapping calls
func (m *MockLink) begin(op LinkOp, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
	if m.inFlight > 1 {
		m.violations = append(m.violations, fmt.Sprintf("%s overlapped another call", op))
	}
	m.calls = append(m.calls, LinkCall{Op: op, Data: append([]byte(nil), data...)})
	return m.errors[op]
}

func (m *MockLink) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
}

func (m *MockLink) simple(op LinkOp, data ...byte) error {
	err := m.begin(op, data)
	m.end()
	return err
}

// Reset implements Link
func (m *MockLink) Reset() error {
	return m.simple(OpReset)
}

// EnterRawMode implements Link
func (m *MockLink) EnterRawMode() (bool, error) {
	if err := m.simple(OpEnterRawMode); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rawModeOK, nil
}

// EnterSPIMode implements Link
func (m *MockLink) EnterSPIMode() (bool, error) {
	if err := m.simple(OpEnterSPIMode); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spiModeOK, nil
}

// SetSpeed implements Link
func (m *MockLink) SetSpeed(speed Speed) error {
	return m.simple(OpSetSpeed, byte(speed))
}

// SetWireConfig implements Link
func (m *MockLink) SetWireConfig(cfg WireConfig) error {
	return m.simple(OpSetWireConfig, cfg.Bits())
}

// SetPinConfig implements Link
func (m *MockLink) SetPinConfig(cfg PinConfig) error {
	return m.simple(OpSetPinConfig, cfg.Bits())
}

// AssertChipSelect implements Link
func (m *MockLink) AssertChipSelect() error {
	err := m.begin(OpAssertCS, nil)
	defer m.end()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.csAsserted {
		m.violations = append(m.violations, "chip-select asserted twice")
	}
	m.csAsserted = true
	m.brackets = append(m.brackets, []int{})
	return nil
}

// DeassertChipSelect implements Link
func (m *MockLink) DeassertChipSelect() error {
	err := m.begin(OpDeassertCS, nil)
	defer m.end()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.csAsserted {
		m.violations = append(m.violations, "chip-select deasserted while idle")
	}
	m.csAsserted = false
	return err
}

// BulkTransfer implements Link
func (m *MockLink) BulkTransfer(out []byte) ([]byte, error) {
	err := m.begin(OpBulkTransfer, out)
	defer m.end()

	m.mu.Lock()
	if !m.csAsserted {
		m.violations = append(m.violations, "transfer outside chip-select bracket")
	} else {
		last := len(m.brackets) - 1
		m.brackets[last] = append(m.brackets[last], len(out))
	}
	if len(out) > MaxTransferSize || len(out) == 0 {
		m.violations = append(m.violations, fmt.Sprintf("transfer of %d bytes", len(out)))
	}
	delay := m.delay
	fn := m.transferFunc
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(append([]byte(nil), out...))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := min(len(out), len(m.inbound))
	in := append([]byte(nil), m.inbound[:n]...)
	m.inbound = m.inbound[n:]
	if m.idleFill != nil {
		for len(in) < len(out) {
			in = append(in, *m.idleFill)
		}
	}
	return in, nil
}

// Close implements Link
func (m *MockLink) Close() error {
	err := m.simple(OpClose)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCount++
	return err
}

// Type returns LinkMock
func (*MockLink) Type() LinkType {
	return LinkMock
}

// Name implements LinkNamer
func (m *MockLink) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Calls returns a copy of the recorded calls
func (m *MockLink) Calls() []LinkCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LinkCall(nil), m.calls...)
}

// CallCount returns how many times op was called
func (m *MockLink) CallCount(op LinkOp) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.calls {
		if call.Op == op {
			count++
		}
	}
	return count
}

// Ops returns the recorded operation names in call order
func (m *MockLink) Ops() []LinkOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]LinkOp, 0, len(m.calls))
	for _, call := range m.calls {
		ops = append(ops, call.Op)
	}
	return ops
}

// Brackets returns the transfer sizes of every chip-select bracket
func (m *MockLink) Brackets() [][]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]int, len(m.brackets))
	for i, bracket := range m.brackets {
		out[i] = append([]int{}, bracket...)
	}
	return out
}

// ResetRecord clears recorded calls and brackets, keeping queued bytes
func (m *MockLink) ResetRecord() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.brackets = nil
}

// Violations returns protocol violations seen so far
func (m *MockLink) Violations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.violations...)
}

// CloseCount returns how many times Close was called
func (m *MockLink) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

// Ensure MockLink implements Link
var _ Link = (*MockLink)(nil)
