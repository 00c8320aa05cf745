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

// Package buffer provides the byte queue used to hold look-ahead data
package buffer

// compactThreshold is the number of consumed bytes after which the queue
// moves its live data back to the start of the backing array.
const compactThreshold = 256

// Queue is a growable FIFO of bytes. It is not safe for concurrent use; the
// owner is expected to guard it.
type Queue struct {
	data []byte
	head int
}

// NewQueue creates a queue with room for capacity bytes before growing
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{data: make([]byte, 0, capacity)}
}

// Len returns the number of unread bytes
func (q *Queue) Len() int {
	return len(q.data) - q.head
}

// Write appends p to the back of the queue
func (q *Queue) Write(p []byte) {
	if len(p) == 0 {
		return
	}
	q.compact()
	q.data = append(q.data, p...)
}

// Read moves up to len(p) bytes from the front of the queue into p and
// returns the number of bytes moved.
func (q *Queue) Read(p []byte) int {
	n := copy(p, q.data[q.head:])
	q.head += n
	if q.head == len(q.data) {
		q.Reset()
	}
	return n
}

// Next removes and returns up to n bytes from the front of the queue.
// The returned slice is a copy owned by the caller.
func (q *Queue) Next(n int) []byte {
	if n > q.Len() {
		n = q.Len()
	}
	if n <= 0 {
		return []byte{}
	}
	out := make([]byte, n)
	q.Read(out)
	return out
}

// Peek returns a copy of the unread bytes without consuming them
func (q *Queue) Peek() []byte {
	return append([]byte(nil), q.data[q.head:]...)
}

// Reset discards all unread bytes
func (q *Queue) Reset() {
	q.data = q.data[:0]
	q.head = 0
}

func (q *Queue) compact() {
	if q.head < compactThreshold || q.head < len(q.data)/2 {
		return
	}
	n := copy(q.data, q.data[q.head:])
	q.data = q.data[:n]
	q.head = 0
}
