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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggedLink_SelectedOperations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		wantDebug []string
		opts      LogOption
	}{
		{name: "none", opts: LogNone, wantDebug: nil},
		{name: "transfers only", opts: LogTransfer, wantDebug: []string{"link bulk transfer"}},
		{
			name:      "chip select only",
			opts:      LogChipSelect,
			wantDebug: []string{"link cs assert", "link cs deassert"},
		},
		{
			name:      "all",
			opts:      LogAll,
			wantDebug: []string{"link set speed", "link cs assert", "link bulk transfer", "link cs deassert"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			mock := NewMockLink()
			mock.Inject([]byte{0xCA, 0xFE})
			link := NewLoggedLink(mock, zap.New(core).Sugar(), tt.opts)

			require.NoError(t, link.SetSpeed(Speed1MHz))
			require.NoError(t, link.AssertChipSelect())
			in, err := link.BulkTransfer([]byte{0x01, 0x02})
			require.NoError(t, err)
			require.NoError(t, link.DeassertChipSelect())
			assert.Equal(t, []byte{0xCA, 0xFE}, in)

			var got []string
			for _, entry := range logs.All() {
				got = append(got, entry.Message)
			}
			assert.Equal(t, tt.wantDebug, got)
		})
	}
}

func TestLoggedLink_TransferPayloads(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	mock := NewMockLink()
	mock.Inject([]byte{0xAA, 0xBB})
	link := NewLoggedLink(mock, zap.New(core).Sugar(), LogTransfer)

	require.NoError(t, link.AssertChipSelect())
	_, err := link.BulkTransfer([]byte{0x01, 0x02})
	require.NoError(t, err)

	entries := logs.FilterMessage("link bulk transfer").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "0102", fields["out"])
	assert.Equal(t, "aabb", fields["in"])
	assert.Equal(t, "mock", fields["link"])
}

func TestLoggedLink_ErrorsAlwaysLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	mock := NewMockLink()
	mock.SetError(OpReset, errors.New("port gone"))
	link := NewLoggedLink(mock, zap.New(core).Sugar(), LogNone)

	require.Error(t, link.Reset())

	entries := logs.FilterMessage("link reset failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestLoggedLink_ForwardsIdentity(t *testing.T) {
	t.Parallel()

	mock := NewMockLink()
	mock.SetName("/dev/spidev0.0")
	link := NewLoggedLink(mock, zap.NewNop().Sugar(), LogAll)

	assert.Equal(t, LinkMock, link.Type())
	assert.Equal(t, "/dev/spidev0.0", linkName(link))
}

func TestLoggedLink_UnderBridge(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()
	mock := NewMockLink()

	bridge, err := Open(NewLoggedLink(mock, logger, LogAll), logger)
	require.NoError(t, err)
	require.NoError(t, bridge.Close())

	assert.Equal(t, 1, logs.FilterMessage("link enter raw mode").Len())
	assert.Equal(t, 1, logs.FilterMessage("link enter SPI mode").Len())
	assert.Equal(t, 1, logs.FilterMessage("link close").Len())
	assert.Equal(t, 1, mock.CloseCount())
}

func TestLogOption_Bits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LogOption(1), LogSetup)
	assert.Equal(t, LogOption(2), LogChipSelect)
	assert.Equal(t, LogOption(4), LogTransfer)
	assert.Equal(t, LogOption(7), LogAll)
	assert.Zero(t, LogSetup&LogChipSelect)
	assert.Zero(t, LogChipSelect&LogTransfer)
}
