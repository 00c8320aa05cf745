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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestSpeed_Frequency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  physic.Frequency
		speed Speed
	}{
		{name: "30kHz", speed: Speed30kHz, want: 30 * physic.KiloHertz},
		{name: "1MHz", speed: Speed1MHz, want: physic.MegaHertz},
		{name: "2.6MHz", speed: Speed2600kHz, want: 2600 * physic.KiloHertz},
		{name: "8MHz", speed: Speed8MHz, want: 8 * physic.MegaHertz},
		{name: "invalid", speed: Speed(8), want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.speed.Frequency())
		})
	}
}

func TestParseSpeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Speed
		wantErr bool
	}{
		{input: "30kHz", want: Speed30kHz},
		{input: "125khz", want: Speed125kHz},
		{input: " 2MHz ", want: Speed2MHz},
		{input: "2.6MHz", want: Speed2600kHz},
		{input: "2600kHz", want: Speed2600kHz},
		{input: "8mhz", want: Speed8MHz},
		{input: "16MHz", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseSpeed(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()), "String round-trips")
		})
	}
}

func mustParse(t *testing.T, name string) Speed {
	t.Helper()
	speed, err := ParseSpeed(name)
	require.NoError(t, err)
	return speed
}

func TestSpeed_StringInvalid(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Speed(12)", Speed(12).String())
	assert.False(t, Speed(12).Valid())
}

func TestWireConfig_Bits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x08), DefaultWireConfig().Bits())
	assert.Equal(t, byte(0x00), WireConfig{}.Bits())
	assert.Equal(t, byte(0x0F), WireConfig{
		Output3V3:         true,
		ClockIdleHigh:     true,
		ClockActiveToIdle: true,
		SampleAtEnd:       true,
	}.Bits())
	assert.Equal(t, byte(0x06), WireConfig{ClockIdleHigh: true, ClockActiveToIdle: true}.Bits())
}

func TestPinConfig_Bits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x08), PowerOn().Bits())
	assert.Equal(t, byte(0x00), PinConfig{}.Bits())
	assert.Equal(t, byte(0x05), PinConfig{Pullups: true, ChipSelect: true}.Bits())
	assert.Equal(t, byte(0x0F), PinConfig{Power: true, Pullups: true, AUX: true, ChipSelect: true}.Bits())
}

func TestLinkName(t *testing.T) {
	t.Parallel()

	link := NewMockLink()
	assert.Equal(t, "mock", linkName(link))
	link.SetName("/dev/ttyUSB3")
	assert.Equal(t, "/dev/ttyUSB3", linkName(link))
}

func TestDefaultConfig_Valid(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	require.NoError(t, config.validate())
	assert.Equal(t, MaxTransferSize, config.ChunkSize)
	assert.Equal(t, MaxTransferSize, config.ProbeSize)
	assert.Equal(t, byte(0x00), config.Filler)
	assert.Equal(t, Speed2MHz, config.Speed)
}
