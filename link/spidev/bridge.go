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

package spidev

import (
	"fmt"

	spibridge "github.com/ZaparooProject/go-spibridge"
	"go.uber.org/zap"
)

// OpenBridge opens the spidev port described by cfg and returns a
// configured bridge
func OpenBridge(cfg Config, logger *zap.SugaredLogger, opts ...spibridge.Option) (*spibridge.Bridge, error) {
	link, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	bridge, err := spibridge.Open(link, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge on %s: %w", link.Name(), err)
	}
	return bridge, nil
}
