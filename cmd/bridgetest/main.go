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

// Command bridgetest opens an SPI bridge, writes a payload and prints what
// the module sends back
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	spibridge "github.com/ZaparooProject/go-spibridge"
	"github.com/ZaparooProject/go-spibridge/detection"
	// Import all detectors to register them
	_ "github.com/ZaparooProject/go-spibridge/detection/buspirate"
	_ "github.com/ZaparooProject/go-spibridge/detection/spidev"
	"github.com/ZaparooProject/go-spibridge/link/buspirate"
	"github.com/ZaparooProject/go-spibridge/link/spidev"
	"github.com/ZaparooProject/go-spibridge/polling"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type config struct {
	devicePath *string
	spiBus     *string
	csPin      *string
	powerPin   *string
	speed      *string
	writeHex   *string
	detectMode *string
	logFile    *string
	readSize   *int
	listen     *time.Duration
	timeout    *time.Duration
	debug      *bool
	trace      *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Bus Pirate serial port (e.g., /dev/ttyUSB0 or COM3). Leave empty for auto-detection."),
		spiBus:   flag.String("spi", "", "spidev port name (e.g., /dev/spidev0.0) instead of a Bus Pirate"),
		csPin:    flag.String("cs-pin", "", "GPIO used as chip-select on a spidev port"),
		powerPin: flag.String("power-pin", "", "GPIO switching module power on a spidev port"),
		speed:    flag.String("speed", "2MHz", "SPI clock (30kHz, 125kHz, 250kHz, 1MHz, 2MHz, 2.6MHz, 4MHz, 8MHz)"),
		writeHex: flag.String("write", hex.EncodeToString([]byte("test")), "Hex payload to write"),
		detectMode: flag.String("detect", "passive",
			"Auto-detection mode: passive, safe or full (full probes adapters)"),
		logFile:  flag.String("log-file", "spi_bp.log", "Rotating log file, empty to disable"),
		readSize: flag.Int("read", 50, "Bytes to read after writing"),
		listen: flag.Duration("listen", 0,
			"Keep polling and print received data for this long instead of a single read"),
		timeout: flag.Duration("timeout", 10*time.Second, "Timeout for auto-detection"),
		debug:   flag.Bool("debug", false, "Enable debug output"),
		trace:   flag.Bool("trace", false, "Log every link operation"),
	}
	flag.Parse()
	return cfg
}

func parseDetectMode(name string) (detection.Mode, error) {
	switch strings.ToLower(name) {
	case "passive":
		return detection.Passive, nil
	case "safe":
		return detection.Safe, nil
	case "full":
		return detection.Full, nil
	default:
		return detection.Passive, fmt.Errorf("unknown detection mode %q", name)
	}
}

// openLink opens the adapter named on the command line, or the best one
// detection finds
func openLink(cfg *config, logger *zap.SugaredLogger) (spibridge.Link, error) {
	if *cfg.spiBus != "" {
		_, _ = fmt.Printf("Opening SPI port: %s\n", *cfg.spiBus)
		return openSPIDev(*cfg.spiBus, cfg)
	}
	if *cfg.devicePath != "" {
		_, _ = fmt.Printf("Opening device: %s\n", *cfg.devicePath)
		return openBusPirate(*cfg.devicePath)
	}

	_, _ = fmt.Println("Auto-detecting adapters...")
	mode, err := parseDetectMode(*cfg.detectMode)
	if err != nil {
		return nil, err
	}
	opts := detection.DefaultOptions()
	opts.Mode = mode
	opts.Timeout = *cfg.timeout

	devices, err := detection.DetectAll(&opts)
	if err != nil {
		return nil, fmt.Errorf("auto-detection failed: %w", err)
	}
	for _, device := range devices {
		logger.Infow("adapter found", "transport", device.Transport, "path", device.Path,
			"confidence", device.Confidence.String())
	}
	return linkFromDevice(devices[0], cfg)
}

func linkFromDevice(device detection.DeviceInfo, cfg *config) (spibridge.Link, error) {
	_, _ = fmt.Printf("Using %s (%s)\n", device.Name, device.Path)
	switch device.Transport {
	case "buspirate":
		return openBusPirate(device.Path)
	case "spidev":
		return openSPIDev(device.Path, cfg)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", device.Transport)
	}
}

func openBusPirate(path string) (spibridge.Link, error) {
	link, err := buspirate.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bus Pirate: %w", err)
	}
	return link, nil
}

func openSPIDev(path string, cfg *config) (spibridge.Link, error) {
	link, err := spidev.Open(spidev.Config{
		BusName:       path,
		ChipSelectPin: *cfg.csPin,
		PowerPin:      *cfg.powerPin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open spidev port: %w", err)
	}
	return link, nil
}

func openBridge(cfg *config, logger *zap.SugaredLogger) (*spibridge.Bridge, error) {
	speed, err := spibridge.ParseSpeed(*cfg.speed)
	if err != nil {
		return nil, err
	}

	link, err := openLink(cfg, logger)
	if err != nil {
		return nil, err
	}
	if *cfg.trace {
		link = spibridge.NewLoggedLink(link, logger, spibridge.LogAll)
	}
	return spibridge.Open(link, logger, spibridge.WithSpeed(speed))
}

// readOnce is the classic smoke test: one write, one bounded read
func readOnce(bridge *spibridge.Bridge, payload []byte, size int) error {
	if _, err := bridge.Write(payload); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	res, err := bridge.ReadN(size)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	_, _ = fmt.Printf("res = % x\n", res)
	return nil
}

// listen polls in the background while the payload is written and prints
// every chunk that arrives until ctx is done
func listen(ctx context.Context, bridge *spibridge.Bridge, payload []byte, logger *zap.SugaredLogger) error {
	config := polling.DefaultConfig()
	filler := spibridge.DefaultConfig().Filler
	config.IdleByte = &filler

	reader, err := polling.NewReader(bridge, config, polling.Callbacks{
		OnData: func(data []byte) {
			if !config.IsIdle(data) {
				_, _ = fmt.Printf("res = % x\n", data)
			}
		},
		OnStateChange: func(state polling.StreamState) {
			_, _ = fmt.Printf("stream %s\n", state)
		},
	}, logger)
	if err != nil {
		return err
	}
	if err := reader.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-reader.Done():
		}
		return reader.Stop()
	})
	g.Go(func() error {
		if _, err := bridge.Write(payload); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	metrics := reader.Metrics()
	_, _ = fmt.Printf("%d bytes in %d polls\n", metrics.BytesRead, metrics.PollCycles)
	return nil
}

func run(cfg *config, logger *zap.SugaredLogger) error {
	payload, err := hex.DecodeString(strings.ReplaceAll(*cfg.writeHex, " ", ""))
	if err != nil {
		return fmt.Errorf("invalid hex payload: %w", err)
	}

	bridge, err := openBridge(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bridge.Close() }()

	if *cfg.listen <= 0 {
		return readOnce(bridge, payload, *cfg.readSize)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *cfg.listen)
	defer cancel()

	err = listen(ctx, bridge, payload, logger)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func main() {
	cfg := parseFlags()
	logger := newLogger(*cfg.logFile, *cfg.debug)

	err := run(cfg, logger)
	_ = logger.Sync()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
