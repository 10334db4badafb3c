// checkin-kiosk
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of checkin-kiosk.
//
// checkin-kiosk is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// checkin-kiosk is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with checkin-kiosk; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/presence"
	"github.com/ZaparooProject/checkin-kiosk/reader"
)

type config struct {
	devicePath   *string
	timeout      *time.Duration
	pollInterval *time.Duration
	watch        *bool
	debug        *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Serial device path (e.g., /dev/ttyUSB0) or I2C bus. Leave empty for auto-detection."),
		timeout:      flag.Duration("timeout", 30*time.Second, "How long to wait for a tag"),
		pollInterval: flag.Duration("poll-interval", 100*time.Millisecond, "Polling interval for tag detection"),
		watch:        flag.Bool("watch", false, "Keep printing taps until interrupted"),
		debug:        flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Parse()
	return cfg
}

// readTaps prints the UID of every tap, formatted the way kiosk.yaml expects
// network.provisioning_uid. It returns after the first tap unless watch is set.
func readTaps(ctx context.Context, nfc *reader.PN532, cfg *config) error {
	tracker := presence.NewTracker(nil)

	for {
		uid, err := nfc.ReadTag(ctx, *cfg.pollInterval)
		if err != nil && ctx.Err() == nil {
			_, _ = fmt.Fprintf(os.Stderr, "poll failed: %v\n", err)
		}

		if event := tracker.Poll(uid, time.Now()); event != nil {
			_, _ = fmt.Println(event.HexID())
			if !*cfg.watch {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(*cfg.pollInterval):
		}
	}
}

func main() {
	cfg := parseFlags()

	level := slog.LevelWarn
	if *cfg.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	nfc, err := reader.Open(reader.Config{Path: *cfg.devicePath, Debug: *cfg.debug}, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to connect to device: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = nfc.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if !*cfg.watch {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *cfg.timeout)
		defer cancel()
	}

	_, _ = fmt.Fprintln(os.Stderr, "Waiting for NFC tag...")
	err = readTaps(ctx, nfc, cfg)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		_, _ = fmt.Fprintf(os.Stderr, "timeout: no tag detected within %s\n", *cfg.timeout)
		stop()
		os.Exit(1)
	case err != nil && !errors.Is(err, context.Canceled):
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
	}
}
