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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	kiosk "github.com/ZaparooProject/checkin-kiosk"
	"github.com/ZaparooProject/checkin-kiosk/button"
	"github.com/ZaparooProject/checkin-kiosk/config"
	"github.com/ZaparooProject/checkin-kiosk/indicator"
	"github.com/ZaparooProject/checkin-kiosk/journal"
	"github.com/ZaparooProject/checkin-kiosk/leds"
	"github.com/ZaparooProject/checkin-kiosk/metrics"
	"github.com/ZaparooProject/checkin-kiosk/network"
	"github.com/ZaparooProject/checkin-kiosk/reader"
	"github.com/ZaparooProject/checkin-kiosk/report"
	"github.com/ZaparooProject/checkin-kiosk/sim"
	"github.com/ZaparooProject/checkin-kiosk/telemetry"
)

type flags struct {
	configFile  *string
	simulate    *bool
	debug       *bool
	journalTail *int
}

func parseFlags() *flags {
	f := &flags{
		configFile:  flag.String("config", "", "Path to kiosk.yaml. Leave empty to search . and /etc/kiosk."),
		simulate:    flag.Bool("simulate", false, "Replace the hardware with a terminal driven simulation"),
		debug:       flag.Bool("debug", false, "Enable debug logging"),
		journalTail: flag.Int("journal-tail", 0, "Print the last N journal entries and the day's counts, then exit"),
	}
	flag.Parse()
	return f
}

// hardware is everything the loop talks to besides the check-in service
type hardware struct {
	reader  kiosk.TagReader
	button  kiosk.Button
	conn    kiosk.Connectivity
	strip   indicator.Strip
	closers []func() error
}

func (h *hardware) close(logger *slog.Logger) {
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}
}

func main() {
	f := parseFlags()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*f.configFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *f.debug {
		cfg.Log.Level = "debug"
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if *f.journalTail > 0 {
		if err := tailJournal(context.Background(), cfg, *f.journalTail, os.Stdout); err != nil {
			logger.Error("journal tail failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *f.simulate, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("kiosk stopped", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("kiosk stopped")
}

func run(ctx context.Context, cfg *config.Config, simulate bool, logger *slog.Logger) error {
	policy, err := cfg.Kiosk()
	if err != nil {
		return err
	}

	client, err := report.NewClient(cfg.ReportClient())
	if err != nil {
		return fmt.Errorf("failed to create report client: %w", err)
	}

	var hw *hardware
	if simulate {
		hw = openSimulator(ctx, cfg, logger)
	} else {
		hw = openHardware(ctx, cfg, logger)
	}
	defer hw.close(logger)

	sinks, closeSinks := openSinks(ctx, cfg, logger)
	defer closeSinks()

	loop, err := kiosk.New(hw.reader, hw.button, hw.conn, client, hw.strip,
		kiosk.WithConfig(policy),
		kiosk.WithLogger(logger),
		kiosk.WithSinks(sinks...),
	)
	if err != nil {
		return fmt.Errorf("failed to create control loop: %w", err)
	}

	logger.Info("kiosk starting", "table", cfg.Report.TableID, "network", cfg.Network.Mode, "simulate", simulate)
	return loop.Run(ctx)
}

func openSimulator(ctx context.Context, cfg *config.Config, logger *slog.Logger) *hardware {
	dev := sim.New(cfg.Network.Mode == config.NetworkWired || !cfg.Network.RequireProvisioning,
		logger.With("component", "sim"))
	go func() {
		if err := dev.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("simulator input closed", "error", err)
		}
	}()
	return &hardware{
		reader: dev,
		button: dev,
		conn:   dev,
		strip:  leds.NewLog(logger.With("component", "leds")),
	}
}

func openHardware(ctx context.Context, cfg *config.Config, logger *slog.Logger) *hardware {
	hw := &hardware{}

	nfc, err := reader.Open(reader.Config{
		Path:           cfg.Reader.Path,
		ConnectTimeout: cfg.Reader.ConnectTimeout,
		Debug:          cfg.Reader.Debug,
	}, logger.With("component", "reader"))
	if err != nil {
		logger.Warn("NFC reader unavailable, taps will not be seen", "error", err)
		hw.reader = reader.Null{}
	} else {
		hw.reader = nfc
		hw.closers = append(hw.closers, nfc.Close)
	}

	btn, err := button.Open(button.Config{Pin: cfg.Button.Pin, ActiveLow: cfg.Button.ActiveLow})
	if err != nil {
		logger.Warn("button unavailable", "pin", cfg.Button.Pin, "error", err)
		hw.button = button.Null{}
	} else {
		hw.button = btn
	}

	ring, err := leds.Open(leds.Config{
		Port:       cfg.LEDs.Port,
		Pixels:     cfg.LEDs.Pixels,
		Brightness: uint8(cfg.LEDs.Brightness),
	})
	if err != nil {
		logger.Warn("LED ring unavailable, logging frames instead", "error", err)
		hw.strip = leds.NewLog(logger.With("component", "leds"))
	} else {
		hw.strip = ring
		hw.closers = append(hw.closers, ring.Close)
	}

	switch cfg.Network.Mode {
	case config.NetworkWired:
		hw.conn = network.Wired{}
	default:
		nm := network.NewNMCLI(
			network.WithLogger(logger.With("component", "network")),
			network.WithInterface(cfg.Network.Interface),
			network.WithStatusInterval(cfg.Network.StatusInterval),
		)
		if cfg.Network.RequireProvisioning {
			logger.Info("dropping wifi until the provisioning tag is tapped")
			if err := nm.Disconnect(ctx); err != nil {
				logger.Warn("failed to drop wifi", "error", err)
			}
		}
		hw.conn = nm
	}
	return hw
}

func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]kiosk.EventSink, func()) {
	var sinks []kiosk.EventSink
	var closers []func()

	if cfg.Telemetry.Broker != "" {
		pub, err := telemetry.Dial(telemetry.Config{
			Broker:      cfg.Telemetry.Broker,
			KioskID:     cfg.Report.TableID,
			TopicPrefix: cfg.Telemetry.TopicPrefix,
			Username:    cfg.Telemetry.Username,
			Password:    cfg.Telemetry.Password,
		}, logger.With("component", "telemetry"))
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
		} else {
			sinks = append(sinks, pub)
			closers = append(closers, pub.Close)
		}
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logger.With("component", "journal"), cfg.Journal.Options()...)
		if err != nil {
			logger.Warn("journal disabled", "error", err)
		} else {
			sinks = append(sinks, j)
			closers = append(closers, func() { _ = j.Close() })
		}
	}

	if cfg.Metrics.Addr != "" {
		rec := metrics.NewRecorder()
		sinks = append(sinks, rec)
		go func() {
			if err := rec.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Warn("metrics listener failed", "error", err)
			}
		}()
	}

	return sinks, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func tailJournal(ctx context.Context, cfg *config.Config, n int, w io.Writer) error {
	if cfg.Journal.Path == "" {
		return errors.New("journal.path is not configured")
	}

	j, err := journal.Open(cfg.Journal.Path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.Recent(ctx, n)
	if err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		_, _ = fmt.Fprintf(w, "%s  %-18s uid=%s command=%s detail=%q\n",
			e.At().Format(time.RFC3339), e.Kind, e.UID, e.Command, e.Detail)
	}

	counts, err := j.CountByKind(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	_, _ = fmt.Fprintln(w, "last 24h:")
	for _, kind := range kinds {
		_, _ = fmt.Fprintf(w, "  %-18s %d\n", kind, counts[kind])
	}
	return nil
}
