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

package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/gesture"
	"github.com/ZaparooProject/checkin-kiosk/indicator"
	"github.com/ZaparooProject/checkin-kiosk/network"
	"github.com/ZaparooProject/checkin-kiosk/presence"
	"github.com/ZaparooProject/checkin-kiosk/report"
	"github.com/ZaparooProject/checkin-kiosk/session"
)

// Coordinator runs the kiosk control loop.
//
// Thread Safety: Coordinator is NOT thread-safe. Tick and Run must be called
// from a single goroutine; every piece of loop state is owned by it.
type Coordinator struct {
	clock      Clock
	reader     TagReader
	button     Button
	conn       Connectivity
	logger     *slog.Logger
	config     *Config
	tracker    *presence.Tracker
	classifier *gesture.Classifier
	queue      *report.Queue
	timer      *session.Timer
	renderer   *indicator.Renderer
	sinks      []EventSink
	display    indicator.Display
	ticks      uint64

	readerFailing bool
	stripFailing  bool
}

// Snapshot is a read-only view of the loop state
type Snapshot struct {
	Presence  presence.State
	Session   session.Session
	Pending   []report.Item
	Display   indicator.Display
	Ticks     uint64
	Connected bool
}

// New creates a coordinator around the given collaborators
func New(
	reader TagReader,
	button Button,
	conn Connectivity,
	reporter report.Reporter,
	strip indicator.Strip,
	opts ...Option,
) (*Coordinator, error) {
	if reader == nil || button == nil || conn == nil || reporter == nil || strip == nil {
		return nil, errors.New("all collaborators are required")
	}

	c := &Coordinator{
		reader: reader,
		button: button,
		conn:   conn,
		clock:  SystemClock(),
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	renderer, err := indicator.NewRenderer(strip, c.config.PixelCount, c.config.Palette)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	c.renderer = renderer
	c.tracker = presence.NewTracker(c.config.Presence)
	c.classifier = gesture.NewClassifier(c.config.Gesture)
	c.queue = report.NewQueue(reporter, c.logger.With("component", "report"))
	c.timer = session.NewTimer(c.config.Session, c.queue)
	c.display = -1
	return c, nil
}

// Run ticks at the configured cadence until ctx is cancelled. Each tick
// runs to completion; the loop then sleeps for the rest of the interval.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("control loop started",
		"poll_interval", c.config.PollInterval,
		"pixels", c.config.PixelCount,
		"provisioning", c.config.ProvisioningUID != "")

	for {
		start := c.clock.Now()
		c.Tick(ctx)

		if err := ctx.Err(); err != nil {
			return err
		}

		wait := c.config.PollInterval - c.clock.Now().Sub(start)
		if wait <= 0 {
			continue
		}
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Tick runs one pass of the loop: NFC, button, reports, session, display.
func (c *Coordinator) Tick(ctx context.Context) {
	c.ticks++
	c.pollReader(ctx)
	c.pollButton()
	c.drainReports(ctx)

	now := c.clock.Now()
	status := c.timer.Tick(now)
	if status.Phase == session.PhaseExpired {
		c.logger.Info("session expired")
		c.emit(Event{At: now, Kind: EventSessionExpired})
	}

	c.show(indicator.Resolve(c.conn.IsConnected(), status, c.timer.Override()))
}

// Snapshot returns the current loop state
func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{
		Presence:  c.tracker.State(),
		Session:   c.timer.Session(),
		Pending:   c.queue.Pending(),
		Display:   c.display,
		Ticks:     c.ticks,
		Connected: c.conn.IsConnected(),
	}
}

func (c *Coordinator) pollReader(ctx context.Context) {
	uid, err := c.reader.ReadTag(ctx, c.config.ReadTimeout)
	switch {
	case err != nil && !c.readerFailing:
		c.readerFailing = true
		c.logger.Warn("reader poll failed", "error", err)
	case err == nil && c.readerFailing:
		c.readerFailing = false
		c.logger.Info("reader recovered")
	}
	if err != nil {
		uid = nil
	}

	event := c.tracker.Poll(uid, c.clock.Now())
	if event == nil {
		return
	}
	c.handleTap(ctx, event)
}

func (c *Coordinator) handleTap(ctx context.Context, event *presence.TagEvent) {
	uid := event.HexID()
	c.logger.Info("tag tapped", "uid", uid)
	c.emit(Event{At: event.ObservedAt, Kind: EventTagTapped, UID: uid})

	c.acknowledge(ctx)

	if c.isProvisioningTag(uid) && !c.conn.IsConnected() {
		c.provision(ctx, uid)
		return
	}
	c.queue.EnqueueUID(uid, event.ObservedAt)
}

// acknowledge flashes the acknowledge colour and holds it, pre-empting the
// display precedence for the hold duration
func (c *Coordinator) acknowledge(ctx context.Context) {
	c.show(indicator.DisplayAcknowledge)
	if c.config.AcknowledgeHold > 0 {
		_ = c.clock.Sleep(ctx, c.config.AcknowledgeHold)
	}
}

func (c *Coordinator) isProvisioningTag(uid string) bool {
	return c.config.ProvisioningUID != "" && strings.EqualFold(uid, c.config.ProvisioningUID)
}

func (c *Coordinator) provision(ctx context.Context, uid string) {
	creds := c.provisioningCredentials(ctx)
	c.logger.Info("provisioning tag tapped, connecting", "network", creds.String())

	if c.conn.Connect(ctx, creds, c.config.ConnectTimeout) {
		c.logger.Info("network connected")
		c.emit(Event{At: c.clock.Now(), Kind: EventProvisioned, UID: uid})
		return
	}
	c.logger.Warn("network connect failed", "network", creds.String())
	c.emit(Event{At: c.clock.Now(), Kind: EventProvisionFailed, UID: uid})
}

// provisioningCredentials prefers the network written onto the tag and falls
// back to the configured one
func (c *Coordinator) provisioningCredentials(ctx context.Context) network.Credentials {
	ndef, ok := c.reader.(NDEFReader)
	if !ok {
		return c.config.Credentials
	}

	texts, err := ndef.ReadNDEFText(ctx)
	if err != nil {
		c.logger.Warn("could not read provisioning tag, using configured network", "error", err)
		return c.config.Credentials
	}
	creds, err := network.CredentialsFromRecords(texts)
	if err != nil {
		c.logger.Debug("no network on provisioning tag, using configured network", "records", len(texts))
		return c.config.Credentials
	}
	c.logger.Info("using network from provisioning tag", "network", creds.String())
	return creds
}

func (c *Coordinator) pollButton() {
	now := c.clock.Now()
	g, ok := c.classifier.Poll(c.button.Pressed(), now)
	if !ok {
		return
	}

	switch g {
	case gesture.ShortPress:
		if !c.timer.ToggleOverride() {
			c.logger.Debug("short press ignored, no active session")
			return
		}
		override := c.timer.Override()
		c.logger.Info("button short press, override toggled", "override", override)
		c.emit(Event{At: now, Kind: EventOverrideToggled, Override: override})
	case gesture.LongPress:
		if !c.timer.Cancel(now) {
			c.logger.Debug("long press ignored, no active session")
			return
		}
		c.logger.Info("button long press, session cancelled")
		c.emit(Event{At: now, Kind: EventSessionCancelled})
	}
}

func (c *Coordinator) drainReports(ctx context.Context) {
	for _, outcome := range c.queue.Drain(ctx, c.conn) {
		now := c.clock.Now()
		if !outcome.Delivered {
			c.emit(Event{At: now, Kind: EventReportFailed, UID: outcome.Item.UID, Detail: errString(outcome.Err)})
			continue
		}
		c.emit(Event{
			At:       now,
			Kind:     EventReported,
			UID:      outcome.Item.UID,
			Command:  outcome.Command.String(),
			Detail:   outcome.Reason,
			Duration: outcome.Latency,
		})
		c.apply(outcome, now)
	}
}

func (c *Coordinator) apply(outcome report.Outcome, now time.Time) {
	if !c.timer.Apply(outcome.Command, now) {
		return
	}
	switch outcome.Command.Kind {
	case session.CommandStart:
		c.logger.Info("session started", "uid", outcome.Item.UID, "duration", outcome.Command.Duration)
		c.emit(Event{At: now, Kind: EventSessionStarted, UID: outcome.Item.UID, Duration: outcome.Command.Duration})
	case session.CommandEnd:
		c.logger.Info("session ended by check-in service", "uid", outcome.Item.UID)
		c.emit(Event{At: now, Kind: EventSessionEnded, UID: outcome.Item.UID})
	}
}

func (c *Coordinator) show(display indicator.Display) {
	_, err := c.renderer.Show(display)
	switch {
	case err != nil && !c.stripFailing:
		c.stripFailing = true
		c.logger.Warn("indicator write failed", "error", err)
	case err == nil && c.stripFailing:
		c.stripFailing = false
		c.logger.Info("indicator recovered")
	}
	if display != c.display {
		c.logger.Debug("display changed", "from", c.display.String(), "to", display.String())
		c.display = display
	}
}

func (c *Coordinator) emit(event Event) {
	for _, sink := range c.sinks {
		sink.Record(event)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
