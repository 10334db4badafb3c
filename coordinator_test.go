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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/checkin-kiosk/indicator"
	"github.com/ZaparooProject/checkin-kiosk/network"
	"github.com/ZaparooProject/checkin-kiosk/report"
)

var (
	tagA = []byte{0x04, 0xA1, 0xB2, 0xC3}
	tagB = []byte{0x04, 0x11, 0x22, 0x33}
)

type testRig struct {
	clock    *FakeClock
	reader   *ScriptedReader
	button   *FakeButton
	conn     *FakeConnectivity
	reporter *FakeReporter
	strip    *RecordingStrip
	events   *EventRecorder
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// checkInReporter starts a session of minutes for any tag and ends it for
// the cancel sentinel
func checkInReporter(minutes int) func(uid string) (*report.Result, error) {
	return func(uid string) (*report.Result, error) {
		if uid == report.CancelUID {
			return &report.Result{Delay: intPtr(0), CheckedIn: boolPtr(false)}, nil
		}
		return &report.Result{Delay: intPtr(minutes), CheckedIn: boolPtr(true)}, nil
	}
}

func createTestCoordinator(t *testing.T, connected bool, opts ...Option) (*Coordinator, *testRig) {
	t.Helper()

	rig := &testRig{
		clock:    NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		reader:   NewScriptedReader(),
		button:   &FakeButton{},
		conn:     NewFakeConnectivity(connected),
		reporter: &FakeReporter{},
		strip:    &RecordingStrip{},
		events:   &EventRecorder{},
	}

	base := []Option{
		WithClock(rig.clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSinks(rig.events),
	}
	c, err := New(rig.reader, rig.button, rig.conn, rig.reporter, rig.strip, append(base, opts...)...)
	require.NoError(t, err)
	return c, rig
}

// step advances the clock by one poll interval and ticks
func step(ctx context.Context, c *Coordinator, rig *testRig) {
	rig.clock.Advance(DefaultPollInterval)
	c.Tick(ctx)
}

func stepFor(ctx context.Context, c *Coordinator, rig *testRig, d time.Duration) {
	end := rig.clock.Now().Add(d)
	for rig.clock.Now().Before(end) {
		step(ctx, c, rig)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("MissingCollaborator", func(t *testing.T) {
		t.Parallel()
		_, err := New(nil, &FakeButton{}, NewFakeConnectivity(true), &FakeReporter{}, &RecordingStrip{})
		require.Error(t, err)
	})

	t.Run("InvalidOption", func(t *testing.T) {
		t.Parallel()
		_, err := New(NewScriptedReader(), &FakeButton{}, NewFakeConnectivity(true), &FakeReporter{},
			&RecordingStrip{}, WithPollInterval(0))
		require.Error(t, err)
	})

	t.Run("InvalidPixelCount", func(t *testing.T) {
		t.Parallel()
		config := DefaultConfig()
		config.PixelCount = 0
		_, err := New(NewScriptedReader(), &FakeButton{}, NewFakeConnectivity(true), &FakeReporter{},
			&RecordingStrip{}, WithConfig(config))
		require.Error(t, err)
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()
		c, _ := createTestCoordinator(t, true)
		snap := c.Snapshot()
		assert.False(t, snap.Session.Active)
		assert.Empty(t, snap.Pending)
		assert.True(t, snap.Connected)
		assert.Zero(t, snap.Ticks)
	})
}

func TestCoordinator_IdleDisplay(t *testing.T) {
	t.Parallel()

	t.Run("Online", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c, rig := createTestCoordinator(t, true)

		step(ctx, c, rig)
		step(ctx, c, rig)

		assert.Equal(t, indicator.DisplayIdle, c.Snapshot().Display)
		require.Len(t, rig.strip.Frames(), 1, "unchanged frames are not rewritten")
		assert.Equal(t, indicator.Fill(indicator.DefaultPixelCount, indicator.Green), rig.strip.Last())
	})

	t.Run("Offline", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c, rig := createTestCoordinator(t, false)

		step(ctx, c, rig)

		assert.Equal(t, indicator.DisplayOffline, c.Snapshot().Display)
		assert.Equal(t, indicator.Fill(indicator.DefaultPixelCount, indicator.Blue), rig.strip.Last())
	})
}

func TestCoordinator_TapStartsSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	rig.reporter.ReportFunc = checkInReporter(10)

	step(ctx, c, rig)
	rig.reader.SetTag(tagA)
	step(ctx, c, rig)

	assert.Equal(t, []string{"04A1B2C3"}, rig.reporter.UIDs())
	assert.Equal(t, DefaultAcknowledgeHold, rig.clock.Slept())

	snap := c.Snapshot()
	assert.True(t, snap.Session.Active)
	assert.Equal(t, 10*time.Minute, snap.Session.Duration)
	assert.Equal(t, indicator.DisplaySolid, snap.Display)

	frames := rig.strip.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, indicator.Green, frames[0][0])
	assert.Equal(t, indicator.Cyan, frames[1][0], "acknowledge flash precedes the session colour")
	assert.Equal(t, indicator.Red, frames[2][0])

	assert.Equal(t, []EventKind{EventTagTapped, EventReported, EventSessionStarted}, rig.events.Kinds())
}

func TestCoordinator_RestingTagReportsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	rig.reporter.ReportFunc = checkInReporter(10)

	rig.reader.SetTag(tagA)
	stepFor(ctx, c, rig, 10*time.Second)

	assert.Len(t, rig.reporter.UIDs(), 1)
	assert.Equal(t, 1, rig.events.Count(EventTagTapped))
}

func TestCoordinator_OfflineTapsQueueInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, false)
	rig.reporter.ReportFunc = checkInReporter(10)

	rig.reader.SetTag(tagA)
	step(ctx, c, rig)
	rig.reader.RemoveTag()
	stepFor(ctx, c, rig, 4*time.Second)
	rig.reader.SetTag(tagB)
	step(ctx, c, rig)
	rig.reader.RemoveTag()

	assert.Empty(t, rig.reporter.UIDs())
	require.Len(t, c.Snapshot().Pending, 2)
	assert.Equal(t, indicator.DisplayOffline, c.Snapshot().Display)

	rig.conn.SetConnected(true)
	step(ctx, c, rig)

	assert.Equal(t, []string{"04A1B2C3", "04112233"}, rig.reporter.UIDs())
	assert.Empty(t, c.Snapshot().Pending)
	assert.True(t, c.Snapshot().Session.Active)
}

func TestCoordinator_Provisioning(t *testing.T) {
	t.Parallel()

	creds := network.Credentials{SSID: "venue", Passphrase: "secret"}

	t.Run("OfflineConnects", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c, rig := createTestCoordinator(t, false, WithProvisioning("04a1b2c3", creds))

		rig.reader.SetTag(tagA)
		step(ctx, c, rig)

		assert.Equal(t, 1, rig.conn.ConnectCalls())
		assert.Equal(t, creds, rig.conn.LastCredentials())
		assert.Empty(t, rig.reporter.UIDs(), "provisioning tag is not reported")
		assert.Empty(t, c.Snapshot().Pending)
		assert.Equal(t, 1, rig.events.Count(EventProvisioned))
		assert.Equal(t, indicator.DisplayIdle, c.Snapshot().Display)
	})

	t.Run("ConnectFails", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c, rig := createTestCoordinator(t, false, WithProvisioning("04A1B2C3", creds))
		rig.conn.SetConnectResult(false)

		rig.reader.SetTag(tagA)
		step(ctx, c, rig)

		assert.Equal(t, 1, rig.conn.ConnectCalls())
		assert.Equal(t, 1, rig.events.Count(EventProvisionFailed))
		assert.Equal(t, indicator.DisplayOffline, c.Snapshot().Display)
	})

	t.Run("OnlineReportsLikeAnyTag", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c, rig := createTestCoordinator(t, true, WithProvisioning("04A1B2C3", creds))

		rig.reader.SetTag(tagA)
		step(ctx, c, rig)

		assert.Zero(t, rig.conn.ConnectCalls())
		assert.Equal(t, []string{"04A1B2C3"}, rig.reporter.UIDs())
	})

	t.Run("NetworkFromTagRecord", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c, rig := createTestCoordinator(t, false, WithProvisioning("04A1B2C3", creds))

		record := `{"table":"t7","apiKey":"k","ssid":"popup","networkPwd":"hunter2",` +
			`"timestamp":"2025-03-01T11:00:00.000Z","version":"1.0"}`
		rig.reader.SetNDEFText("welcome", record)
		rig.reader.SetTag(tagA)
		step(ctx, c, rig)

		assert.Equal(t, 1, rig.conn.ConnectCalls())
		assert.Equal(t, network.Credentials{SSID: "popup", Passphrase: "hunter2"}, rig.conn.LastCredentials())
		assert.Equal(t, 1, rig.events.Count(EventProvisioned))
	})

	t.Run("FallsBackToConfiguredNetwork", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			ndefErr error
			name    string
			texts   []string
		}{
			{name: "NoRecords"},
			{name: "PlainText", texts: []string{"table 7"}},
			{name: "MalformedJSON", texts: []string{`{"ssid":"pop`}},
			{name: "RecordWithoutSSID", texts: []string{`{"table":"t7","networkPwd":"x"}`}},
			{name: "ReadError", ndefErr: errors.New("authentication failed")},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				ctx := context.Background()
				c, rig := createTestCoordinator(t, false, WithProvisioning("04A1B2C3", creds))

				rig.reader.SetNDEFText(tt.texts...)
				rig.reader.SetNDEFError(tt.ndefErr)
				rig.reader.SetTag(tagA)
				step(ctx, c, rig)

				assert.Equal(t, 1, rig.conn.ConnectCalls())
				assert.Equal(t, creds, rig.conn.LastCredentials())
			})
		}
	})

	t.Run("OtherTagOfflineIsQueued", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c, rig := createTestCoordinator(t, false, WithProvisioning("04A1B2C3", creds))

		rig.reader.SetTag(tagB)
		step(ctx, c, rig)

		assert.Zero(t, rig.conn.ConnectCalls())
		require.Len(t, c.Snapshot().Pending, 1)
		assert.Equal(t, "04112233", c.Snapshot().Pending[0].UID)
	})
}

func startSession(ctx context.Context, t *testing.T, c *Coordinator, rig *testRig) time.Time {
	t.Helper()
	rig.reporter.ReportFunc = checkInReporter(10)
	step(ctx, c, rig)
	rig.reader.SetTag(tagA)
	step(ctx, c, rig)
	rig.reader.RemoveTag()
	require.True(t, c.Snapshot().Session.Active)
	return c.Snapshot().Session.StartedAt
}

func press(ctx context.Context, c *Coordinator, rig *testRig, held time.Duration) {
	rig.button.SetPressed(true)
	step(ctx, c, rig)
	rig.clock.Advance(held - DefaultPollInterval)
	rig.button.SetPressed(false)
	step(ctx, c, rig)
}

func TestCoordinator_ShortPressTogglesOverride(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	startSession(ctx, t, c, rig)

	press(ctx, c, rig, 200*time.Millisecond)
	assert.True(t, c.Snapshot().Session.Override)
	assert.Equal(t, indicator.DisplayOverride, c.Snapshot().Display)
	assert.Equal(t, indicator.Yellow, rig.strip.Last()[0])

	press(ctx, c, rig, 200*time.Millisecond)
	assert.False(t, c.Snapshot().Session.Override)
	assert.Equal(t, indicator.DisplaySolid, c.Snapshot().Display)
	assert.Equal(t, 2, rig.events.Count(EventOverrideToggled))
}

func TestCoordinator_ShortPressWithoutSessionIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	step(ctx, c, rig)

	press(ctx, c, rig, 200*time.Millisecond)

	assert.False(t, c.Snapshot().Session.Override)
	assert.Zero(t, rig.events.Count(EventOverrideToggled))
	assert.Equal(t, indicator.DisplayIdle, c.Snapshot().Display)
}

func TestCoordinator_LongPressCancels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	startSession(ctx, t, c, rig)

	press(ctx, c, rig, time.Second)

	assert.False(t, c.Snapshot().Session.Active)
	assert.Equal(t, []string{"04A1B2C3", report.CancelUID}, rig.reporter.UIDs())
	assert.Equal(t, indicator.DisplayIdle, c.Snapshot().Display)
	assert.Equal(t, 1, rig.events.Count(EventSessionCancelled))
}

func TestCoordinator_LongPressOfflineQueuesSentinel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	startSession(ctx, t, c, rig)
	rig.conn.SetConnected(false)

	press(ctx, c, rig, 2*time.Second)

	pending := c.Snapshot().Pending
	require.Len(t, pending, 1)
	assert.True(t, pending[0].IsCancel())
	assert.Equal(t, indicator.DisplayOffline, c.Snapshot().Display)
}

func TestCoordinator_SessionTimeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	started := startSession(ctx, t, c, rig)

	at := func(elapsed time.Duration) {
		rig.clock.Advance(started.Add(elapsed).Sub(rig.clock.Now()))
		c.Tick(ctx)
	}

	at(9*time.Minute - time.Second)
	assert.Equal(t, indicator.DisplaySolid, c.Snapshot().Display)

	at(9 * time.Minute)
	assert.Equal(t, indicator.DisplayBlinkOn, c.Snapshot().Display)

	at(9*time.Minute + 500*time.Millisecond)
	assert.Equal(t, indicator.DisplayBlinkOff, c.Snapshot().Display)
	assert.Equal(t, indicator.Black, rig.strip.Last()[0])

	at(10 * time.Minute)
	assert.False(t, c.Snapshot().Session.Active)
	assert.Equal(t, indicator.DisplayIdle, c.Snapshot().Display)
	assert.Equal(t, 1, rig.events.Count(EventSessionExpired))

	// the sentinel is drained on the following tick
	step(ctx, c, rig)
	assert.Equal(t, []string{"04A1B2C3", report.CancelUID}, rig.reporter.UIDs())

	stepFor(ctx, c, rig, time.Second)
	assert.Equal(t, 1, rig.events.Count(EventSessionExpired))
}

func TestCoordinator_ServerEndsSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	startSession(ctx, t, c, rig)

	rig.reporter.ReportFunc = func(string) (*report.Result, error) {
		return &report.Result{Delay: intPtr(0), CheckedIn: boolPtr(false)}, nil
	}
	stepFor(ctx, c, rig, 2*time.Second)
	rig.reader.SetTag(tagA)
	step(ctx, c, rig)

	assert.False(t, c.Snapshot().Session.Active)
	assert.Equal(t, 1, rig.events.Count(EventSessionEnded))
	assert.Empty(t, c.Snapshot().Pending, "server-side end does not queue a sentinel")
	assert.Equal(t, []string{"04A1B2C3", "04A1B2C3"}, rig.reporter.UIDs())
}

func TestCoordinator_NewSessionReplacesOld(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	startSession(ctx, t, c, rig)
	press(ctx, c, rig, 100*time.Millisecond)
	require.True(t, c.Snapshot().Session.Override)

	rig.reporter.ReportFunc = checkInReporter(30)
	stepFor(ctx, c, rig, 2*time.Second)
	rig.reader.SetTag(tagB)
	step(ctx, c, rig)

	snap := c.Snapshot()
	assert.True(t, snap.Session.Active)
	assert.Equal(t, 30*time.Minute, snap.Session.Duration)
	assert.False(t, snap.Session.Override, "a new session clears the override")
}

func TestCoordinator_TransportFailureDropsItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	rig.reporter.ReportFunc = func(string) (*report.Result, error) {
		return nil, report.ErrTransport
	}

	rig.reader.SetTag(tagA)
	step(ctx, c, rig)
	step(ctx, c, rig)

	assert.Len(t, rig.reporter.UIDs(), 1, "failed reports are never retried")
	assert.Empty(t, c.Snapshot().Pending)
	assert.Equal(t, 1, rig.events.Count(EventReportFailed))
	assert.False(t, c.Snapshot().Session.Active)
}

func TestCoordinator_ReaderErrorsAreMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	rig.reader.SetError(errors.New("i/o timeout"))

	stepFor(ctx, c, rig, time.Second)

	assert.Empty(t, rig.events.Kinds())
	assert.Equal(t, indicator.DisplayIdle, c.Snapshot().Display)

	rig.reader.SetError(nil)
	rig.reader.SetTag(tagA)
	step(ctx, c, rig)
	assert.Equal(t, 1, rig.events.Count(EventTagTapped))
}

func TestCoordinator_StripFailureKeepsLoopRunning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rig := createTestCoordinator(t, true)
	rig.reporter.ReportFunc = checkInReporter(10)
	rig.strip.SetError(errors.New("spi write failed"))

	rig.reader.SetTag(tagA)
	step(ctx, c, rig)

	assert.True(t, c.Snapshot().Session.Active)
	assert.Empty(t, rig.strip.Frames())

	rig.strip.SetError(nil)
	step(ctx, c, rig)
	assert.Equal(t, indicator.Red, rig.strip.Last()[0])
}

type cancellingReader struct {
	cancel context.CancelFunc
	after  int
	reads  int
}

func (r *cancellingReader) ReadTag(_ context.Context, _ time.Duration) ([]byte, error) {
	r.reads++
	if r.reads >= r.after {
		r.cancel()
	}
	return nil, nil
}

func TestCoordinator_Run(t *testing.T) {
	t.Parallel()

	t.Run("StopsOnCancel", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		clock := NewFakeClock(time.Unix(0, 0))
		reader := &cancellingReader{cancel: cancel, after: 5}
		c, err := New(reader, &FakeButton{}, NewFakeConnectivity(true), &FakeReporter{}, &RecordingStrip{},
			WithClock(clock), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		require.NoError(t, err)

		err = c.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, uint64(5), c.Snapshot().Ticks)
		assert.Equal(t, 4*DefaultPollInterval, clock.Slept())
	})

	t.Run("AlreadyCancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c, _ := createTestCoordinator(t, true)
		err := c.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, uint64(1), c.Snapshot().Ticks)
	})
}
