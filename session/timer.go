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

/*
Package session owns the lifecycle of a check-in session.

At most one session exists. It is started and ended by commands derived from
check-in service responses, cancelled by a long press, and expires on its own
once its duration has elapsed. While active, Tick reports whether the
indicator should be solid or blinking: the session blinks during its final
stretch, min(BlinkWindowCap, duration/BlinkFraction).
*/
package session

import (
	"time"
)

const (
	// DefaultBlinkInterval is the on/off period of the blinking phase
	DefaultBlinkInterval = 500 * time.Millisecond
	// DefaultBlinkWindowCap caps the length of the blinking phase
	DefaultBlinkWindowCap = 5 * time.Minute
	// DefaultBlinkFraction makes the blinking phase 1/N of the session
	DefaultBlinkFraction = 10
)

// Phase is the visual phase of the session on a tick
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseSolid
	PhaseBlinking
	// PhaseExpired is reported exactly once, on the tick the session times out
	PhaseExpired
)

func (p Phase) String() string {
	switch p {
	case PhaseInactive:
		return "inactive"
	case PhaseSolid:
		return "solid"
	case PhaseBlinking:
		return "blinking"
	case PhaseExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Status is the result of a Tick
type Status struct {
	Phase     Phase
	BlinkOn   bool
	Remaining time.Duration
}

// Active reports whether the status belongs to a running session
func (s Status) Active() bool {
	return s.Phase == PhaseSolid || s.Phase == PhaseBlinking
}

// Session is the single check-in session.
// Duration > 0 whenever Active; Override is false whenever !Active.
type Session struct {
	StartedAt time.Time
	Duration  time.Duration
	Active    bool
	Override  bool
}

// Canceller is informed when the session ends locally (expiry or cancel),
// so the check-in service can release the table.
type Canceller interface {
	EnqueueCancel(now time.Time)
}

// Config holds the blink policy
type Config struct {
	BlinkInterval  time.Duration
	BlinkWindowCap time.Duration
	BlinkFraction  int
}

// DefaultConfig returns the standard blink policy
func DefaultConfig() *Config {
	return &Config{
		BlinkInterval:  DefaultBlinkInterval,
		BlinkWindowCap: DefaultBlinkWindowCap,
		BlinkFraction:  DefaultBlinkFraction,
	}
}

// Timer applies commands to the session and computes its phase
type Timer struct {
	canceller Canceller
	config    *Config
	session   Session
}

// NewTimer creates a timer. A nil config selects DefaultConfig.
func NewTimer(config *Config, canceller Canceller) *Timer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Timer{config: config, canceller: canceller}
}

// Session returns a copy of the current session
func (t *Timer) Session() Session {
	return t.session
}

// Active reports whether a session is running
func (t *Timer) Active() bool {
	return t.session.Active
}

// Override reports whether the override colour is requested
func (t *Timer) Override() bool {
	return t.session.Active && t.session.Override
}

// Apply mutates the session according to cmd. It reports whether the
// session changed.
func (t *Timer) Apply(cmd Command, now time.Time) bool {
	switch cmd.Kind {
	case CommandStart:
		if cmd.Duration <= 0 {
			return false
		}
		// A new session replaces the old one outright; durations never merge.
		t.session = Session{
			Active:    true,
			StartedAt: now,
			Duration:  cmd.Duration,
		}
		return true
	case CommandEnd:
		if !t.session.Active {
			return false
		}
		t.end()
		return true
	default:
		return false
	}
}

// ToggleOverride flips the override flag of an active session. It is a
// no-op while inactive and reports whether anything changed.
func (t *Timer) ToggleOverride() bool {
	if !t.session.Active {
		return false
	}
	t.session.Override = !t.session.Override
	return true
}

// Cancel ends an active session locally and notifies the canceller. It
// reports whether a session was cancelled.
func (t *Timer) Cancel(now time.Time) bool {
	if !t.session.Active {
		return false
	}
	t.end()
	t.notifyCancel(now)
	return true
}

// Tick computes the phase of the session at now. When the session has run
// its course it is ended, the canceller is notified and PhaseExpired is
// returned; the caller reacts by forcing the idle display.
func (t *Timer) Tick(now time.Time) Status {
	if !t.session.Active {
		return Status{Phase: PhaseInactive}
	}

	elapsed := now.Sub(t.session.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= t.session.Duration {
		t.end()
		t.notifyCancel(now)
		return Status{Phase: PhaseExpired}
	}

	remaining := t.session.Duration - elapsed
	if remaining > t.BlinkThreshold() {
		return Status{Phase: PhaseSolid, Remaining: remaining}
	}

	on := true
	if t.config.BlinkInterval > 0 {
		on = (elapsed/t.config.BlinkInterval)%2 == 0
	}
	return Status{Phase: PhaseBlinking, BlinkOn: on, Remaining: remaining}
}

// BlinkThreshold returns the remaining time at which the active session
// starts blinking
func (t *Timer) BlinkThreshold() time.Duration {
	threshold := t.config.BlinkWindowCap
	if t.config.BlinkFraction > 0 {
		threshold = min(threshold, t.session.Duration/time.Duration(t.config.BlinkFraction))
	}
	return threshold
}

func (t *Timer) end() {
	t.session.Active = false
	t.session.Override = false
}

func (t *Timer) notifyCancel(now time.Time) {
	if t.canceller != nil {
		t.canceller.EnqueueCancel(now)
	}
}
