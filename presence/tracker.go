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
Package presence debounces raw NFC reader polls into tap events.

A reader poll either returns a tag UID or nothing. The Tracker turns that
stream into discrete TagEvents: one per tap, where repeated reads of a tag
resting on the reader are swallowed and short read gaps (reader flicker) do
not count as a removal.
*/
package presence

import (
	"encoding/hex"
	"strings"
	"time"
)

const (
	// DefaultRetriggerWindow is the read gap after which a resting tag counts as a new tap
	DefaultRetriggerWindow = 1500 * time.Millisecond
	// DefaultRemovalDebounce is how long a tag must go unread before it is considered removed
	DefaultRemovalDebounce = 3000 * time.Millisecond
)

// Config holds the debounce policy of a Tracker
type Config struct {
	RetriggerWindow time.Duration
	RemovalDebounce time.Duration
}

// DefaultConfig returns the standard debounce policy
func DefaultConfig() *Config {
	return &Config{
		RetriggerWindow: DefaultRetriggerWindow,
		RemovalDebounce: DefaultRemovalDebounce,
	}
}

// TagEvent is emitted once per accepted tap
type TagEvent struct {
	ObservedAt time.Time
	ID         []byte
}

// HexID returns the identifier as uppercase hex without separators
func (e TagEvent) HexID() string {
	return FormatUID(e.ID)
}

// FormatUID renders a tag identifier as uppercase hex without separators
func FormatUID(uid []byte) string {
	return strings.ToUpper(hex.EncodeToString(uid))
}

// Tracker owns the presence state of the reader
type Tracker struct {
	config *Config
	state  State
}

// NewTracker creates a tracker. A nil config selects DefaultConfig.
func NewTracker(config *Config) *Tracker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Tracker{config: config}
}

// State returns a copy of the current presence state
func (t *Tracker) State() State {
	s := t.state
	s.LastUID = append([]byte(nil), t.state.LastUID...)
	return s
}

// Poll feeds one raw reader result into the tracker. raw is nil (or empty)
// when the reader saw no tag. A TagEvent is returned when the read counts as
// a new tap.
//
// The re-trigger window runs from LastSeen, not from LastEvent. A tag held on
// the reader and read every tick therefore taps once, however long it stays;
// it taps again only after a read gap longer than the window.
func (t *Tracker) Poll(raw []byte, now time.Time) *TagEvent {
	if len(raw) == 0 {
		t.handleMiss(now)
		return nil
	}

	retrigger := t.state.Present && t.state.SinceLastSeen(now) > t.config.RetriggerWindow
	isNew := !t.state.Present || retrigger

	t.state.TransitionToPresent(raw, now)
	if !isNew {
		return nil
	}

	t.state.LastEvent = now
	return &TagEvent{
		ID:         append([]byte(nil), raw...),
		ObservedAt: now,
	}
}

// handleMiss clears presence once the removal debounce has elapsed
func (t *Tracker) handleMiss(now time.Time) {
	if !t.state.Present {
		return
	}
	if t.state.SinceLastSeen(now) >= t.config.RemovalDebounce {
		t.state.TransitionToIdle()
	}
}
