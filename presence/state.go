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

package presence

import (
	"time"
)

// DetectionState represents the finite state machine for tag presence
type DetectionState int

const (
	StateIdle DetectionState = iota
	StateTagPresent
)

// String returns a human readable name for the state
func (s DetectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTagPresent:
		return "present"
	default:
		return "unknown"
	}
}

// State tracks the presence of a tag on the reader.
//
// Present implies LastSeen is set. LastEvent is the observation time of the
// most recent accepted TagEvent.
type State struct {
	LastSeen       time.Time
	LastEvent      time.Time
	LastUID        []byte
	DetectionState DetectionState
	Present        bool
}

// TransitionToPresent records a successful read
func (s *State) TransitionToPresent(uid []byte, now time.Time) {
	s.DetectionState = StateTagPresent
	s.Present = true
	s.LastSeen = now
	s.LastUID = append(s.LastUID[:0], uid...)
}

// TransitionToIdle resets to idle state
func (s *State) TransitionToIdle() {
	s.DetectionState = StateIdle
	s.Present = false
	s.LastUID = nil
	s.LastSeen = time.Time{}
}

// SinceLastSeen returns how long ago the tag was last read. Zero when idle.
func (s *State) SinceLastSeen(now time.Time) time.Duration {
	if !s.Present {
		return 0
	}
	return now.Sub(s.LastSeen)
}
