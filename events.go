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
	"time"
)

// EventKind identifies what happened in the control loop
type EventKind string

const (
	EventTagTapped        EventKind = "tag_tapped"
	EventProvisioned      EventKind = "provisioned"
	EventProvisionFailed  EventKind = "provision_failed"
	EventReported         EventKind = "reported"
	EventReportFailed     EventKind = "report_failed"
	EventSessionStarted   EventKind = "session_started"
	EventSessionEnded     EventKind = "session_ended"
	EventSessionExpired   EventKind = "session_expired"
	EventSessionCancelled EventKind = "session_cancelled"
	EventOverrideToggled  EventKind = "override_toggled"
)

// Event is a notable state change, handed to every EventSink
type Event struct {
	At       time.Time     `json:"at"`
	Kind     EventKind     `json:"kind"`
	UID      string        `json:"uid,omitempty"`
	Command  string        `json:"command,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Override bool          `json:"override,omitempty"`
}

// EventSink observes loop events. Record is called from the control loop
// and must not block.
type EventSink interface {
	Record(event Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(Event)

// Record calls f(event)
func (f EventSinkFunc) Record(event Event) {
	f(event)
}
