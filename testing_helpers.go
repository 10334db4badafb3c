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
	"sync"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/indicator"
	"github.com/ZaparooProject/checkin-kiosk/network"
	"github.com/ZaparooProject/checkin-kiosk/report"
)

// FakeClock is a manual clock. Sleep advances time instead of blocking so
// that loops driven by it run instantly in tests.
type FakeClock struct {
	now   time.Time
	slept time.Duration
	mu    sync.Mutex
}

// NewFakeClock creates a clock frozen at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d unless ctx is already done
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
	return nil
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Slept returns the total time spent in Sleep
func (c *FakeClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// ScriptedReader is a TagReader whose field is controlled by the test
type ScriptedReader struct {
	err     error
	ndefErr error
	uid     []byte
	ndef    []string
	reads   int
	mu      sync.Mutex
}

// NewScriptedReader creates a reader with an empty field
func NewScriptedReader() *ScriptedReader {
	return &ScriptedReader{}
}

// SetTag places a tag in the field
func (r *ScriptedReader) SetTag(uid []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uid = append([]byte(nil), uid...)
}

// RemoveTag empties the field
func (r *ScriptedReader) RemoveTag() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uid = nil
}

// SetError makes every read fail with err until cleared with nil
func (r *ScriptedReader) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Reads returns the number of ReadTag calls
func (r *ScriptedReader) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

// ReadTag returns the tag in the field, if any
func (r *ScriptedReader) ReadTag(_ context.Context, _ time.Duration) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	if r.uid == nil {
		return nil, nil
	}
	return append([]byte(nil), r.uid...), nil
}

// SetNDEFText sets the text records stored on the tag in the field
func (r *ScriptedReader) SetNDEFText(texts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ndef = append([]string(nil), texts...)
}

// SetNDEFError makes NDEF reads fail with err until cleared with nil
func (r *ScriptedReader) SetNDEFError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ndefErr = err
}

// ReadNDEFText returns the scripted text records
func (r *ScriptedReader) ReadNDEFText(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ndefErr != nil {
		return nil, r.ndefErr
	}
	return append([]string(nil), r.ndef...), nil
}

// FakeButton is a Button whose level is set by the test
type FakeButton struct {
	mu      sync.Mutex
	pressed bool
}

// SetPressed sets the button level
func (b *FakeButton) SetPressed(pressed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pressed = pressed
}

// Pressed returns the current level
func (b *FakeButton) Pressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pressed
}

// FakeConnectivity is a Connectivity with a scripted link state
type FakeConnectivity struct {
	lastCreds     network.Credentials
	connectCalls  int
	mu            sync.Mutex
	connected     bool
	connectResult bool
}

// NewFakeConnectivity creates an uplink in the given state. Connect succeeds
// unless SetConnectResult(false) is called.
func NewFakeConnectivity(connected bool) *FakeConnectivity {
	return &FakeConnectivity{connected: connected, connectResult: true}
}

// SetConnected sets the link state
func (f *FakeConnectivity) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

// SetConnectResult sets the outcome of future Connect calls
func (f *FakeConnectivity) SetConnectResult(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectResult = ok
}

// ConnectCalls returns how many times Connect was invoked
func (f *FakeConnectivity) ConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

// LastCredentials returns the credentials of the most recent Connect
func (f *FakeConnectivity) LastCredentials() network.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCreds
}

// Connect records the call and applies the scripted result
func (f *FakeConnectivity) Connect(_ context.Context, creds network.Credentials, _ time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	f.lastCreds = creds
	if f.connectResult {
		f.connected = true
	}
	return f.connectResult
}

// IsConnected returns the link state
func (f *FakeConnectivity) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// RecordingStrip is an indicator.Strip that keeps every frame written
type RecordingStrip struct {
	err    error
	frames []indicator.Frame
	mu     sync.Mutex
}

// Write records frame
func (s *RecordingStrip) Write(frame indicator.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, append(indicator.Frame(nil), frame...))
	return nil
}

// SetError makes writes fail with err until cleared with nil
func (s *RecordingStrip) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Frames returns a copy of the recorded frames
func (s *RecordingStrip) Frames() []indicator.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]indicator.Frame(nil), s.frames...)
}

// Last returns the most recent frame, or nil
func (s *RecordingStrip) Last() indicator.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// FakeReporter is a report.Reporter with configurable behaviour
type FakeReporter struct {
	ReportFunc func(uid string) (*report.Result, error)
	uids       []string
	mu         sync.Mutex
}

// Report records uid and delegates to ReportFunc. Without one it answers
// with an ignored response.
func (r *FakeReporter) Report(_ context.Context, uid string) (*report.Result, error) {
	r.mu.Lock()
	r.uids = append(r.uids, uid)
	fn := r.ReportFunc
	r.mu.Unlock()

	if fn != nil {
		return fn(uid)
	}
	return &report.Result{}, nil
}

// UIDs returns every uid reported, in order
func (r *FakeReporter) UIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.uids...)
}

// EventRecorder is an EventSink that keeps every event
type EventRecorder struct {
	events []Event
	mu     sync.Mutex
}

// Record stores event
func (r *EventRecorder) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Kinds returns the kinds of the recorded events, in order
func (r *EventRecorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// Count returns how many events of kind were recorded
func (r *EventRecorder) Count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
