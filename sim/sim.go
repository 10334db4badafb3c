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
Package sim stands in for the kiosk hardware so the control loop can run on
a desktop. Commands read line by line from a terminal drive a virtual tag,
button and uplink:

	tap <uid>     tag in the field for half a second
	place <uid>   tag rests on the reader until removed
	remove        take the tag away
	press         short button press
	hold          long button press
	online        bring the uplink up
	offline       take the uplink down
*/
package sim

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/network"
)

const (
	tapDuration   = 500 * time.Millisecond
	shortDuration = 200 * time.Millisecond
	longDuration  = 1500 * time.Millisecond
)

// ErrUnknownCommand is returned for a line that is not a command
var ErrUnknownCommand = errors.New("unknown command")

// Device is a simulated reader, button and uplink in one
type Device struct {
	tagUntil     time.Time
	pressedUntil time.Time
	now          func() time.Time
	logger       *slog.Logger
	uid          []byte
	mu           sync.Mutex
	connected    bool
}

// New creates a simulated device with the uplink in the given state
func New(connected bool, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{connected: connected, logger: logger, now: time.Now}
}

// ReadTag returns the simulated tag while it is in the field
func (d *Device) ReadTag(context.Context, time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uid == nil {
		return nil, nil
	}
	if !d.tagUntil.IsZero() && !d.now().Before(d.tagUntil) {
		d.uid = nil
		return nil, nil
	}
	return append([]byte(nil), d.uid...), nil
}

// Pressed reports whether a simulated press is in progress
func (d *Device) Pressed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now().Before(d.pressedUntil)
}

// Connect brings the simulated uplink up
func (d *Device) Connect(_ context.Context, creds network.Credentials, _ time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.Info("simulated wifi connect", "network", creds.String())
	d.connected = true
	return true
}

// IsConnected returns the simulated link state
func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Exec applies one command line
func (d *Device) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()

	switch strings.ToLower(fields[0]) {
	case "tap", "place":
		if len(fields) != 2 {
			return fmt.Errorf("%s needs a hex uid", fields[0])
		}
		uid, err := hex.DecodeString(fields[1])
		if err != nil || len(uid) == 0 {
			return fmt.Errorf("invalid uid %q", fields[1])
		}
		d.uid = uid
		d.tagUntil = time.Time{}
		if fields[0] == "tap" {
			d.tagUntil = now.Add(tapDuration)
		}
	case "remove":
		d.uid = nil
	case "press":
		d.pressedUntil = now.Add(shortDuration)
	case "hold":
		d.pressedUntil = now.Add(longDuration)
	case "online":
		d.connected = true
	case "offline":
		d.connected = false
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
	return nil
}

// Run executes commands from r until it is exhausted or ctx is done
func (d *Device) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case line := <-lines:
			if err := d.Exec(line); err != nil {
				d.logger.Warn("simulator", "error", err)
			}
		}
	}
}
