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
	"time"

	"github.com/ZaparooProject/checkin-kiosk/network"
)

// TagReader polls the NFC reader once. It returns (nil, nil) when no tag is
// in the field; an error is a reader fault, which the loop treats as a miss.
type TagReader interface {
	ReadTag(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// NDEFReader is implemented by readers that can read the NDEF text records
// of the tag most recently returned by ReadTag
type NDEFReader interface {
	ReadNDEFText(ctx context.Context) ([]string, error)
}

// Button exposes the instantaneous button level (true while pressed)
type Button interface {
	Pressed() bool
}

// Connectivity is the network uplink
type Connectivity interface {
	Connect(ctx context.Context, creds network.Credentials, timeout time.Duration) bool
	IsConnected() bool
}

// Clock provides time to the loop. Sleep blocks for d or until ctx is done.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock returns the wall clock
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
