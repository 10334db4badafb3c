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
Package network manages the kiosk's uplink.

Two managers are provided: NMCLI drives NetworkManager through the nmcli
command line tool to join a Wi-Fi network on demand, and Wired reports a
permanent link for kiosks on Ethernet. Both satisfy the connectivity
collaborator of the control loop.
*/
package network

import (
	"context"
	"errors"
	"time"
)

// DefaultConnectTimeout bounds a provisioning connect attempt
const DefaultConnectTimeout = 20 * time.Second

// ErrNoSSID is returned when connecting without a network name
var ErrNoSSID = errors.New("wifi SSID not configured")

// Credentials identify the Wi-Fi network joined on provisioning
type Credentials struct {
	SSID       string
	Passphrase string
}

// Valid reports whether the credentials name a network
func (c Credentials) Valid() bool {
	return c.SSID != ""
}

// String hides the passphrase
func (c Credentials) String() string {
	return "ssid=" + c.SSID
}

// Wired is an uplink that is always up
type Wired struct{}

// Connect always succeeds
func (Wired) Connect(context.Context, Credentials, time.Duration) bool {
	return true
}

// IsConnected always reports true
func (Wired) IsConnected() bool {
	return true
}
