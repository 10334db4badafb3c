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
Package kiosk implements the control loop of an NFC check-in kiosk.

A kiosk sits at a table. Guests tap an NFC tag to check in or out; the
kiosk reports every tap to a remote check-in service and shows the state of
the table's session on an RGB LED ring. A single push button lets staff
silence the ring (short press) or end the session on the spot (long press).

The loop is a single goroutine that ticks at a fixed cadence. Each tick it:

  - polls the NFC reader and turns reads into tap events (package presence)
  - samples the button and classifies presses (package gesture)
  - drains queued reports to the check-in service while online (package report)
  - advances the session timer (package session)
  - resolves and renders the LED display (package indicator)

Basic Usage:

	import (
	    "github.com/ZaparooProject/checkin-kiosk"
	    "github.com/ZaparooProject/checkin-kiosk/report"
	)

	client, err := report.NewClient(report.ClientConfig{
	    URL:       "https://example.org/setStatus",
	    AuthToken: token,
	    TableID:   "table-7",
	})
	if err != nil {
	    return err
	}

	loop, err := kiosk.New(reader, button, uplink, client, strip,
	    kiosk.WithLogger(logger),
	    kiosk.WithProvisioning("04A1B2C3", network.Credentials{SSID: "venue"}),
	)
	if err != nil {
	    return err
	}

	return loop.Run(ctx)

Hardware:

The reader, button, uplink and LED strip are interfaces. Package reader
drives a PN532 over UART or I2C, package button reads a GPIO line, package
leds writes a WS2812 ring over SPI and package network joins Wi-Fi through
NetworkManager. Package sim replaces all of them with a terminal driven
simulation.

Provisioning:

While the kiosk is offline, tapping the configured provisioning tag joins a
Wi-Fi network. If the reader implements NDEFReader and the tag carries a
JSON text record with an ssid (and networkPwd), that network is used;
otherwise the configured one is. The connect attempt blocks the loop;
nothing else can happen until the network is up or the attempt has failed.

Thread Safety:

Coordinator is not thread-safe. Drive it from one goroutine; event sinks are
called synchronously from that goroutine and must not block.
*/
package kiosk
