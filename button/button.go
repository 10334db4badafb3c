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

// Package button reads the kiosk's push button from a GPIO line
package button

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned when the configured GPIO name is unknown
var ErrPinNotFound = errors.New("gpio pin not found")

// Config selects the GPIO line
type Config struct {
	// Pin is a periph pin name such as "GPIO17"
	Pin string
	// ActiveLow inverts the level for buttons wired to ground
	ActiveLow bool
}

// GPIO is a button on a GPIO input
type GPIO struct {
	pin       gpio.PinIn
	activeLow bool
}

// Open initialises the host drivers and configures the pin as an input
func Open(config Config) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}

	pin := gpioreg.ByName(config.Pin)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, config.Pin)
	}
	return New(pin, config.ActiveLow)
}

// New wraps an already resolved pin
func New(pin gpio.PinIn, activeLow bool) (*GPIO, error) {
	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure %s as input: %w", pin, err)
	}
	return &GPIO{pin: pin, activeLow: activeLow}, nil
}

// Pressed returns the instantaneous button level
func (b *GPIO) Pressed() bool {
	high := b.pin.Read() == gpio.High
	return high != b.activeLow
}

// Null is a button that is never pressed
type Null struct{}

// Pressed always returns false
func (Null) Pressed() bool {
	return false
}
