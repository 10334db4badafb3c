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

package button

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestGPIO_Pressed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     gpio.Level
		activeLow bool
		want      bool
	}{
		{name: "ActiveHighPressed", level: gpio.High, want: true},
		{name: "ActiveHighReleased", level: gpio.Low, want: false},
		{name: "ActiveLowPressed", level: gpio.Low, activeLow: true, want: true},
		{name: "ActiveLowReleased", level: gpio.High, activeLow: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pin := &gpiotest.Pin{N: "GPIO17"}
			b, err := New(pin, tt.activeLow)
			require.NoError(t, err)
			// In() resets the level to the pull direction
			pin.L = tt.level
			assert.Equal(t, tt.want, b.Pressed())
		})
	}
}

func TestGPIO_PullFollowsPolarity(t *testing.T) {
	t.Parallel()

	pin := &gpiotest.Pin{N: "GPIO17"}
	_, err := New(pin, true)
	require.NoError(t, err)
	assert.Equal(t, gpio.PullUp, pin.P)

	pin = &gpiotest.Pin{N: "GPIO27"}
	_, err = New(pin, false)
	require.NoError(t, err)
	assert.Equal(t, gpio.PullDown, pin.P)
}

func TestNull(t *testing.T) {
	t.Parallel()
	assert.False(t, Null{}.Pressed())
}
