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

package indicator

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is one RGB pixel value
type Color struct {
	R, G, B uint8
}

// Well-known colours
var (
	Black  = Color{}
	Red    = Color{R: 255}
	Green  = Color{G: 255}
	Blue   = Color{B: 255}
	Yellow = Color{R: 255, G: 255}
	Cyan   = Color{G: 255, B: 255}
)

// String renders the colour as #RRGGBB
func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ParseColor parses "#RRGGBB" or "RRGGBB"
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid colour %q: want RRGGBB", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Palette assigns a colour to every display state
type Palette struct {
	Offline     Color
	Idle        Color
	Override    Color
	Alert       Color
	Off         Color
	Active      Color
	Acknowledge Color
}

// DefaultPalette returns the stock kiosk colours
func DefaultPalette() Palette {
	return Palette{
		Offline:     Blue,
		Idle:        Green,
		Override:    Yellow,
		Alert:       Red,
		Off:         Black,
		Active:      Red,
		Acknowledge: Cyan,
	}
}
