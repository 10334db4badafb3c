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
Package indicator decides what the LED strip shows and writes it.

Resolve maps the aggregate kiosk state to a Display using a fixed
precedence (first match wins):

 1. not connected            -> Offline
 2. no active session        -> Idle
 3. override requested       -> Override
 4. blinking phase           -> BlinkOn / BlinkOff
 5. solid phase              -> Solid

The Renderer turns a Display into a full frame and writes it to the strip
only when at least one pixel differs from the last frame written.
*/
package indicator

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/checkin-kiosk/session"
)

// DefaultPixelCount is the number of pixels on the stock ring
const DefaultPixelCount = 12

// Display is the resolved visual state of the kiosk
type Display int

const (
	DisplayOffline Display = iota
	DisplayIdle
	DisplayOverride
	DisplayBlinkOn
	DisplayBlinkOff
	DisplaySolid
	DisplayAcknowledge
)

func (d Display) String() string {
	switch d {
	case DisplayOffline:
		return "offline"
	case DisplayIdle:
		return "idle"
	case DisplayOverride:
		return "override"
	case DisplayBlinkOn:
		return "blink-on"
	case DisplayBlinkOff:
		return "blink-off"
	case DisplaySolid:
		return "solid"
	case DisplayAcknowledge:
		return "acknowledge"
	default:
		return fmt.Sprintf("Display(%d)", int(d))
	}
}

// Resolve applies the display precedence to the current state
func Resolve(connected bool, status session.Status, override bool) Display {
	switch {
	case !connected:
		return DisplayOffline
	case !status.Active():
		return DisplayIdle
	case override:
		return DisplayOverride
	case status.Phase == session.PhaseBlinking && status.BlinkOn:
		return DisplayBlinkOn
	case status.Phase == session.PhaseBlinking:
		return DisplayBlinkOff
	default:
		return DisplaySolid
	}
}

// Frame is one colour per pixel
type Frame []Color

// Equal reports whether both frames hold the same pixels
func (f Frame) Equal(other Frame) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}

// Fill returns a frame of n pixels of colour c
func Fill(n int, c Color) Frame {
	frame := make(Frame, n)
	for i := range frame {
		frame[i] = c
	}
	return frame
}

// Strip is the physical LED array
type Strip interface {
	Write(frame Frame) error
}

// Renderer owns the last-written frame buffer
type Renderer struct {
	strip   Strip
	last    Frame
	palette Palette
	pixels  int
	writes  int
}

// NewRenderer creates a renderer for a strip of n pixels
func NewRenderer(strip Strip, pixels int, palette Palette) (*Renderer, error) {
	if strip == nil {
		return nil, errors.New("strip cannot be nil")
	}
	if pixels <= 0 {
		return nil, fmt.Errorf("invalid pixel count %d", pixels)
	}
	return &Renderer{strip: strip, pixels: pixels, palette: palette}, nil
}

// Color returns the palette colour of a display state
func (r *Renderer) Color(d Display) Color {
	switch d {
	case DisplayOffline:
		return r.palette.Offline
	case DisplayIdle:
		return r.palette.Idle
	case DisplayOverride:
		return r.palette.Override
	case DisplayBlinkOn:
		return r.palette.Alert
	case DisplayBlinkOff:
		return r.palette.Off
	case DisplaySolid:
		return r.palette.Active
	case DisplayAcknowledge:
		return r.palette.Acknowledge
	default:
		return r.palette.Off
	}
}

// Render computes the target frame for a display state
func (r *Renderer) Render(d Display) Frame {
	return Fill(r.pixels, r.Color(d))
}

// Flush writes frame to the strip if it differs from the last frame
// written. It reports whether a write happened.
func (r *Renderer) Flush(frame Frame) (bool, error) {
	if r.last != nil && r.last.Equal(frame) {
		return false, nil
	}
	if err := r.strip.Write(frame); err != nil {
		return false, fmt.Errorf("write strip: %w", err)
	}
	r.last = append(r.last[:0], frame...)
	r.writes++
	return true, nil
}

// Show renders and flushes a display state in one step
func (r *Renderer) Show(d Display) (bool, error) {
	return r.Flush(r.Render(d))
}

// Last returns a copy of the last frame written, nil before the first write
func (r *Renderer) Last() Frame {
	if r.last == nil {
		return nil
	}
	return append(Frame(nil), r.last...)
}

// Writes returns the number of physical writes so far
func (r *Renderer) Writes() int {
	return r.writes
}
