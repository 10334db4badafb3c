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

// Package gesture classifies button presses from raw GPIO level samples.
package gesture

import (
	"time"
)

// DefaultLongPressThreshold is the hold duration at which a press becomes a long press
const DefaultLongPressThreshold = 1000 * time.Millisecond

// Gesture is a completed button press
type Gesture int

const (
	ShortPress Gesture = iota + 1
	LongPress
)

func (g Gesture) String() string {
	switch g {
	case ShortPress:
		return "short press"
	case LongPress:
		return "long press"
	default:
		return "none"
	}
}

// Config holds the classification policy
type Config struct {
	LongPressThreshold time.Duration
}

// DefaultConfig returns the standard classification policy
func DefaultConfig() *Config {
	return &Config{LongPressThreshold: DefaultLongPressThreshold}
}

// Classifier converts level transitions into gestures.
// It moves Idle -> Pressed(downAt) -> Idle on level edges.
type Classifier struct {
	downAt    time.Time
	config    *Config
	lastLevel bool
	pressed   bool
	primed    bool
}

// NewClassifier creates a classifier. A nil config selects DefaultConfig.
func NewClassifier(config *Config) *Classifier {
	if config == nil {
		config = DefaultConfig()
	}
	return &Classifier{config: config}
}

// Pressed reports whether a press is in progress
func (c *Classifier) Pressed() bool {
	return c.pressed
}

// Poll feeds one level sample. A gesture is returned on the falling edge
// that completes a press. The first sample only establishes the baseline
// level, so a button held at startup never produces a gesture.
func (c *Classifier) Poll(level bool, now time.Time) (Gesture, bool) {
	if !c.primed {
		c.primed = true
		c.lastLevel = level
		return 0, false
	}

	prev := c.lastLevel
	c.lastLevel = level

	switch {
	case level && !prev:
		c.pressed = true
		c.downAt = now
	case !level && prev:
		if !c.pressed {
			return 0, false
		}
		held := now.Sub(c.downAt)
		c.pressed = false
		c.downAt = time.Time{}
		if held >= c.config.LongPressThreshold {
			return LongPress, true
		}
		return ShortPress, true
	}
	return 0, false
}
