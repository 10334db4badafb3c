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

package session

import (
	"fmt"
	"time"
)

// CommandKind selects how a Command mutates the session
type CommandKind int

const (
	CommandIgnore CommandKind = iota
	CommandStart
	CommandEnd
)

func (k CommandKind) String() string {
	switch k {
	case CommandIgnore:
		return "ignore"
	case CommandStart:
		return "start"
	case CommandEnd:
		return "end"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a session mutation derived from a check-in service response
type Command struct {
	Kind     CommandKind
	Duration time.Duration
}

// Ignore returns a command that leaves the session untouched
func Ignore() Command {
	return Command{Kind: CommandIgnore}
}

// Start returns a command that starts (or replaces) the session
func Start(duration time.Duration) Command {
	return Command{Kind: CommandStart, Duration: duration}
}

// End returns a command that ends the active session
func End() Command {
	return Command{Kind: CommandEnd}
}

func (c Command) String() string {
	if c.Kind == CommandStart {
		return fmt.Sprintf("start(%s)", c.Duration)
	}
	return c.Kind.String()
}
