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
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/gesture"
	"github.com/ZaparooProject/checkin-kiosk/indicator"
	"github.com/ZaparooProject/checkin-kiosk/network"
	"github.com/ZaparooProject/checkin-kiosk/presence"
	"github.com/ZaparooProject/checkin-kiosk/session"
)

// Loop policy defaults
const (
	DefaultPollInterval    = 50 * time.Millisecond
	DefaultReadTimeout     = 200 * time.Millisecond
	DefaultAcknowledgeHold = 200 * time.Millisecond
)

// Config holds the policy of the control loop
type Config struct {
	Presence        *presence.Config
	Gesture         *gesture.Config
	Session         *session.Config
	Credentials     network.Credentials
	ProvisioningUID string
	Palette         indicator.Palette
	PollInterval    time.Duration
	ReadTimeout     time.Duration
	AcknowledgeHold time.Duration
	ConnectTimeout  time.Duration
	PixelCount      int
}

// DefaultConfig returns the stock kiosk policy
func DefaultConfig() *Config {
	return &Config{
		Presence:        presence.DefaultConfig(),
		Gesture:         gesture.DefaultConfig(),
		Session:         session.DefaultConfig(),
		Palette:         indicator.DefaultPalette(),
		PollInterval:    DefaultPollInterval,
		ReadTimeout:     DefaultReadTimeout,
		AcknowledgeHold: DefaultAcknowledgeHold,
		ConnectTimeout:  network.DefaultConnectTimeout,
		PixelCount:      indicator.DefaultPixelCount,
	}
}

// Option is a functional option for configuring a Coordinator
type Option func(*Coordinator) error

// WithConfig replaces the whole loop policy
func WithConfig(config *Config) Option {
	return func(c *Coordinator) error {
		if config == nil {
			return errors.New("config cannot be nil")
		}
		c.config = config
		return nil
	}
}

// WithLogger sets the logger used by the loop and its components
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithClock sets the time source
func WithClock(clock Clock) Option {
	return func(c *Coordinator) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		c.clock = clock
		return nil
	}
}

// WithSinks adds event sinks
func WithSinks(sinks ...EventSink) Option {
	return func(c *Coordinator) error {
		for _, sink := range sinks {
			if sink != nil {
				c.sinks = append(c.sinks, sink)
			}
		}
		return nil
	}
}

// WithProvisioning sets the tag that joins the configured Wi-Fi network
// while the kiosk is offline
func WithProvisioning(uid string, creds network.Credentials) Option {
	return func(c *Coordinator) error {
		c.config.ProvisioningUID = strings.ToUpper(strings.TrimSpace(uid))
		c.config.Credentials = creds
		return nil
	}
}

// WithPollInterval sets the tick cadence
func WithPollInterval(interval time.Duration) Option {
	return func(c *Coordinator) error {
		if interval <= 0 {
			return errors.New("poll interval must be positive")
		}
		c.config.PollInterval = interval
		return nil
	}
}
