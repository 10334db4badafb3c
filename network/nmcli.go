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

package network

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/internal/retry"
)

const (
	// DefaultInterface is the wireless device managed by NMCLI
	DefaultInterface = "wlan0"
	// DefaultStatusInterval is how long a link state query stays fresh
	DefaultStatusInterval = 5 * time.Second

	statusTimeout = 2 * time.Second
	connectDelay  = 2 * time.Second
	confirmPoll   = 500 * time.Millisecond
)

// Runner executes an external command and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// NMCLIOption configures an NMCLI manager
type NMCLIOption func(*NMCLI)

// WithRunner replaces the command runner
func WithRunner(run Runner) NMCLIOption {
	return func(n *NMCLI) {
		n.run = run
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) NMCLIOption {
	return func(n *NMCLI) {
		n.logger = logger
	}
}

// WithInterface selects the wireless device
func WithInterface(iface string) NMCLIOption {
	return func(n *NMCLI) {
		n.iface = iface
	}
}

// WithStatusInterval sets how often the link state is re-queried
func WithStatusInterval(interval time.Duration) NMCLIOption {
	return func(n *NMCLI) {
		n.statusInterval = interval
	}
}

// NMCLI joins Wi-Fi networks through NetworkManager's command line tool.
// The link state is cached for the status interval so that the control loop
// can ask for it on every tick.
type NMCLI struct {
	checkedAt      time.Time
	run            Runner
	now            func() time.Time
	logger         *slog.Logger
	iface          string
	statusInterval time.Duration
	mu             sync.Mutex
	connected      bool
}

// NewNMCLI creates a manager for the default wireless interface
func NewNMCLI(opts ...NMCLIOption) *NMCLI {
	n := &NMCLI{
		run:            ExecRunner,
		now:            time.Now,
		logger:         slog.Default(),
		iface:          DefaultInterface,
		statusInterval: DefaultStatusInterval,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Connect joins the network named by creds and waits until NetworkManager
// reports the link up, or timeout elapses
func (n *NMCLI) Connect(ctx context.Context, creds Credentials, timeout time.Duration) bool {
	if !creds.Valid() {
		n.logger.Warn("cannot connect", "error", ErrNoSSID)
		return false
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"device", "wifi", "connect", creds.SSID}
	if creds.Passphrase != "" {
		args = append(args, "password", creds.Passphrase)
	}
	if n.iface != "" {
		args = append(args, "ifname", n.iface)
	}

	config := retry.Config{
		Description: "nmcli connect " + creds.SSID,
		MaxRetries:  2,
		Delay:       connectDelay,
		OnRetry: func(attempt int) error {
			n.logger.Debug("retrying wifi connect", "attempt", attempt, "network", creds.String())
			return nil
		},
	}
	_, err := retry.Do(ctx, config, func(ctx context.Context) (struct{}, bool, error) {
		out, err := n.run(ctx, "nmcli", args...)
		if err == nil {
			return struct{}{}, false, nil
		}
		if ctx.Err() != nil {
			return struct{}{}, false, ctx.Err()
		}
		n.logger.Warn("wifi connect attempt failed", "network", creds.String(),
			"output", strings.TrimSpace(string(out)), "error", err)
		return struct{}{}, true, nil
	})
	if err != nil {
		n.logger.Warn("wifi connect failed", "network", creds.String(), "error", err)
		n.store(false)
		return false
	}

	_, err = retry.Until(ctx, timeout, confirmPoll, func(ctx context.Context) (bool, bool, error) {
		up, err := n.query(ctx)
		if err != nil {
			n.logger.Debug("link state query failed", "error", err)
		}
		return up, !up, nil
	})
	up := err == nil
	n.store(up)
	return up
}

// Disconnect takes the wireless interface down so that the kiosk has to
// be provisioned again
func (n *NMCLI) Disconnect(ctx context.Context) error {
	if n.iface == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	if out, err := n.run(ctx, "nmcli", "device", "disconnect", n.iface); err != nil {
		// nmcli fails when the device is already down
		n.logger.Debug("disconnect", "output", strings.TrimSpace(string(out)), "error", err)
	}
	n.store(false)
	return nil
}

// IsConnected reports the cached link state, refreshing it once the status
// interval has passed
func (n *NMCLI) IsConnected() bool {
	n.mu.Lock()
	fresh := !n.checkedAt.IsZero() && n.now().Sub(n.checkedAt) < n.statusInterval
	connected := n.connected
	n.mu.Unlock()
	if fresh {
		return connected
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	up, err := n.query(ctx)
	if err != nil {
		n.logger.Debug("link state query failed", "error", err)
	}
	if up != connected {
		n.logger.Info("link state changed", "connected", up)
	}
	n.store(up)
	return up
}

func (n *NMCLI) query(ctx context.Context) (bool, error) {
	out, err := n.run(ctx, "nmcli", "-t", "-f", "STATE", "general")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "connected", nil
}

func (n *NMCLI) store(connected bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected = connected
	n.checkedAt = n.now()
}
