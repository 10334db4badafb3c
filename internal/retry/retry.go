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

// Package retry provides the retry loops shared by the hardware and network adapters
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt asked to be retried
var ErrExhausted = errors.New("retries exhausted")

// Operation represents a function that can be retried
// Returns: data, shouldRetry, error
// - data: the result if successful
// - shouldRetry: true if the operation should be retried
// - error: any permanent error that should stop retries
type Operation[T any] func(ctx context.Context) (T, bool, error)

// Config configures retry behavior
type Config struct {
	OnRetry     func(attempt int) error
	Description string
	MaxRetries  int
	Delay       time.Duration
}

// Do executes an operation with retry logic. It stops early when ctx is
// done and returns ctx.Err().
func Do[T any](ctx context.Context, config Config, operation Operation[T]) (T, error) {
	var zero T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, shouldRetry, err := operation(ctx)
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}

		if attempt >= config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(attempt + 1); err != nil {
				return zero, err
			}
		}

		if err := sleep(ctx, config.Delay); err != nil {
			return zero, err
		}
	}

	return zero, exhausted(config)
}

// Until polls operation until it stops asking for a retry, the timeout
// elapses or ctx is done. Running out of time returns ErrExhausted joined with
// context.DeadlineExceeded; cancellation of ctx returns ctx.Err() alone.
func Until[T any](ctx context.Context, timeout, interval time.Duration, operation Operation[T]) (T, error) {
	var zero T

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		result, shouldRetry, err := operation(pollCtx)
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if err := sleep(pollCtx, interval); err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, errors.Join(ErrExhausted, err)
		}
	}
}

func exhausted(config Config) error {
	if config.Description == "" {
		return ErrExhausted
	}
	return errors.Join(ErrExhausted, errors.New(config.Description))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
