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
Package report queues tag identifiers for the check-in service and turns
the service's answers into session commands.

Reports are at-most-once: an item leaves the queue immediately before its
single report attempt and is never re-queued, because a lost check-in is
preferable to a duplicate one. While the kiosk is offline items accumulate
without bound and are drained in FIFO order once connectivity returns.
*/
package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/session"
)

// CancelUID is the sentinel identifier reported when a session ends locally
const CancelUID = "-"

// Item is a queued report
type Item struct {
	EnqueuedAt time.Time
	UID        string
}

// IsCancel reports whether the item is the session end/cancel sentinel
func (i Item) IsCancel() bool {
	return i.UID == CancelUID
}

// Connectivity gates draining
type Connectivity interface {
	IsConnected() bool
}

// Outcome describes one report attempt
type Outcome struct {
	Err     error
	Item    Item
	Reason  string
	Command session.Command
	Latency time.Duration
	// Delivered is false when no response was received
	Delivered bool
}

// Queue is the FIFO of pending reports
type Queue struct {
	reporter Reporter
	logger   *slog.Logger
	items    []Item
}

// NewQueue creates an empty queue that drains through reporter
func NewQueue(reporter Reporter, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{reporter: reporter, logger: logger}
}

// Enqueue appends an item. It never blocks and never fails.
func (q *Queue) Enqueue(item Item) {
	q.items = append(q.items, item)
}

// EnqueueUID appends a formatted tag identifier
func (q *Queue) EnqueueUID(uid string, now time.Time) {
	q.Enqueue(Item{UID: uid, EnqueuedAt: now})
}

// EnqueueCancel appends the cancel sentinel
func (q *Queue) EnqueueCancel(now time.Time) {
	q.Enqueue(Item{UID: CancelUID, EnqueuedAt: now})
}

// Len returns the number of pending items
func (q *Queue) Len() int {
	return len(q.items)
}

// Pending returns a copy of the pending items in order
func (q *Queue) Pending() []Item {
	return append([]Item(nil), q.items...)
}

// Drain reports pending items in FIFO order while conn is connected. Every
// attempt yields one Outcome. A transport failure drops the item and ends
// the drain for this call; the remaining items wait for the next one.
func (q *Queue) Drain(ctx context.Context, conn Connectivity) []Outcome {
	if conn == nil || !conn.IsConnected() || q.reporter == nil {
		return nil
	}

	var outcomes []Outcome
	for len(q.items) > 0 {
		if ctx.Err() != nil {
			break
		}

		item := q.items[0]
		q.items[0] = Item{}
		q.items = q.items[1:]

		outcome := q.report(ctx, item)
		outcomes = append(outcomes, outcome)
		if !outcome.Delivered {
			break
		}
	}

	if len(q.items) == 0 {
		// release the backing array after a long outage
		q.items = nil
	}
	return outcomes
}

func (q *Queue) report(ctx context.Context, item Item) Outcome {
	start := time.Now()
	q.logger.Info("sending report", "uid", item.UID, "queued_for", start.Sub(item.EnqueuedAt))

	result, err := q.reporter.Report(ctx, item.UID)
	outcome := Outcome{
		Item:    item,
		Command: session.Ignore(),
		Err:     err,
		Latency: time.Since(start),
	}

	var statusErr *StatusError
	switch {
	case err == nil:
		outcome.Delivered = true
		outcome.Command, outcome.Reason = result.Command()
		q.logger.Info("report response", "uid", item.UID, "command", outcome.Command.String(),
			"latency", outcome.Latency)
		if outcome.Reason != "" {
			q.logger.Info("report ignored", "uid", item.UID, "reason", outcome.Reason)
		}
	case errors.As(err, &statusErr):
		outcome.Delivered = true
		outcome.Reason = "non-2xx status"
		q.logger.Warn("report rejected", "uid", item.UID, "status", statusErr.StatusCode, "body", statusErr.Body)
	case errors.Is(err, ErrMalformedResponse):
		outcome.Delivered = true
		outcome.Reason = "malformed response"
		q.logger.Warn("report response malformed", "uid", item.UID, "error", err)
	default:
		outcome.Reason = "transport failure"
		q.logger.Error("report failed, dropping item", "uid", item.UID, "error", err)
	}
	return outcome
}
