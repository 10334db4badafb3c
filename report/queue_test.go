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

package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

type connState bool

func (c connState) IsConnected() bool { return bool(c) }

type scriptedResponse struct {
	result *Result
	err    error
}

// scriptedReporter replays responses in order and records the reported UIDs
type scriptedReporter struct {
	queue     *Queue
	responses []scriptedResponse
	uids      []string
	// pendingAtCall records queue length when each report starts
	pendingAtCall []int
}

func (r *scriptedReporter) Report(_ context.Context, uid string) (*Result, error) {
	r.uids = append(r.uids, uid)
	if r.queue != nil {
		r.pendingAtCall = append(r.pendingAtCall, r.queue.Len())
	}
	if len(r.responses) == 0 {
		return &Result{Delay: intPtr(-1)}, nil
	}
	resp := r.responses[0]
	r.responses = r.responses[1:]
	return resp.result, resp.err
}

func createTestQueue(responses ...scriptedResponse) (*Queue, *scriptedReporter) {
	reporter := &scriptedReporter{responses: responses}
	queue := NewQueue(reporter, slog.New(slog.NewTextHandler(io.Discard, nil)))
	reporter.queue = queue
	return queue, reporter
}

func TestQueue_Enqueue(t *testing.T) {
	t.Parallel()
	queue, _ := createTestQueue()

	queue.EnqueueUID("AA", t0)
	queue.EnqueueCancel(t0.Add(time.Second))
	queue.EnqueueUID("AA", t0.Add(2*time.Second))

	pending := queue.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "AA", pending[0].UID)
	assert.True(t, pending[1].IsCancel())
	assert.Equal(t, "AA", pending[2].UID, "duplicates are kept")
	assert.Equal(t, t0.Add(time.Second), pending[1].EnqueuedAt)
}

func TestQueue_DrainOffline(t *testing.T) {
	t.Parallel()
	queue, reporter := createTestQueue()
	queue.EnqueueUID("AA", t0)
	queue.EnqueueUID("BB", t0)

	for i := 0; i < 10; i++ {
		assert.Empty(t, queue.Drain(context.Background(), connState(false)))
		assert.Equal(t, 2, queue.Len())
	}
	assert.Empty(t, reporter.uids)

	assert.Empty(t, queue.Drain(context.Background(), nil))
	assert.Equal(t, 2, queue.Len())
}

func TestQueue_DrainPreservesOrder(t *testing.T) {
	t.Parallel()
	queue, reporter := createTestQueue()
	for _, uid := range []string{"01", "02", CancelUID, "03"} {
		queue.EnqueueUID(uid, t0)
	}

	outcomes := queue.Drain(context.Background(), connState(true))
	require.Len(t, outcomes, 4)
	assert.Equal(t, []string{"01", "02", CancelUID, "03"}, reporter.uids)
	assert.Equal(t, 0, queue.Len())
	// each item leaves the queue before its report starts
	assert.Equal(t, []int{3, 2, 1, 0}, reporter.pendingAtCall)
}

func TestQueue_DrainCommands(t *testing.T) {
	t.Parallel()
	queue, _ := createTestQueue(
		scriptedResponse{result: &Result{Delay: intPtr(20), CheckedIn: boolPtr(true)}},
		scriptedResponse{result: &Result{Delay: intPtr(-1), CheckedIn: boolPtr(true)}},
		scriptedResponse{err: &StatusError{StatusCode: 401}},
		scriptedResponse{err: ErrMalformedResponse},
		scriptedResponse{result: &Result{Delay: intPtr(0), CheckedIn: boolPtr(false)}},
	)
	for i := 0; i < 5; i++ {
		queue.EnqueueUID("AA", t0)
	}

	outcomes := queue.Drain(context.Background(), connState(true))
	require.Len(t, outcomes, 5)

	want := []session.Command{
		session.Start(20 * time.Minute),
		session.Ignore(),
		session.Ignore(),
		session.Ignore(),
		session.End(),
	}
	for i, outcome := range outcomes {
		assert.Equal(t, want[i], outcome.Command, "outcome %d", i)
		assert.True(t, outcome.Delivered, "outcome %d", i)
	}
	assert.Equal(t, "non-2xx status", outcomes[2].Reason)
	assert.Equal(t, "malformed response", outcomes[3].Reason)
}

func TestQueue_DrainTransportFailure(t *testing.T) {
	t.Parallel()
	queue, reporter := createTestQueue(
		scriptedResponse{err: errors.Join(ErrTransport, context.DeadlineExceeded)},
	)
	queue.EnqueueUID("AA", t0)
	queue.EnqueueUID("BB", t0)
	queue.EnqueueUID("CC", t0)

	outcomes := queue.Drain(context.Background(), connState(true))
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Delivered)
	assert.Equal(t, session.Ignore(), outcomes[0].Command)
	assert.Equal(t, 2, queue.Len(), "exactly one item removed per attempt")

	// The failed item is not retried
	outcomes = queue.Drain(context.Background(), connState(true))
	require.Len(t, outcomes, 2)
	assert.Equal(t, []string{"AA", "BB", "CC"}, reporter.uids)
	assert.Equal(t, 0, queue.Len())
}

func TestQueue_DrainCancelledContext(t *testing.T) {
	t.Parallel()
	queue, reporter := createTestQueue()
	queue.EnqueueUID("AA", t0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, queue.Drain(ctx, connState(true)))
	assert.Empty(t, reporter.uids)
	assert.Equal(t, 1, queue.Len())
}

func TestQueue_EmptyDrain(t *testing.T) {
	t.Parallel()
	queue, _ := createTestQueue()
	assert.Empty(t, queue.Drain(context.Background(), connState(true)))
}
