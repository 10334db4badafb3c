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
Package journal keeps a local SQLite log of kiosk events.

The journal survives restarts and network outages, which makes it the
place to look when a check-in never reached the service.

Record never touches the database. Events are handed to a single writer
goroutine through a bounded buffer; when the buffer is full the event is
dropped and counted. The same goroutine prunes entries older than the
configured retention.
*/
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	kiosk "github.com/ZaparooProject/checkin-kiosk"
)

// Defaults for the writer
const (
	DefaultBufferSize    = 256
	DefaultPruneInterval = time.Hour
)

const writeTimeout = time.Second

// ErrClosed is returned by Flush after Close
var ErrClosed = errors.New("journal closed")

// Entry is one journalled event
type Entry struct {
	Kind       string `db:"kind"`
	UID        string `db:"uid"`
	Command    string `db:"command"`
	Detail     string `db:"detail"`
	ID         int64  `db:"id"`
	AtMillis   int64  `db:"at_ms"`
	DurationMS int64  `db:"duration_ms"`
	Override   bool   `db:"override"`
}

// At returns the event time
func (e Entry) At() time.Time {
	return time.UnixMilli(e.AtMillis)
}

// Option configures a Journal
type Option func(*Journal)

// WithBufferSize sets how many events may wait for the writer
func WithBufferSize(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.bufferSize = n
		}
	}
}

// WithRetention makes the writer delete entries older than retention every
// interval. Zero retention keeps everything.
func WithRetention(retention, interval time.Duration) Option {
	return func(j *Journal) {
		j.retention = retention
		if interval > 0 {
			j.pruneInterval = interval
		}
	}
}

// op is either an event to write or, when flushed is set, a barrier
type op struct {
	flushed chan struct{}
	event   kiosk.Event
}

// Journal is a kiosk.EventSink that writes to SQLite
type Journal struct {
	db            *sqlx.DB
	logger        *slog.Logger
	ops           chan op
	done          chan struct{}
	bufferSize    int
	retention     time.Duration
	pruneInterval time.Duration
	dropped       atomic.Uint64
	mu            sync.RWMutex
	closed        bool
}

// Open opens (creating if needed) the journal at path and starts its writer.
// Use ":memory:" for a throwaway journal.
func Open(path string, logger *slog.Logger, opts ...Option) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	j := &Journal{
		db:            db,
		logger:        logger,
		bufferSize:    DefaultBufferSize,
		pruneInterval: DefaultPruneInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	if err := j.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	j.ops = make(chan op, j.bufferSize)
	go j.run()
	return j, nil
}

// InitSchema ensures the events table exists
func (j *Journal) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at_ms INTEGER NOT NULL,
			kind TEXT NOT NULL,
			uid TEXT NOT NULL DEFAULT '',
			command TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			override INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_at ON events(at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Record queues event for the writer and returns at once. When the buffer is
// full, or the journal is closed, the event is dropped.
func (j *Journal) Record(event kiosk.Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}

	select {
	case j.ops <- op{event: event}:
	default:
		if j.dropped.Add(1) == 1 {
			j.logger.Warn("journal buffer full, dropping events", "buffer", j.bufferSize)
		}
	}
}

// Dropped returns how many events were not journalled
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Flush waits until every event recorded before the call has been written
func (j *Journal) Flush(ctx context.Context) error {
	flushed := make(chan struct{})

	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	select {
	case j.ops <- op{flushed: flushed}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) run() {
	defer close(j.done)

	var prune <-chan time.Time
	if j.retention > 0 {
		j.prune()
		ticker := time.NewTicker(j.pruneInterval)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case o, ok := <-j.ops:
			if !ok {
				return
			}
			if o.flushed != nil {
				close(o.flushed)
				continue
			}
			j.write(o.event)
		case <-prune:
			j.prune()
		}
	}
}

func (j *Journal) write(event kiosk.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := j.Insert(ctx, event); err != nil {
		j.logger.Warn("failed to journal event", "kind", event.Kind, "error", err)
	}
}

func (j *Journal) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	n, err := j.Prune(ctx, time.Now().Add(-j.retention))
	if err != nil {
		j.logger.Warn("failed to prune journal", "error", err)
		return
	}
	if n > 0 {
		j.logger.Debug("pruned journal", "removed", n, "retention", j.retention)
	}
}

// Insert writes one event
func (j *Journal) Insert(ctx context.Context, event kiosk.Event) error {
	entry := Entry{
		AtMillis:   event.At.UnixMilli(),
		Kind:       string(event.Kind),
		UID:        event.UID,
		Command:    event.Command,
		Detail:     event.Detail,
		DurationMS: event.Duration.Milliseconds(),
		Override:   event.Override,
	}
	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO events (at_ms, kind, uid, command, detail, duration_ms, override)
		VALUES (:at_ms, :kind, :uid, :command, :detail, :duration_ms, :override)`, entry)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.SelectContext(ctx, &entries, `
		SELECT id, at_ms, kind, uid, command, detail, duration_ms, override
		FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	return entries, nil
}

// CountByKind returns the number of journalled events per kind since t
func (j *Journal) CountByKind(ctx context.Context, since time.Time) (map[string]int, error) {
	rows := []struct {
		Kind  string `db:"kind"`
		Count int    `db:"n"`
	}{}
	err := j.db.SelectContext(ctx, &rows, `
		SELECT kind, COUNT(*) AS n FROM events WHERE at_ms >= ? GROUP BY kind`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	return counts, nil
}

// Prune deletes entries older than t and returns how many were removed
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE at_ms < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return n, nil
}

// Close stops accepting events, waits for the writer to drain the buffer and
// releases the database handle
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.ops)
	j.mu.Unlock()

	<-j.done
	if n := j.Dropped(); n > 0 {
		j.logger.Warn("journal dropped events", "count", n)
	}
	return j.db.Close()
}
