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

package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrTableNotFound is returned for an unknown table id
var ErrTableNotFound = errors.New("table not found")

// Table is one bookable table. AssignedTo is NULL while the table is free.
type Table struct {
	AssignedTo sql.NullString `db:"assigned_to" json:"-"`
	ID         string         `db:"id" json:"id"`
	UpdatedMS  int64          `db:"updated_ms" json:"-"`
	Occupied   bool           `db:"occupied" json:"occupied"`
}

// Holder returns the assigned uid, or "" when free
func (t Table) Holder() string {
	if !t.AssignedTo.Valid {
		return ""
	}
	return t.AssignedTo.String
}

// Store persists table assignments in SQLite
type Store struct {
	db *sqlx.DB
}

// OpenStore opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway store.
func OpenStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema ensures the tables table exists
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			assigned_to TEXT,
			occupied INTEGER NOT NULL DEFAULT 0,
			updated_ms INTEGER NOT NULL DEFAULT 0
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_tables_assigned ON tables(assigned_to)
			WHERE assigned_to IS NOT NULL;`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// AddTable registers a table; existing tables are left untouched
func (s *Store) AddTable(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO tables (id, updated_ms) VALUES (?, ?)`,
		id, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("add table %s: %w", id, err)
	}
	return nil
}

// Table returns one table
func (s *Store) Table(ctx context.Context, id string) (*Table, error) {
	var t Table
	err := s.db.GetContext(ctx, &t, `SELECT id, assigned_to, occupied, updated_ms FROM tables WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get table %s: %w", id, err)
	}
	return &t, nil
}

// TableOf returns the table assigned to uid, or nil
func (s *Store) TableOf(ctx context.Context, uid string) (*Table, error) {
	var t Table
	err := s.db.GetContext(ctx, &t,
		`SELECT id, assigned_to, occupied, updated_ms FROM tables WHERE assigned_to = ?`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find table of %s: %w", uid, err)
	}
	return &t, nil
}

// Tables lists every table ordered by id
func (s *Store) Tables(ctx context.Context) ([]Table, error) {
	var tables []Table
	if err := s.db.SelectContext(ctx, &tables,
		`SELECT id, assigned_to, occupied, updated_ms FROM tables ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Assign marks table id as held by uid
func (s *Store) Assign(ctx context.Context, id, uid string) error {
	return s.update(ctx, id, sql.NullString{String: uid, Valid: true})
}

// Release frees table id
func (s *Store) Release(ctx context.Context, id string) error {
	return s.update(ctx, id, sql.NullString{})
}

func (s *Store) update(ctx context.Context, id string, holder sql.NullString) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tables SET assigned_to = ?, occupied = ?, updated_ms = ? WHERE id = ?`,
		holder, holder.Valid, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update table %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	return nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}
