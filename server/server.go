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
Package server is a reference implementation of the check-in service that
kiosks report to.

POST /setStatus takes {auth, table, uid} and answers {checkedIn, delay}:

  - a wrong auth token is rejected with 401 and no body
  - a missing uid is rejected with 400
  - a uid that already holds another table gets 401 {false, 0}
  - a uid that already holds this table gets 200 {true, wait}
  - the "-" sentinel frees the table: 200 {false, 0}
  - a table held by someone else gets 401 {false, -1}
  - otherwise the table is assigned: 200 {true, wait}

Unknown tables are answered with 404.
*/
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZaparooProject/checkin-kiosk/report"
)

const maxBodyBytes = 16 << 10

// Config holds the service policy
type Config struct {
	APIKey string
	// WaitMinutes is the session length granted on check-in
	WaitMinutes int
}

// Status is the JSON answer to a setStatus request
type Status struct {
	CheckedIn bool `json:"checkedIn"`
	Delay     int  `json:"delay"`
}

// Server serves setStatus on top of a Store
type Server struct {
	store    *Store
	logger   *slog.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	config   Config
	// setStatus reads then writes; serialise it
	mu sync.Mutex
}

// New creates a server
func New(store *Store, config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    store,
		logger:   logger,
		config:   config,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkin_set_status_total",
				Help: "setStatus requests by outcome",
			},
			[]string{"outcome"},
		),
	}
	s.registry.MustRegister(s.requests)
	return s
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Post("/setStatus", s.handleSetStatus)
	r.Get("/tables", s.handleTables)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.count("bad_request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Auth != s.config.APIKey {
		s.count("unauthorized")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if req.UID == "" {
		s.count("bad_request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	code, status, outcome, err := s.setStatus(r, req.Table, req.UID)
	if errors.Is(err, ErrTableNotFound) {
		s.count("unknown_table")
		http.Error(w, "unknown table", http.StatusNotFound)
		return
	}
	if err != nil {
		s.count("error")
		s.logger.Error("setStatus failed", "table", req.Table, "uid", req.UID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.count(outcome)
	s.logger.Info("setStatus", "table", req.Table, "uid", req.UID, "outcome", outcome)
	writeJSON(w, code, status)
}

func (s *Server) setStatus(r *http.Request, tableID, uid string) (int, Status, string, error) {
	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.store.Table(ctx, tableID)
	if err != nil {
		return 0, Status{}, "", err
	}

	if uid != report.CancelUID {
		held, err := s.store.TableOf(ctx, uid)
		if err != nil {
			return 0, Status{}, "", err
		}
		if held != nil {
			if held.ID == tableID {
				return http.StatusOK, Status{CheckedIn: true, Delay: s.config.WaitMinutes}, "renewed", nil
			}
			return http.StatusUnauthorized, Status{}, "holds_other_table", nil
		}
	}

	switch {
	case uid == report.CancelUID:
		if err := s.store.Release(ctx, tableID); err != nil {
			return 0, Status{}, "", err
		}
		return http.StatusOK, Status{}, "released", nil
	case table.AssignedTo.Valid:
		return http.StatusUnauthorized, Status{Delay: -1}, "occupied", nil
	default:
		if err := s.store.Assign(ctx, tableID, uid); err != nil {
			return 0, Status{}, "", err
		}
		return http.StatusOK, Status{CheckedIn: true, Delay: s.config.WaitMinutes}, "assigned", nil
	}
}

type tableView struct {
	UpdatedAt  time.Time `json:"updatedAt"`
	ID         string    `json:"id"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	Occupied   bool      `json:"occupied"`
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.Tables(r.Context())
	if err != nil {
		s.logger.Error("list tables failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	views := make([]tableView, 0, len(tables))
	for _, t := range tables {
		views = append(views, tableView{
			ID:         t.ID,
			AssignedTo: t.Holder(),
			Occupied:   t.Occupied,
			UpdatedAt:  time.UnixMilli(t.UpdatedMS).UTC(),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) count(outcome string) {
	s.requests.WithLabelValues(outcome).Inc()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chiMiddleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
