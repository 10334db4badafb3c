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

// Package metrics exposes kiosk events as Prometheus metrics
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	kiosk "github.com/ZaparooProject/checkin-kiosk"
)

// Recorder is a kiosk.EventSink that updates Prometheus collectors
type Recorder struct {
	registry      *prometheus.Registry
	events        *prometheus.CounterVec
	reportLatency prometheus.Histogram
	sessionActive prometheus.Gauge
	override      prometheus.Gauge
	sessionLength prometheus.Histogram
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_events_total",
				Help: "Total number of control loop events by kind",
			},
			[]string{"kind"},
		),
		reportLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kiosk_report_duration_seconds",
				Help:    "Round trip time of check-in reports",
				Buckets: prometheus.DefBuckets,
			},
		),
		sessionActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kiosk_session_active",
				Help: "1 while a check-in session is running",
			},
		),
		override: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kiosk_session_override",
				Help: "1 while the indicator override is on",
			},
		),
		sessionLength: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kiosk_session_duration_seconds",
				Help:    "Requested length of started sessions",
				Buckets: prometheus.LinearBuckets(600, 600, 12),
			},
		),
	}
	r.registry.MustRegister(r.events, r.reportLatency, r.sessionActive, r.override, r.sessionLength)
	return r
}

// Registry returns the registry holding the kiosk collectors
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Record updates the collectors for event
func (r *Recorder) Record(event kiosk.Event) {
	r.events.WithLabelValues(string(event.Kind)).Inc()

	switch event.Kind {
	case kiosk.EventReported:
		r.reportLatency.Observe(event.Duration.Seconds())
	case kiosk.EventSessionStarted:
		r.sessionActive.Set(1)
		r.override.Set(0)
		r.sessionLength.Observe(event.Duration.Seconds())
	case kiosk.EventSessionEnded, kiosk.EventSessionExpired, kiosk.EventSessionCancelled:
		r.sessionActive.Set(0)
		r.override.Set(0)
	case kiosk.EventOverrideToggled:
		if event.Override {
			r.override.Set(1)
		} else {
			r.override.Set(0)
		}
	}
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		return nil
	}
}
