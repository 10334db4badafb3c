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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/session"
)

// DefaultTimeout bounds a single report round trip
const DefaultTimeout = 10 * time.Second

// maxDelayMinutes is the longest session a time.Duration can hold
const maxDelayMinutes = math.MaxInt64 / int64(time.Minute)

// maxResponseBody bounds how much of a response body is read
const maxResponseBody = 64 * 1024

// Report errors
var (
	ErrTransport         = errors.New("report transport failed")
	ErrMalformedResponse = errors.New("malformed report response")
)

// StatusError is returned for a response outside the 2xx range
type StatusError struct {
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("check-in service returned status %d", e.StatusCode)
}

// Request is the JSON body posted for every report
type Request struct {
	Auth  string `json:"auth"`
	Table string `json:"table"`
	UID   string `json:"uid"`
}

// Result is the decoded body of a 2xx response. Fields are pointers so a
// missing field can be told apart from its zero value.
type Result struct {
	Delay     *int  `json:"delay"`
	CheckedIn *bool `json:"checkedIn"`
}

// Reporter sends one report and returns the decoded result.
type Reporter interface {
	Report(ctx context.Context, uid string) (*Result, error)
}

// ClientConfig configures the HTTP reporter
type ClientConfig struct {
	URL       string
	AuthToken string
	TableID   string
	Timeout   time.Duration
}

// Client reports identifiers to the check-in service over HTTP
type Client struct {
	httpClient *http.Client
	config     ClientConfig
}

// NewClient creates an HTTP reporter
func NewClient(config ClientConfig) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("report URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Report posts uid and decodes the response. Errors wrap ErrTransport,
// ErrMalformedResponse or are a *StatusError.
func (c *Client) Report(ctx context.Context, uid string) (*Result, error) {
	payload, err := json.Marshal(Request{
		Auth:  c.config.AuthToken,
		Table: c.config.TableID,
		UID:   uid,
	})
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return DecodeResult(body)
}

// DecodeResult parses a response body
func DecodeResult(body []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return &result, nil
}

// Command translates a result into exactly one session command. When the
// command is Ignore, reason says why.
//
//   - a missing or negative delay means "ignore"
//   - a delay too long to represent means "ignore"
//   - checkedIn starts a session of delay minutes
//   - otherwise the session ends
func (r *Result) Command() (cmd session.Command, reason string) {
	delay := -1
	if r.Delay != nil {
		delay = *r.Delay
	}
	checkedIn := r.CheckedIn != nil && *r.CheckedIn

	switch {
	case delay < 0:
		return session.Ignore(), "negative delay"
	case checkedIn && delay == 0:
		return session.Ignore(), "checked in without duration"
	case checkedIn && int64(delay) > maxDelayMinutes:
		return session.Ignore(), "delay out of range"
	case checkedIn:
		return session.Start(time.Duration(delay) * time.Minute), ""
	default:
		return session.End(), ""
	}
}
