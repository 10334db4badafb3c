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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZaparooProject/checkin-kiosk/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestServer(t *testing.T, status int, body string, requests chan<- Request) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if requests != nil {
			requests <- req
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func createTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{URL: url, AuthToken: "token-1", TableID: "101"})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("EmptyURL", func(t *testing.T) {
		t.Parallel()
		_, err := NewClient(ClientConfig{})
		require.Error(t, err)
	})

	t.Run("DefaultTimeout", func(t *testing.T) {
		t.Parallel()
		client, err := NewClient(ClientConfig{URL: "http://localhost"})
		require.NoError(t, err)
		assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	})
}

func TestClient_Report(t *testing.T) {
	t.Parallel()

	t.Run("SendsPayload", func(t *testing.T) {
		t.Parallel()
		requests := make(chan Request, 1)
		server := createTestServer(t, http.StatusOK, `{"delay": 15, "checkedIn": true}`, requests)

		result, err := createTestClient(t, server.URL).Report(context.Background(), "04A1B2C3")
		require.NoError(t, err)
		require.NotNil(t, result.Delay)
		assert.Equal(t, 15, *result.Delay)
		assert.True(t, *result.CheckedIn)

		assert.Equal(t, Request{Auth: "token-1", Table: "101", UID: "04A1B2C3"}, <-requests)
	})

	t.Run("NonSuccessStatus", func(t *testing.T) {
		t.Parallel()
		server := createTestServer(t, http.StatusUnauthorized, `{"checkedIn": false, "delay": -1}`, nil)

		_, err := createTestClient(t, server.URL).Report(context.Background(), "04A1B2C3")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
		assert.Contains(t, statusErr.Error(), "401")
	})

	t.Run("MalformedBody", func(t *testing.T) {
		t.Parallel()
		server := createTestServer(t, http.StatusOK, `<html>oops</html>`, nil)

		_, err := createTestClient(t, server.URL).Report(context.Background(), "04A1B2C3")
		require.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("TransportFailure", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := createTestClient(t, url).Report(context.Background(), "04A1B2C3")
		require.ErrorIs(t, err, ErrTransport)
	})

	t.Run("Timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client, err := NewClient(ClientConfig{URL: server.URL, Timeout: 50 * time.Millisecond})
		require.NoError(t, err)

		_, err = client.Report(context.Background(), "04A1B2C3")
		require.ErrorIs(t, err, ErrTransport)
	})
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestResult_Command(t *testing.T) {
	t.Parallel()

	tests := []struct {
		result Result
		want   session.Command
		name   string
		ignore bool
	}{
		{
			name:   "NegativeDelayCheckedIn",
			result: Result{Delay: intPtr(-1), CheckedIn: boolPtr(true)},
			want:   session.Ignore(),
			ignore: true,
		},
		{
			name:   "NegativeDelayCheckedOut",
			result: Result{Delay: intPtr(-1), CheckedIn: boolPtr(false)},
			want:   session.Ignore(),
			ignore: true,
		},
		{
			name:   "MissingDelay",
			result: Result{CheckedIn: boolPtr(true)},
			want:   session.Ignore(),
			ignore: true,
		},
		{
			name:   "CheckedIn",
			result: Result{Delay: intPtr(10), CheckedIn: boolPtr(true)},
			want:   session.Start(600_000 * time.Millisecond),
		},
		{
			name:   "CheckedInLongestDelay",
			result: Result{Delay: intPtr(153_722_867), CheckedIn: boolPtr(true)},
			want:   session.Start(153_722_867 * time.Minute),
		},
		{
			name:   "CheckedInDelayOverflowsDuration",
			result: Result{Delay: intPtr(307_445_735), CheckedIn: boolPtr(true)},
			want:   session.Ignore(),
			ignore: true,
		},
		{
			name:   "CheckedInHugeDelay",
			result: Result{Delay: intPtr(200_000_000), CheckedIn: boolPtr(true)},
			want:   session.Ignore(),
			ignore: true,
		},
		{
			name:   "CheckedInZeroDelay",
			result: Result{Delay: intPtr(0), CheckedIn: boolPtr(true)},
			want:   session.Ignore(),
			ignore: true,
		},
		{
			name:   "CheckedOut",
			result: Result{Delay: intPtr(0), CheckedIn: boolPtr(false)},
			want:   session.End(),
		},
		{
			name:   "MissingCheckedIn",
			result: Result{Delay: intPtr(5)},
			want:   session.End(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, reason := tt.result.Command()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ignore, reason != "")
		})
	}
}

func TestDecodeResult(t *testing.T) {
	t.Parallel()

	result, err := DecodeResult([]byte(`{"delay": -1, "checkedIn": true}`))
	require.NoError(t, err)
	cmd, _ := result.Command()
	assert.Equal(t, session.Ignore(), cmd)

	_, err = DecodeResult([]byte(`{"delay": "soon"}`))
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, errors.Is(err, ErrTransport))
}
