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

package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kiosk "github.com/ZaparooProject/checkin-kiosk"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type published struct {
	payload  []byte
	topic    string
	qos      byte
	retained bool
}

type fakeClient struct {
	err      error
	messages []published
	mu       sync.Mutex
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, _ := payload.([]byte)
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: data})
	return newDoneToken(c.err)
}

func (c *fakeClient) last() published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[len(c.messages)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_Record(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	p := newPublisher(client, DefaultTopicPrefix, "table-7", testLogger())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	p.Record(kiosk.Event{At: at, Kind: kiosk.EventTagTapped, UID: "04A1B2C3"})

	msg := client.last()
	assert.Equal(t, "kiosk/table-7/events", msg.topic)
	assert.Equal(t, byte(0), msg.qos)
	assert.False(t, msg.retained)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "table-7", decoded["kiosk"])
	assert.Equal(t, "tag_tapped", decoded["kind"])
	assert.Equal(t, "04A1B2C3", decoded["uid"])

	_, err := uuid.Parse(decoded["id"].(string))
	require.NoError(t, err)
}

func TestPublisher_UniqueIDs(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	p := newPublisher(client, "venue", "t1", testLogger())

	p.Record(kiosk.Event{Kind: kiosk.EventSessionExpired})
	p.Record(kiosk.Event{Kind: kiosk.EventSessionExpired})

	var first, second Message
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &first))
	require.NoError(t, json.Unmarshal(client.messages[1].payload, &second))
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "venue/t1/events", p.Topic())
}

func TestPublisher_CountsFailures(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: errors.New("not connected")}
	p := newPublisher(client, DefaultTopicPrefix, "t1", testLogger())

	p.Record(kiosk.Event{Kind: kiosk.EventReported})

	assert.Eventually(t, func() bool { return p.Failed() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDial_NoBroker(t *testing.T) {
	t.Parallel()

	_, err := Dial(Config{}, testLogger())
	require.ErrorIs(t, err, ErrNoBroker)
}

func TestClientOptions(t *testing.T) {
	t.Parallel()

	opts := clientOptions(Config{
		Broker:         "tcp://broker:1883",
		KioskID:        "table-7",
		TopicPrefix:    "venue",
		Username:       "kiosk",
		ConnectTimeout: 3 * time.Second,
	})

	assert.Equal(t, "checkin-kiosk-table-7", opts.ClientID)
	assert.Equal(t, "kiosk", opts.Username)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.WillEnabled)
	assert.True(t, opts.WillRetained)
	assert.Equal(t, "venue/table-7/status", opts.WillTopic)
	assert.Equal(t, []byte(statusOffline), opts.WillPayload)
	assert.Equal(t, 3*time.Second, opts.ConnectTimeout)
}
