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
Package telemetry publishes kiosk events to an MQTT broker.

Events are published fire-and-forget with QoS 0 on <prefix>/<kiosk>/events.
The kiosk's availability is kept retained on <prefix>/<kiosk>/status: the
client publishes "online" on every (re)connect and registers "offline" as
its last will.
*/
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	kiosk "github.com/ZaparooProject/checkin-kiosk"
)

const (
	// DefaultTopicPrefix is the root of every published topic
	DefaultTopicPrefix = "kiosk"
	// DefaultConnectTimeout bounds the initial broker connect
	DefaultConnectTimeout = 5 * time.Second

	statusOnline  = "online"
	statusOffline = "offline"
)

// ErrNoBroker is returned when no broker URL is configured
var ErrNoBroker = errors.New("mqtt broker not configured")

// Config describes the broker connection
type Config struct {
	Broker         string
	KioskID        string
	TopicPrefix    string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Message is the JSON document published for every event
type Message struct {
	ID    string `json:"id"`
	Kiosk string `json:"kiosk"`
	kiosk.Event
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher is a kiosk.EventSink backed by MQTT
type Publisher struct {
	client  publisher
	logger  *slog.Logger
	close   func()
	kioskID string
	topic   string
	failed  atomic.Uint64
}

func statusTopic(config Config) string {
	return fmt.Sprintf("%s/%s/status", config.TopicPrefix, config.KioskID)
}

// clientOptions builds the paho options: one client per kiosk, reconnecting
// forever, with a retained "offline" will on the status topic
func clientOptions(config Config) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID("checkin-kiosk-"+config.KioskID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(config.ConnectTimeout).
		SetWill(statusTopic(config), statusOffline, 1, true)
}

// Dial connects to the broker. The connection is retried in the background
// when the broker is unreachable, so a failed initial connect is logged and
// not returned.
func Dial(config Config, logger *slog.Logger) (*Publisher, error) {
	if config.Broker == "" {
		return nil, ErrNoBroker
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = DefaultTopicPrefix
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}

	status := statusTopic(config)
	opts := clientOptions(config)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("mqtt connected", "broker", config.Broker)
		c.Publish(status, 1, true, statusOnline)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(config.ConnectTimeout) {
		logger.Warn("mqtt broker not reachable yet, retrying in background", "broker", config.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	p := newPublisher(client, config.TopicPrefix, config.KioskID, logger)
	p.close = func() {
		client.Publish(status, 1, true, statusOffline).WaitTimeout(time.Second)
		client.Disconnect(250)
	}
	return p, nil
}

func newPublisher(client publisher, prefix, kioskID string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		logger:  logger,
		kioskID: kioskID,
		topic:   fmt.Sprintf("%s/%s/events", prefix, kioskID),
	}
}

// Topic returns the events topic
func (p *Publisher) Topic() string {
	return p.topic
}

// Failed returns how many publishes have failed
func (p *Publisher) Failed() uint64 {
	return p.failed.Load()
}

// Record publishes event without waiting for the broker
func (p *Publisher) Record(event kiosk.Event) {
	payload, err := json.Marshal(Message{
		ID:    uuid.NewString(),
		Kiosk: p.kioskID,
		Event: event,
	})
	if err != nil {
		p.logger.Error("failed to encode event", "kind", event.Kind, "error", err)
		return
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			p.failed.Add(1)
			p.logger.Debug("event publish failed", "kind", event.Kind, "error", err)
		}
	}()
}

// Close publishes the offline status and disconnects
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
