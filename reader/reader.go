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
Package reader adapts a PN532 NFC controller to the kiosk's tag reader.

Each ReadTag call issues one InListPassiveTarget for a single ISO14443A
target and returns its UID. No tag in the field, or the poll timing out, is
reported as (nil, nil).

ReadNDEFText reads the NDEF message of the tag returned by the last
successful ReadTag and returns its text records. The kiosk uses it to pick
up Wi-Fi credentials written onto the provisioning tag.
*/
package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532"
	"github.com/ZaparooProject/go-pn532/detection"
	// Import all detectors to register them
	_ "github.com/ZaparooProject/go-pn532/detection/i2c"
	_ "github.com/ZaparooProject/go-pn532/detection/spi"
	_ "github.com/ZaparooProject/go-pn532/detection/uart"
	"github.com/ZaparooProject/go-pn532/transport/i2c"
	"github.com/ZaparooProject/go-pn532/transport/spi"
	"github.com/ZaparooProject/go-pn532/transport/uart"
	"go.bug.st/serial"
)

// DefaultConnectTimeout bounds device detection and initialisation
const DefaultConnectTimeout = 10 * time.Second

// Transport kinds understood by the reader
const (
	TransportUART = "uart"
	TransportI2C  = "i2c"
	TransportSPI  = "spi"
)

var (
	// ErrEmptyPath is returned when a transport is requested without a device path
	ErrEmptyPath = errors.New("empty device path")
	// ErrUnsupportedTransport is returned for detected devices on an unknown bus
	ErrUnsupportedTransport = errors.New("unsupported transport type")
	// ErrNoTag is returned by ReadNDEFText when no tag has been read yet
	ErrNoTag = errors.New("no tag has been read")
)

// Config describes how to reach the PN532
type Config struct {
	// Path is a serial port, an I2C bus or an SPI port. Empty means auto-detect.
	Path           string
	ConnectTimeout time.Duration
	Debug          bool
}

type (
	pollFunc func(ctx context.Context) ([]*pn532.DetectedTag, error)
	ndefFunc func(ctx context.Context, tag *pn532.DetectedTag) ([]string, error)
)

// PN532 is a tag reader backed by a PN532 controller
type PN532 struct {
	poll   pollFunc
	ndef   ndefFunc
	close  func() error
	logger *slog.Logger
	last   *pn532.DetectedTag
}

// Open connects to the PN532 described by config and logs its firmware
func Open(config Config, logger *slog.Logger) (*PN532, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.Debug {
		pn532.SetDebugEnabled(true)
	}

	opts := []pn532.ConnectOption{pn532.WithConnectTimeout(config.ConnectTimeout)}
	if config.Path == "" {
		logger.Info("auto-detecting PN532 reader")
		opts = append(opts,
			pn532.WithAutoDetection(),
			pn532.WithTransportFromDeviceFactory(newTransportFromDevice))
	} else {
		logger.Info("opening PN532 reader", "path", config.Path, "transport", transportKind(config.Path))
		opts = append(opts, pn532.WithTransportFactory(newTransport))
	}

	device, err := pn532.ConnectDevice(config.Path, opts...)
	if err != nil {
		if config.Path == "" {
			logSerialPorts(logger)
		}
		return nil, fmt.Errorf("failed to connect to PN532 device: %w", err)
	}

	if version, versionErr := device.GetFirmwareVersion(); versionErr == nil {
		logger.Info("PN532 firmware", "version", version.Version)
	} else {
		logger.Warn("could not read PN532 firmware version", "error", versionErr)
	}

	return &PN532{
		poll: func(ctx context.Context) ([]*pn532.DetectedTag, error) {
			return device.InListPassiveTargetContext(ctx, 1, 0x00)
		},
		ndef: func(_ context.Context, detected *pn532.DetectedTag) ([]string, error) {
			tag, err := device.CreateTag(detected)
			if err != nil {
				return nil, fmt.Errorf("failed to create tag: %w", err)
			}
			msg, err := tag.ReadNDEF()
			if err != nil {
				return nil, fmt.Errorf("failed to read NDEF: %w", err)
			}
			if msg == nil {
				return nil, nil
			}
			var texts []string
			for _, record := range msg.Records {
				if record.Text != "" {
					texts = append(texts, record.Text)
				}
			}
			return texts, nil
		},
		close:  device.Close,
		logger: logger,
	}, nil
}

// ReadTag polls once for a tag and returns its UID
func (r *PN532) ReadTag(ctx context.Context, timeout time.Duration) ([]byte, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tags, err := r.poll(pollCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("tag detection failed: %w", err)
	}
	if len(tags) == 0 || tags[0] == nil || len(tags[0].UIDBytes) == 0 {
		return nil, nil
	}
	r.last = tags[0]
	return append([]byte(nil), tags[0].UIDBytes...), nil
}

// ReadNDEFText returns the text records stored on the most recently read tag.
// A tag without an NDEF message yields no records.
func (r *PN532) ReadNDEFText(ctx context.Context) ([]string, error) {
	if r.last == nil {
		return nil, ErrNoTag
	}
	if r.ndef == nil {
		return nil, nil
	}
	return r.ndef(ctx, r.last)
}

// Close releases the device
func (r *PN532) Close() error {
	if r.close == nil {
		return nil
	}
	if err := r.close(); err != nil {
		return fmt.Errorf("failed to close PN532: %w", err)
	}
	return nil
}

// Null is a reader with no hardware behind it. It never sees a tag.
type Null struct{}

// ReadTag always reports an empty field
func (Null) ReadTag(context.Context, time.Duration) ([]byte, error) {
	return nil, nil
}

// transportKind guesses the bus from a device path: spidev and SPI port names
// are SPI, i2c-N buses are I2C, anything else is a serial port
func transportKind(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "spi"):
		return TransportSPI
	case strings.Contains(lower, "i2c"):
		return TransportI2C
	default:
		return TransportUART
	}
}

func newTransport(path string) (pn532.Transport, error) {
	return openTransport(transportKind(path), path)
}

func newTransportFromDevice(device detection.DeviceInfo) (pn532.Transport, error) {
	return openTransport(strings.ToLower(device.Transport), device.Path)
}

func openTransport(kind, path string) (pn532.Transport, error) {
	switch kind {
	case TransportUART, TransportI2C, TransportSPI:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, kind)
	}
	if path == "" {
		return nil, ErrEmptyPath
	}

	switch kind {
	case TransportSPI:
		transport, err := spi.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return transport, nil
	case TransportI2C:
		transport, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return transport, nil
	default:
		transport, err := uart.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return transport, nil
	}
}

func logSerialPorts(logger *slog.Logger) {
	ports, err := serial.GetPortsList()
	if err != nil {
		logger.Warn("could not list serial ports", "error", err)
		return
	}
	logger.Info("no PN532 detected", "serial_ports", ports)
}
