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
Package leds drives the kiosk's WS2812 ring.

The ring is written over SPI with periph's NRZ encoder. Every frame is
scaled by a global brightness before it is sent.
*/
package leds

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/checkin-kiosk/indicator"
)

// DefaultBrightness is the full-scale brightness
const DefaultBrightness = 255

// Config selects the SPI port and ring geometry
type Config struct {
	// Port is a periph SPI port name; empty selects the first port
	Port       string
	Pixels     int
	Brightness uint8
}

type pixelDevice interface {
	Write(pixels []byte) (int, error)
	Halt() error
}

// Ring is an indicator.Strip on an NRZ LED chain
type Ring struct {
	dev        pixelDevice
	port       io.Closer
	buf        []byte
	pixels     int
	brightness uint8
}

// Open initialises the host drivers and the SPI port
func Open(config Config) (*Ring, error) {
	if config.Pixels <= 0 {
		return nil, fmt.Errorf("invalid pixel count %d", config.Pixels)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}

	port, err := spireg.Open(config.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", config.Port, err)
	}

	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: config.Pixels,
		Channels:  3,
		Freq:      800 * physic.KiloHertz,
	})
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to create NRZ device: %w", err)
	}
	return newRing(dev, port, config.Pixels, config.Brightness), nil
}

func newRing(dev pixelDevice, port io.Closer, pixels int, brightness uint8) *Ring {
	return &Ring{
		dev:        dev,
		port:       port,
		buf:        make([]byte, pixels*3),
		pixels:     pixels,
		brightness: brightness,
	}
}

// Write sends one frame. Frames shorter than the ring leave the tail dark;
// extra pixels are dropped.
func (r *Ring) Write(frame indicator.Frame) error {
	clear(r.buf)
	for i := 0; i < len(frame) && i < r.pixels; i++ {
		c := frame[i]
		r.buf[i*3] = scale(c.R, r.brightness)
		r.buf[i*3+1] = scale(c.G, r.brightness)
		r.buf[i*3+2] = scale(c.B, r.brightness)
	}
	if _, err := r.dev.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write pixels: %w", err)
	}
	return nil
}

// Close turns the ring off and releases the port
func (r *Ring) Close() error {
	var errs []error
	if err := r.dev.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("failed to halt ring: %w", err))
	}
	if r.port != nil {
		if err := r.port.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close SPI port: %w", err))
		}
	}
	return errors.Join(errs...)
}

func scale(v, brightness uint8) uint8 {
	return uint8(uint16(v) * uint16(brightness) / 255)
}

// Log is a strip without hardware that logs every frame it is given
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging strip
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Write logs the colour of the first pixel and the frame length
func (l *Log) Write(frame indicator.Frame) error {
	color := indicator.Black
	if len(frame) > 0 {
		color = frame[0]
	}
	l.logger.Info("indicator", "color", color.String(), "pixels", len(frame))
	return nil
}
