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

// Package config loads kiosk settings from kiosk.yaml and KIOSK_* environment variables
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	kiosk "github.com/ZaparooProject/checkin-kiosk"
	"github.com/ZaparooProject/checkin-kiosk/gesture"
	"github.com/ZaparooProject/checkin-kiosk/indicator"
	"github.com/ZaparooProject/checkin-kiosk/journal"
	"github.com/ZaparooProject/checkin-kiosk/network"
	"github.com/ZaparooProject/checkin-kiosk/presence"
	"github.com/ZaparooProject/checkin-kiosk/report"
	"github.com/ZaparooProject/checkin-kiosk/session"
)

// EnvPrefix prefixes every environment override, e.g. KIOSK_REPORT_URL
const EnvPrefix = "KIOSK"

// Network modes
const (
	NetworkNMCLI = "nmcli"
	NetworkWired = "wired"
)

// Config holds all configuration for the kiosk
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Reader    ReaderConfig    `mapstructure:"reader"`
	Button    ButtonConfig    `mapstructure:"button"`
	LEDs      LEDConfig       `mapstructure:"leds"`
	Report    ReportConfig    `mapstructure:"report"`
	Network   NetworkConfig   `mapstructure:"network"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Colors    ColorConfig     `mapstructure:"colors"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ReaderConfig struct {
	Path           string        `mapstructure:"path"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Debug          bool          `mapstructure:"debug"`
}

type ButtonConfig struct {
	Pin       string `mapstructure:"pin"`
	ActiveLow bool   `mapstructure:"active_low"`
}

type LEDConfig struct {
	Port       string `mapstructure:"port"`
	Pixels     int    `mapstructure:"pixels"`
	Brightness int    `mapstructure:"brightness"`
}

type ReportConfig struct {
	URL       string        `mapstructure:"url"`
	AuthToken string        `mapstructure:"auth_token"`
	TableID   string        `mapstructure:"table_id"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type NetworkConfig struct {
	Mode                string        `mapstructure:"mode"`
	Interface           string        `mapstructure:"interface"`
	SSID                string        `mapstructure:"ssid"`
	Passphrase          string        `mapstructure:"passphrase"`
	ProvisioningUID     string        `mapstructure:"provisioning_uid"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	StatusInterval      time.Duration `mapstructure:"status_interval"`
	RequireProvisioning bool          `mapstructure:"require_provisioning"`
}

type LoopConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	AcknowledgeHold time.Duration `mapstructure:"acknowledge_hold"`
	RetriggerWindow time.Duration `mapstructure:"retrigger_window"`
	RemovalDebounce time.Duration `mapstructure:"removal_debounce"`
	LongPress       time.Duration `mapstructure:"long_press"`
	BlinkInterval   time.Duration `mapstructure:"blink_interval"`
	BlinkWindowCap  time.Duration `mapstructure:"blink_window_cap"`
	BlinkFraction   int           `mapstructure:"blink_fraction"`
}

type ColorConfig struct {
	Offline     string `mapstructure:"offline"`
	Idle        string `mapstructure:"idle"`
	Override    string `mapstructure:"override"`
	Alert       string `mapstructure:"alert"`
	Off         string `mapstructure:"off"`
	Active      string `mapstructure:"active"`
	Acknowledge string `mapstructure:"acknowledge"`
}

type TelemetryConfig struct {
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type JournalConfig struct {
	Path          string        `mapstructure:"path"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
	Buffer        int           `mapstructure:"buffer"`
}

// Options maps the settings onto journal options
func (c JournalConfig) Options() []journal.Option {
	return []journal.Option{
		journal.WithBufferSize(c.Buffer),
		journal.WithRetention(c.Retention, c.PruneInterval),
	}
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration. When file is empty, kiosk.yaml is looked up in
// the working directory and /etc/kiosk; a missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("kiosk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/kiosk")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	palette := indicator.DefaultPalette()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("reader.path", "")
	v.SetDefault("reader.connect_timeout", "10s")
	v.SetDefault("reader.debug", false)

	v.SetDefault("button.pin", "GPIO17")
	v.SetDefault("button.active_low", false)

	v.SetDefault("leds.port", "")
	v.SetDefault("leds.pixels", indicator.DefaultPixelCount)
	v.SetDefault("leds.brightness", 255)

	v.SetDefault("report.url", "")
	v.SetDefault("report.auth_token", "")
	v.SetDefault("report.table_id", "")
	v.SetDefault("report.timeout", report.DefaultTimeout)

	v.SetDefault("network.mode", NetworkNMCLI)
	v.SetDefault("network.interface", network.DefaultInterface)
	v.SetDefault("network.ssid", "")
	v.SetDefault("network.passphrase", "")
	v.SetDefault("network.provisioning_uid", "")
	v.SetDefault("network.connect_timeout", network.DefaultConnectTimeout)
	v.SetDefault("network.status_interval", network.DefaultStatusInterval)
	v.SetDefault("network.require_provisioning", false)

	v.SetDefault("loop.poll_interval", kiosk.DefaultPollInterval)
	v.SetDefault("loop.read_timeout", kiosk.DefaultReadTimeout)
	v.SetDefault("loop.acknowledge_hold", kiosk.DefaultAcknowledgeHold)
	v.SetDefault("loop.retrigger_window", presence.DefaultRetriggerWindow)
	v.SetDefault("loop.removal_debounce", presence.DefaultRemovalDebounce)
	v.SetDefault("loop.long_press", gesture.DefaultLongPressThreshold)
	v.SetDefault("loop.blink_interval", session.DefaultBlinkInterval)
	v.SetDefault("loop.blink_window_cap", session.DefaultBlinkWindowCap)
	v.SetDefault("loop.blink_fraction", session.DefaultBlinkFraction)

	v.SetDefault("colors.offline", palette.Offline.String())
	v.SetDefault("colors.idle", palette.Idle.String())
	v.SetDefault("colors.override", palette.Override.String())
	v.SetDefault("colors.alert", palette.Alert.String())
	v.SetDefault("colors.off", palette.Off.String())
	v.SetDefault("colors.active", palette.Active.String())
	v.SetDefault("colors.acknowledge", palette.Acknowledge.String())

	v.SetDefault("telemetry.broker", "")
	v.SetDefault("telemetry.topic_prefix", "kiosk")
	v.SetDefault("telemetry.username", "")
	v.SetDefault("telemetry.password", "")

	v.SetDefault("journal.path", "")
	v.SetDefault("journal.retention", 30*24*time.Hour)
	v.SetDefault("journal.prune_interval", journal.DefaultPruneInterval)
	v.SetDefault("journal.buffer", journal.DefaultBufferSize)
	v.SetDefault("metrics.addr", "")
}

// Validate checks the settings the kiosk cannot run without
func (c *Config) Validate() error {
	var errs []error

	if c.Report.URL == "" {
		errs = append(errs, errors.New("report.url is required"))
	}
	if c.Report.TableID == "" {
		errs = append(errs, errors.New("report.table_id is required"))
	}
	if c.Network.Mode != NetworkNMCLI && c.Network.Mode != NetworkWired {
		errs = append(errs, fmt.Errorf("network.mode must be %q or %q, got %q",
			NetworkNMCLI, NetworkWired, c.Network.Mode))
	}
	if c.Network.ProvisioningUID != "" && c.Network.SSID == "" {
		errs = append(errs, errors.New("network.ssid is required when network.provisioning_uid is set"))
	}
	if c.Network.RequireProvisioning && c.Network.ProvisioningUID == "" {
		errs = append(errs, errors.New("network.require_provisioning needs network.provisioning_uid"))
	}
	if c.LEDs.Pixels <= 0 {
		errs = append(errs, fmt.Errorf("leds.pixels must be positive, got %d", c.LEDs.Pixels))
	}
	if c.LEDs.Brightness < 0 || c.LEDs.Brightness > 255 {
		errs = append(errs, fmt.Errorf("leds.brightness must be 0-255, got %d", c.LEDs.Brightness))
	}
	for name, d := range map[string]time.Duration{
		"loop.poll_interval":    c.Loop.PollInterval,
		"loop.read_timeout":     c.Loop.ReadTimeout,
		"loop.retrigger_window": c.Loop.RetriggerWindow,
		"loop.removal_debounce": c.Loop.RemovalDebounce,
		"loop.long_press":       c.Loop.LongPress,
		"report.timeout":        c.Report.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Journal.Retention < 0 {
		errs = append(errs, fmt.Errorf("journal.retention must not be negative, got %s", c.Journal.Retention))
	}
	if c.Journal.Path != "" && c.Journal.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("journal.buffer must be positive, got %d", c.Journal.Buffer))
	}
	if _, err := c.Palette(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Palette parses the configured colours
func (c *Config) Palette() (indicator.Palette, error) {
	var p indicator.Palette
	for _, entry := range []struct {
		dst  *indicator.Color
		name string
		raw  string
	}{
		{&p.Offline, "offline", c.Colors.Offline},
		{&p.Idle, "idle", c.Colors.Idle},
		{&p.Override, "override", c.Colors.Override},
		{&p.Alert, "alert", c.Colors.Alert},
		{&p.Off, "off", c.Colors.Off},
		{&p.Active, "active", c.Colors.Active},
		{&p.Acknowledge, "acknowledge", c.Colors.Acknowledge},
	} {
		color, err := indicator.ParseColor(entry.raw)
		if err != nil {
			return p, fmt.Errorf("colors.%s: %w", entry.name, err)
		}
		*entry.dst = color
	}
	return p, nil
}

// Kiosk converts the settings into the control loop policy
func (c *Config) Kiosk() (*kiosk.Config, error) {
	palette, err := c.Palette()
	if err != nil {
		return nil, err
	}

	kc := kiosk.DefaultConfig()
	kc.Presence = &presence.Config{
		RetriggerWindow: c.Loop.RetriggerWindow,
		RemovalDebounce: c.Loop.RemovalDebounce,
	}
	kc.Gesture = &gesture.Config{LongPressThreshold: c.Loop.LongPress}
	kc.Session = &session.Config{
		BlinkInterval:  c.Loop.BlinkInterval,
		BlinkWindowCap: c.Loop.BlinkWindowCap,
		BlinkFraction:  c.Loop.BlinkFraction,
	}
	kc.Palette = palette
	kc.PollInterval = c.Loop.PollInterval
	kc.ReadTimeout = c.Loop.ReadTimeout
	kc.AcknowledgeHold = c.Loop.AcknowledgeHold
	kc.ConnectTimeout = c.Network.ConnectTimeout
	kc.PixelCount = c.LEDs.Pixels
	kc.ProvisioningUID = strings.ToUpper(strings.TrimSpace(c.Network.ProvisioningUID))
	kc.Credentials = c.Credentials()
	return kc, nil
}

// Credentials returns the Wi-Fi network joined on provisioning
func (c *Config) Credentials() network.Credentials {
	return network.Credentials{SSID: c.Network.SSID, Passphrase: c.Network.Passphrase}
}

// ReportClient returns the check-in service client settings
func (c *Config) ReportClient() report.ClientConfig {
	return report.ClientConfig{
		URL:       c.Report.URL,
		AuthToken: c.Report.AuthToken,
		TableID:   c.Report.TableID,
		Timeout:   c.Report.Timeout,
	}
}
