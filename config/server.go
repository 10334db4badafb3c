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

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerEnvPrefix prefixes the reference service's environment overrides
const ServerEnvPrefix = "CHECKIN"

// ServerConfig holds the reference check-in service settings
type ServerConfig struct {
	Log         LogConfig `mapstructure:"log"`
	Addr        string    `mapstructure:"addr"`
	Database    string    `mapstructure:"database"`
	APIKey      string    `mapstructure:"api_key"`
	Tables      []string  `mapstructure:"tables"`
	WaitMinutes int       `mapstructure:"wait_minutes"`
}

// LoadServer reads checkin-server.yaml and CHECKIN_* environment variables
func LoadServer(file string) (*ServerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(ServerEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("addr", ":8080")
	v.SetDefault("database", "checkin.db")
	v.SetDefault("api_key", "")
	v.SetDefault("tables", []string{})
	v.SetDefault("wait_minutes", 60)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("checkin-server")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config ServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if config.APIKey == "" {
		return nil, errors.New("config validation error: api_key is required")
	}
	if config.WaitMinutes <= 0 {
		return nil, fmt.Errorf("config validation error: wait_minutes must be positive, got %d", config.WaitMinutes)
	}
	return &config, nil
}
