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
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotProvisioningRecord is returned for NDEF text that is not a kiosk
// provisioning record
var ErrNotProvisioningRecord = errors.New("not a provisioning record")

// ProvisioningRecord is the JSON text record written onto a provisioning tag
// by the admin console
type ProvisioningRecord struct {
	Table      string `json:"table"`
	APIKey     string `json:"apiKey"`
	SSID       string `json:"ssid"`
	NetworkPwd string `json:"networkPwd"`
	Timestamp  string `json:"timestamp"`
	Version    string `json:"version"`
}

// Credentials returns the network part of the record
func (r ProvisioningRecord) Credentials() Credentials {
	return Credentials{SSID: r.SSID, Passphrase: r.NetworkPwd}
}

// ParseProvisioningRecord decodes a provisioning record from NDEF text. A
// record without an SSID is rejected.
func ParseProvisioningRecord(text string) (ProvisioningRecord, error) {
	var record ProvisioningRecord
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return record, ErrNotProvisioningRecord
	}
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return ProvisioningRecord{}, fmt.Errorf("%w: %w", ErrNotProvisioningRecord, err)
	}
	if record.SSID == "" {
		return ProvisioningRecord{}, fmt.Errorf("%w: %w", ErrNotProvisioningRecord, ErrNoSSID)
	}
	return record, nil
}

// CredentialsFromRecords returns the credentials of the first provisioning
// record among texts
func CredentialsFromRecords(texts []string) (Credentials, error) {
	for _, text := range texts {
		record, err := ParseProvisioningRecord(text)
		if err == nil {
			return record.Credentials(), nil
		}
	}
	return Credentials{}, ErrNotProvisioningRecord
}
