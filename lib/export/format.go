// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"

	"github.com/Howard86/cwa-server/lib/codec"
)

// Header starts every payload. Its length is fixed at 16 bytes.
const Header = "EK Export v1    "

// Key is one published key in the wire format.
type Key struct {
	KeyData                    []byte `cbor:"key_data"`
	RollingStartIntervalNumber int64  `cbor:"rolling_start_interval_number"`
	RollingPeriod              int    `cbor:"rolling_period"`
	TransmissionRiskLevel      int    `cbor:"transmission_risk_level"`
}

// SignatureInfo identifies the key and algorithm a client should
// verify with.
type SignatureInfo struct {
	AppBundleID            string `cbor:"app_bundle_id,omitempty"`
	AndroidPackage         string `cbor:"android_package,omitempty"`
	VerificationKeyVersion string `cbor:"verification_key_version,omitempty"`
	VerificationKeyID      string `cbor:"verification_key_id,omitempty"`
	SignatureAlgorithm     string `cbor:"signature_algorithm"`
}

// Export is the payload body.
type Export struct {
	// StartTimestamp and EndTimestamp bound the covered bucket in Unix
	// seconds, end exclusive.
	StartTimestamp int64 `cbor:"start_timestamp"`
	EndTimestamp   int64 `cbor:"end_timestamp"`

	// Region is the country code of every key in the batch.
	Region string `cbor:"region"`

	// BatchNum and BatchSize number the files of a multi-file batch.
	// One batch is always one file, so both are 1.
	BatchNum  int `cbor:"batch_num"`
	BatchSize int `cbor:"batch_size"`

	SignatureInfos []SignatureInfo `cbor:"signature_infos"`
	Keys           []Key           `cbor:"keys"`
}

// Signature is one detached signature over a payload.
type Signature struct {
	SignatureInfo SignatureInfo `cbor:"signature_info"`
	BatchNum      int           `cbor:"batch_num"`
	BatchSize     int           `cbor:"batch_size"`
	Signature     []byte        `cbor:"signature"`
}

// SignatureList is the content of a signature file.
type SignatureList struct {
	Signatures []Signature `cbor:"signatures"`
}

// Decode parses a payload.
func Decode(payload []byte) (*Export, error) {
	var export Export
	if err := codec.UnmarshalFramed(Header, payload, &export); err != nil {
		return nil, fmt.Errorf("export: decoding payload: %w", err)
	}
	return &export, nil
}

// DecodeSignatures parses a signature file.
func DecodeSignatures(data []byte) (*SignatureList, error) {
	var list SignatureList
	if err := codec.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("export: decoding signature list: %w", err)
	}
	return &list, nil
}
