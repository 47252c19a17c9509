// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diagnosiskey

import (
	"errors"
	"fmt"
	"time"
)

const (
	// KeyLength is the length of a temporary exposure key in bytes.
	KeyLength = 16

	// IntervalDuration is the length of one rolling interval. Rolling
	// start numbers count these intervals since the Unix epoch.
	IntervalDuration = 10 * time.Minute

	// MaxRollingPeriod is the number of intervals in one day, the
	// longest validity of a single key.
	MaxRollingPeriod = 144

	// MinTransmissionRiskLevel and MaxTransmissionRiskLevel bound the
	// transmission risk level reported with a key.
	MinTransmissionRiskLevel = 1
	MaxTransmissionRiskLevel = 8
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("diagnosiskey: invalid record")

// Record is one published temporary exposure key together with the
// submission metadata that decides where it is distributed. Records
// are immutable once read from storage.
type Record struct {
	// KeyData is the opaque key material, KeyLength bytes.
	KeyData []byte

	// RollingStartIntervalNumber is the first interval the key was
	// valid for.
	RollingStartIntervalNumber int64

	// RollingPeriod is the number of intervals the key was valid for.
	RollingPeriod int

	TransmissionRiskLevel int

	// SubmissionTimestamp is the submission time in whole hours since
	// the Unix epoch. Storing hours instead of seconds is itself a
	// privacy measure: the store never learns the exact minute.
	SubmissionTimestamp int64

	// Country is the ISO 3166-1 alpha-2 code of the origin country.
	Country string
}

// Validate checks the record's fields against the key format.
func (record Record) Validate() error {
	if len(record.KeyData) != KeyLength {
		return fmt.Errorf("%w: key data is %d bytes, want %d", ErrInvalid, len(record.KeyData), KeyLength)
	}
	if record.RollingStartIntervalNumber < 0 {
		return fmt.Errorf("%w: negative rolling start interval %d", ErrInvalid, record.RollingStartIntervalNumber)
	}
	if record.RollingPeriod < 1 || record.RollingPeriod > MaxRollingPeriod {
		return fmt.Errorf("%w: rolling period %d outside 1..%d", ErrInvalid, record.RollingPeriod, MaxRollingPeriod)
	}
	if record.TransmissionRiskLevel < MinTransmissionRiskLevel || record.TransmissionRiskLevel > MaxTransmissionRiskLevel {
		return fmt.Errorf("%w: transmission risk level %d outside %d..%d", ErrInvalid,
			record.TransmissionRiskLevel, MinTransmissionRiskLevel, MaxTransmissionRiskLevel)
	}
	if record.SubmissionTimestamp < 0 {
		return fmt.Errorf("%w: negative submission timestamp %d", ErrInvalid, record.SubmissionTimestamp)
	}
	if !ValidCountry(record.Country) {
		return fmt.Errorf("%w: country %q is not a two-letter upper-case code", ErrInvalid, record.Country)
	}
	return nil
}

// SubmissionTime returns the start of the submission hour.
func (record Record) SubmissionTime() time.Time {
	return time.Unix(record.SubmissionTimestamp*3600, 0).UTC()
}

// ExpiryTime returns the end of the key's validity period.
func (record Record) ExpiryTime() time.Time {
	intervals := record.RollingStartIntervalNumber + int64(record.RollingPeriod)
	return time.Unix(intervals*int64(IntervalDuration/time.Second), 0).UTC()
}

// ValidCountry reports whether code looks like an ISO 3166-1 alpha-2
// country code.
func ValidCountry(code string) bool {
	if len(code) != 2 {
		return false
	}
	for index := 0; index < 2; index++ {
		if code[index] < 'A' || code[index] > 'Z' {
			return false
		}
	}
	return true
}

// IntervalNumber returns the rolling interval containing t.
func IntervalNumber(t time.Time) int64 {
	return t.Unix() / int64(IntervalDuration/time.Second)
}

// HoursSinceEpoch returns the whole hours between the Unix epoch and
// t, the unit of SubmissionTimestamp.
func HoursSinceEpoch(t time.Time) int64 {
	return t.Unix() / 3600
}
