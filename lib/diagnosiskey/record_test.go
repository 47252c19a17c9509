// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diagnosiskey

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func validRecord() Record {
	return Record{
		KeyData:                    bytes.Repeat([]byte{0xab}, KeyLength),
		RollingStartIntervalNumber: 2686896,
		RollingPeriod:              MaxRollingPeriod,
		TransmissionRiskLevel:      5,
		SubmissionTimestamp:        447816,
		Country:                    "DE",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"short key", func(record *Record) { record.KeyData = record.KeyData[:15] }},
		{"negative interval", func(record *Record) { record.RollingStartIntervalNumber = -1 }},
		{"zero rolling period", func(record *Record) { record.RollingPeriod = 0 }},
		{"rolling period too long", func(record *Record) { record.RollingPeriod = MaxRollingPeriod + 1 }},
		{"risk level zero", func(record *Record) { record.TransmissionRiskLevel = 0 }},
		{"risk level nine", func(record *Record) { record.TransmissionRiskLevel = 9 }},
		{"negative submission", func(record *Record) { record.SubmissionTimestamp = -3 }},
		{"lower-case country", func(record *Record) { record.Country = "de" }},
		{"long country", func(record *Record) { record.Country = "DEU" }},
	}

	if err := validRecord().Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			record := validRecord()
			test.mutate(&record)
			if err := record.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestTimes(t *testing.T) {
	record := validRecord()

	// 447816 hours after the epoch is 2021-02-01 00:00 UTC.
	wantSubmission := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := record.SubmissionTime(); !got.Equal(wantSubmission) {
		t.Errorf("SubmissionTime() = %v, want %v", got, wantSubmission)
	}

	// Interval 2686896 starts at 2021-02-01 00:00; 144 intervals later
	// is the following midnight.
	wantExpiry := time.Date(2021, 2, 2, 0, 0, 0, 0, time.UTC)
	if got := record.ExpiryTime(); !got.Equal(wantExpiry) {
		t.Errorf("ExpiryTime() = %v, want %v", got, wantExpiry)
	}

	if got := IntervalNumber(wantSubmission); got != record.RollingStartIntervalNumber {
		t.Errorf("IntervalNumber = %d, want %d", got, record.RollingStartIntervalNumber)
	}
	if got := HoursSinceEpoch(wantSubmission); got != record.SubmissionTimestamp {
		t.Errorf("HoursSinceEpoch = %d, want %d", got, record.SubmissionTimestamp)
	}
}

func TestDate(t *testing.T) {
	date := DateOf(time.Date(2021, 3, 1, 23, 59, 0, 0, time.UTC))
	if date.String() != "2021-03-01" {
		t.Errorf("String() = %q", date.String())
	}

	parsed, err := ParseDate("2021-03-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if parsed != date {
		t.Errorf("ParseDate = %+v, want %+v", parsed, date)
	}
	if !date.Before(DateOf(time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC))) {
		t.Error("2021-03-01 should be before 2021-03-02")
	}
	if _, err := ParseDate("01.03.2021"); err == nil {
		t.Error("ParseDate accepted a malformed date")
	}
}
