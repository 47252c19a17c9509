// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/Howard86/cwa-server/lib/diagnosiskey"
)

var uniqueCounter atomic.Uint64

// UniqueKey returns 16 bytes of key material distinct from every
// other UniqueKey result in the process.
func UniqueKey() []byte {
	key := make([]byte, diagnosiskey.KeyLength)
	binary.BigEndian.PutUint64(key[:8], 0x6377612d6b657973) // "cwa-keys"
	binary.BigEndian.PutUint64(key[8:], uniqueCounter.Add(1))
	return key
}

// Record returns a valid record of country submitted in the hour
// containing submitted.
func Record(country string, submitted time.Time) diagnosiskey.Record {
	submissionHour := submitted.UTC().Truncate(time.Hour)
	keyStart := submissionHour.Add(-48 * time.Hour)
	return diagnosiskey.Record{
		KeyData:                    UniqueKey(),
		RollingStartIntervalNumber: diagnosiskey.IntervalNumber(keyStart),
		RollingPeriod:              diagnosiskey.MaxRollingPeriod,
		TransmissionRiskLevel:      5,
		SubmissionTimestamp:        diagnosiskey.HoursSinceEpoch(submissionHour),
		Country:                    country,
	}
}

// Records returns count records of country submitted in one hour.
func Records(country string, submitted time.Time, count int) []diagnosiskey.Record {
	records := make([]diagnosiskey.Record, count)
	for index := range records {
		records[index] = Record(country, submitted)
	}
	return records
}

// Hour returns the start of the given UTC hour, for building fixtures
// without repeating time.Date arguments.
func Hour(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}
