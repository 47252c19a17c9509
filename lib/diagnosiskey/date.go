// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diagnosiskey

import (
	"fmt"
	"time"
)

// DateLayout is the path segment format of a Date.
const DateLayout = "2006-01-02"

// Date is a UTC calendar day. Its zero value is not meaningful; build
// one with DateOf or ParseDate.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the UTC day containing t.
func DateOf(t time.Time) Date {
	year, month, day := t.UTC().Date()
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a date in DateLayout.
func ParseDate(value string) (Date, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("diagnosiskey: parsing date %q: %w", value, err)
	}
	return DateOf(parsed), nil
}

// Start returns midnight UTC of the day.
func (date Date) Start() time.Time {
	return time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the day in DateLayout.
func (date Date) String() string {
	return date.Start().Format(DateLayout)
}

// Before reports whether date is earlier than other.
func (date Date) Before(other Date) bool {
	return date.Start().Before(other.Start())
}
