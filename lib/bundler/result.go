// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundler

import (
	"sort"
	"time"

	"github.com/Howard86/cwa-server/lib/diagnosiskey"
)

// Batch is the frozen set of records published as one signed payload.
type Batch struct {
	Country     string
	Granularity Granularity

	// Start is the beginning of the bucket the batch covers.
	Start time.Time

	// Records in publication order.
	Records []diagnosiskey.Record
}

// End returns the exclusive end of the covered bucket.
func (batch *Batch) End() time.Time {
	return batch.Start.Add(batch.Granularity.Duration())
}

// Date returns the UTC day of the batch.
func (batch *Batch) Date() diagnosiskey.Date {
	return diagnosiskey.DateOf(batch.Start)
}

// Hour returns the UTC hour of the batch start.
func (batch *Batch) Hour() int {
	return batch.Start.Hour()
}

// Len returns the number of records.
func (batch *Batch) Len() int {
	return len(batch.Records)
}

// Stats counts what happened to the records of one Bundle call.
// Every input record lands in exactly one of Unsupported, Withheld,
// Discarded and Published.
type Stats struct {
	Read        int
	Unsupported int
	Withheld    int
	Discarded   int
	Published   int

	HourBatches int
	DayBatches  int
}

type dateBatches struct {
	day   *Batch
	hours map[int]*Batch
}

// Result holds the batches of one run, indexed by country, date and
// hour. It is read-only once returned by Bundle and safe for
// concurrent readers.
type Result struct {
	stats     Stats
	countries map[string]map[diagnosiskey.Date]*dateBatches
}

func newResult() *Result {
	return &Result{countries: make(map[string]map[diagnosiskey.Date]*dateBatches)}
}

func (result *Result) add(batch *Batch) {
	dates, ok := result.countries[batch.Country]
	if !ok {
		dates = make(map[diagnosiskey.Date]*dateBatches)
		result.countries[batch.Country] = dates
	}
	date := batch.Date()
	entry, ok := dates[date]
	if !ok {
		entry = &dateBatches{hours: make(map[int]*Batch)}
		dates[date] = entry
	}
	switch batch.Granularity {
	case Hour:
		entry.hours[batch.Hour()] = batch
		result.stats.HourBatches++
	case Day:
		entry.day = batch
		result.stats.DayBatches++
	}
	result.stats.Published += batch.Len()
}

// Stats returns the record accounting of the run.
func (result *Result) Stats() Stats {
	return result.stats
}

// Countries returns the countries with at least one batch, sorted.
func (result *Result) Countries() []string {
	countries := make([]string, 0, len(result.countries))
	for country := range result.countries {
		countries = append(countries, country)
	}
	sort.Strings(countries)
	return countries
}

// Dates returns the days of country with at least one batch, oldest
// first.
func (result *Result) Dates(country string) []diagnosiskey.Date {
	dates := make([]diagnosiskey.Date, 0, len(result.countries[country]))
	for date := range result.countries[country] {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Hours returns the hours of date with an hour batch, ascending.
func (result *Result) Hours(country string, date diagnosiskey.Date) []int {
	entry := result.countries[country][date]
	if entry == nil {
		return nil
	}
	hours := make([]int, 0, len(entry.hours))
	for hour := range entry.hours {
		hours = append(hours, hour)
	}
	sort.Ints(hours)
	return hours
}

// HourBatch returns the batch published for one hour.
func (result *Result) HourBatch(country string, date diagnosiskey.Date, hour int) (*Batch, bool) {
	entry := result.countries[country][date]
	if entry == nil {
		return nil, false
	}
	batch, ok := entry.hours[hour]
	return batch, ok
}

// DayBatch returns the batch published at day level for date, which
// holds the records of every hour too small to stand alone.
func (result *Result) DayBatch(country string, date diagnosiskey.Date) (*Batch, bool) {
	entry := result.countries[country][date]
	if entry == nil || entry.day == nil {
		return nil, false
	}
	return entry.day, true
}

// Batches returns every batch ordered by country, then start, day
// batches before the hour batches of the same day.
func (result *Result) Batches() []*Batch {
	var batches []*Batch
	for _, country := range result.Countries() {
		for _, date := range result.Dates(country) {
			if day, ok := result.DayBatch(country, date); ok {
				batches = append(batches, day)
			}
			for _, hour := range result.Hours(country, date) {
				batch, _ := result.HourBatch(country, date, hour)
				batches = append(batches, batch)
			}
		}
	}
	return batches
}
