// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundler_test

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"github.com/Howard86/cwa-server/lib/bundler"
	"github.com/Howard86/cwa-server/lib/diagnosiskey"
	"github.com/Howard86/cwa-server/lib/testutil"
)

// afterEverything is a run time at which every fixture bucket is
// closed.
var afterEverything = testutil.Hour(2021, 4, 1, 0)

var march1 = diagnosiskey.DateOf(testutil.Hour(2021, 3, 1, 0))

func newBundler(t *testing.T, minimum int, tiers ...bundler.Granularity) *bundler.Bundler {
	t.Helper()
	policy := bundler.DefaultPolicy()
	policy.MinimumBatchSize = minimum
	if len(tiers) > 0 {
		policy.Tiers = tiers
	}
	instance, err := bundler.New(policy, []string{"DE"}, nil)
	if err != nil {
		t.Fatalf("bundler.New: %v", err)
	}
	return instance
}

func keySet(records []diagnosiskey.Record) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, record := range records {
		set[string(record.KeyData)] = struct{}{}
	}
	return set
}

func concat(groups ...[]diagnosiskey.Record) []diagnosiskey.Record {
	var all []diagnosiskey.Record
	for _, group := range groups {
		all = append(all, group...)
	}
	return all
}

func TestSmallHoursBelowMinimumAreDiscarded(t *testing.T) {
	hour8 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 8), 2)
	hour9 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 9), 2)
	hour14 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 14), 60)

	result := newBundler(t, 5).Bundle(concat(hour8, hour9, hour14), afterEverything)

	if got := result.Hours("DE", march1); !reflect.DeepEqual(got, []int{14}) {
		t.Errorf("Hours = %v, want [14]", got)
	}
	if _, ok := result.DayBatch("DE", march1); ok {
		t.Error("a day batch was created from 4 records with minimum 5")
	}
	batch, ok := result.HourBatch("DE", march1, 14)
	if !ok || batch.Len() != 60 {
		t.Fatalf("hour 14 batch = %v, %v; want 60 records", batch, ok)
	}
	if !reflect.DeepEqual(keySet(batch.Records), keySet(hour14)) {
		t.Error("hour 14 batch does not hold exactly the hour 14 records")
	}

	stats := result.Stats()
	want := bundler.Stats{Read: 64, Discarded: 4, Published: 60, HourBatches: 1}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

func TestSmallHoursRollUpIntoDayBatch(t *testing.T) {
	hour8 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 8), 3)
	hour9 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 9), 3)
	hour14 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 14), 60)

	result := newBundler(t, 5).Bundle(concat(hour8, hour9, hour14), afterEverything)

	day, ok := result.DayBatch("DE", march1)
	if !ok {
		t.Fatal("no day batch for 6 pooled records with minimum 5")
	}
	if day.Granularity != bundler.Day || !day.Start.Equal(march1.Start()) {
		t.Errorf("day batch covers %s from %v", day.Granularity, day.Start)
	}
	if !reflect.DeepEqual(keySet(day.Records), keySet(concat(hour8, hour9))) {
		t.Error("day batch is not exactly the union of the sub-threshold hours")
	}
	if got := result.Hours("DE", march1); !reflect.DeepEqual(got, []int{14}) {
		t.Errorf("Hours = %v, want [14]", got)
	}
	if stats := result.Stats(); stats.Discarded != 0 || stats.Published != 66 || stats.DayBatches != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestOpenBucketsAreWithheld(t *testing.T) {
	now := time.Date(2021, 3, 1, 15, 30, 0, 0, time.UTC)
	hour8 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 8), 2)
	hour14 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 14), 10)
	hour15 := testutil.Records("DE", testutil.Hour(2021, 3, 1, 15), 10)

	result := newBundler(t, 5).Bundle(concat(hour8, hour14, hour15), now)

	if got := result.Hours("DE", march1); !reflect.DeepEqual(got, []int{14}) {
		t.Errorf("Hours = %v, want [14]: hour 15 has not ended", got)
	}
	stats := result.Stats()
	// Hour 15 is still open; hour 8 is too small and its day is open.
	if stats.Withheld != 12 || stats.Discarded != 0 || stats.Published != 10 {
		t.Errorf("Stats = %+v, want 12 withheld, 0 discarded, 10 published", stats)
	}
}

func TestUnsupportedCountries(t *testing.T) {
	records := concat(
		testutil.Records("DE", testutil.Hour(2021, 3, 1, 10), 5),
		testutil.Records("FR", testutil.Hour(2021, 3, 1, 10), 7),
	)
	result := newBundler(t, 5).Bundle(records, afterEverything)

	if got := result.Countries(); !reflect.DeepEqual(got, []string{"DE"}) {
		t.Errorf("Countries = %v, want [DE]", got)
	}
	if stats := result.Stats(); stats.Unsupported != 7 || stats.Published != 5 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestExpiryPolicyDelaysDistribution(t *testing.T) {
	instance := newBundler(t, 1)

	// Submitted at 10:00 for a key still valid until 10:30. With a two
	// hour expiry policy it may appear at 12:30 earliest, so it lands
	// in the 13:00 bucket.
	submitted := testutil.Hour(2021, 3, 1, 10)
	record := testutil.Record("DE", submitted)
	record.RollingStartIntervalNumber = diagnosiskey.IntervalNumber(submitted.Add(-23*time.Hour - 30*time.Minute))
	record.RollingPeriod = diagnosiskey.MaxRollingPeriod

	if got, want := instance.DistributionTime(record), testutil.Hour(2021, 3, 1, 13); !got.Equal(want) {
		t.Fatalf("DistributionTime = %v, want %v", got, want)
	}

	result := instance.Bundle([]diagnosiskey.Record{record}, afterEverything)
	if got := result.Hours("DE", march1); !reflect.DeepEqual(got, []int{13}) {
		t.Errorf("Hours = %v, want [13]", got)
	}
}

func TestDayOnlyTier(t *testing.T) {
	records := concat(
		testutil.Records("DE", testutil.Hour(2021, 3, 1, 1), 3),
		testutil.Records("DE", testutil.Hour(2021, 3, 1, 2), 3),
		testutil.Records("DE", testutil.Hour(2021, 3, 2, 5), 2),
	)
	result := newBundler(t, 5, bundler.Day).Bundle(records, afterEverything)

	if _, ok := result.DayBatch("DE", march1); !ok {
		t.Error("no day batch for 2021-03-01")
	}
	if hours := result.Hours("DE", march1); len(hours) != 0 {
		t.Errorf("hour batches %v with a day-only policy", hours)
	}
	if stats := result.Stats(); stats.Discarded != 2 {
		t.Errorf("Discarded = %d, want 2", stats.Discarded)
	}
}

func TestOrderingIsDeterministic(t *testing.T) {
	records := testutil.Records("DE", testutil.Hour(2021, 3, 1, 10), 50)
	reversed := make([]diagnosiskey.Record, len(records))
	for index, record := range records {
		reversed[len(records)-1-index] = record
	}

	instance := newBundler(t, 5)
	first, _ := instance.Bundle(records, afterEverything).HourBatch("DE", march1, 10)
	second, _ := instance.Bundle(reversed, afterEverything).HourBatch("DE", march1, 10)
	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Error("batch order depends on input order")
	}

	policy := bundler.DefaultPolicy()
	policy.MinimumBatchSize = 5
	var err error
	policy.OrderingKey, err = bundler.DeriveOrderingKey("another deployment")
	if err != nil {
		t.Fatal(err)
	}
	other, err := bundler.New(policy, []string{"DE"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	third, _ := other.Bundle(records, afterEverything).HourBatch("DE", march1, 10)
	if reflect.DeepEqual(first.Records, third.Records) {
		t.Error("a different ordering key produced the same order for 50 records")
	}
}

// TestBatchInvariants checks, over random inputs, that every batch
// meets the minimum, that no record is published twice, that only
// input records are published, and that the accounting adds up.
func TestBatchInvariants(t *testing.T) {
	random := rand.New(rand.NewPCG(1, 2))
	for iteration := 0; iteration < 50; iteration++ {
		minimum := 1 + random.IntN(20)
		var records []diagnosiskey.Record
		for hour := 0; hour < 72; hour++ {
			count := random.IntN(2 * minimum)
			records = append(records, testutil.Records("DE", testutil.Hour(2021, 3, 1, 0).Add(time.Duration(hour)*time.Hour), count)...)
		}
		now := testutil.Hour(2021, 3, 1, 0).Add(time.Duration(random.IntN(96)) * time.Hour)

		result := newBundler(t, minimum).Bundle(records, now)

		input := keySet(records)
		published := make(map[string]struct{})
		for _, batch := range result.Batches() {
			if batch.Len() < minimum {
				t.Fatalf("iteration %d: batch of %d records below minimum %d", iteration, batch.Len(), minimum)
			}
			if batch.End().After(now) {
				t.Fatalf("iteration %d: batch ending %v published at %v", iteration, batch.End(), now)
			}
			for _, record := range batch.Records {
				key := string(record.KeyData)
				if _, ok := input[key]; !ok {
					t.Fatalf("iteration %d: published a record that was not in the input", iteration)
				}
				if _, dup := published[key]; dup {
					t.Fatalf("iteration %d: record published twice", iteration)
				}
				if diagnosiskey.DateOf(record.SubmissionTime()) != batch.Date() {
					t.Fatalf("iteration %d: record of %v in batch of %v", iteration, record.SubmissionTime(), batch.Date())
				}
				published[key] = struct{}{}
			}
		}

		stats := result.Stats()
		if stats.Published != len(published) {
			t.Fatalf("iteration %d: Published = %d, counted %d", iteration, stats.Published, len(published))
		}
		if total := stats.Unsupported + stats.Withheld + stats.Discarded + stats.Published; total != stats.Read {
			t.Fatalf("iteration %d: accounting %+v does not add up to %d", iteration, stats, stats.Read)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*bundler.Policy)
	}{
		{"zero minimum", func(policy *bundler.Policy) { policy.MinimumBatchSize = 0 }},
		{"no tiers", func(policy *bundler.Policy) { policy.Tiers = nil }},
		{"reversed tiers", func(policy *bundler.Policy) { policy.Tiers = []bundler.Granularity{bundler.Day, bundler.Hour} }},
		{"repeated tier", func(policy *bundler.Policy) { policy.Tiers = []bundler.Granularity{bundler.Hour, bundler.Hour} }},
		{"unknown tier", func(policy *bundler.Policy) { policy.Tiers = []bundler.Granularity{bundler.Granularity(7)} }},
		{"negative expiry", func(policy *bundler.Policy) { policy.ExpiryPolicy = -time.Minute }},
	}
	if err := bundler.DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			policy := bundler.DefaultPolicy()
			test.mutate(&policy)
			if err := policy.Validate(); !errors.Is(err, bundler.ErrInvalidPolicy) {
				t.Errorf("Validate() = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}

func TestNewRejectsBadCountries(t *testing.T) {
	if _, err := bundler.New(bundler.DefaultPolicy(), nil, nil); err == nil {
		t.Error("New accepted an empty country list")
	}
	if _, err := bundler.New(bundler.DefaultPolicy(), []string{"Germany"}, nil); err == nil {
		t.Error("New accepted an invalid country code")
	}
}

func TestGranularityNames(t *testing.T) {
	for _, granularity := range []bundler.Granularity{bundler.Hour, bundler.Day} {
		parsed, err := bundler.ParseGranularity(granularity.String())
		if err != nil || parsed != granularity {
			t.Errorf("ParseGranularity(%q) = %v, %v", granularity.String(), parsed, err)
		}
	}
	if _, err := bundler.ParseGranularity("week"); err == nil {
		t.Error("ParseGranularity accepted week")
	}
}

func TestDeriveOrderingKey(t *testing.T) {
	first, err := bundler.DeriveOrderingKey("secret")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := bundler.DeriveOrderingKey("secret")
	other, _ := bundler.DeriveOrderingKey("other")
	if first != again {
		t.Error("same secret derived different keys")
	}
	if first == other {
		t.Error("different secrets derived the same key")
	}
}
