// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundler

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Howard86/cwa-server/lib/diagnosiskey"
)

// Bundler groups records into batches according to a Policy. A
// Bundler holds no per-run state and may be reused.
type Bundler struct {
	policy    Policy
	countries map[string]struct{}
	logger    *slog.Logger
}

// New returns a Bundler publishing records of the given countries.
// Records of other countries are counted as unsupported and skipped.
func New(policy Policy, countries []string, logger *slog.Logger) (*Bundler, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("bundler: at least one country is required")
	}
	supported := make(map[string]struct{}, len(countries))
	for _, country := range countries {
		if !diagnosiskey.ValidCountry(country) {
			return nil, fmt.Errorf("bundler: invalid country code %q", country)
		}
		supported[country] = struct{}{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy.Tiers = append([]Granularity(nil), policy.Tiers...)
	return &Bundler{policy: policy, countries: supported, logger: logger}, nil
}

// Policy returns the policy the bundler applies.
func (bundler *Bundler) Policy() Policy {
	return bundler.policy
}

// DistributionTime returns the earliest time a record may be
// published: its submission hour, pushed back until the key has been
// expired for the policy's expiry duration. The result is always on
// an hour boundary.
func (bundler *Bundler) DistributionTime(record diagnosiskey.Record) time.Time {
	submission := record.SubmissionTime()
	earliest := ceilHour(record.ExpiryTime().Add(bundler.policy.ExpiryPolicy))
	if earliest.After(submission) {
		return earliest
	}
	return submission
}

func ceilHour(t time.Time) time.Time {
	truncated := t.UTC().Truncate(time.Hour)
	if truncated.Before(t) {
		return truncated.Add(time.Hour)
	}
	return truncated
}

type bucketKey struct {
	country string
	start   int64
}

// Bundle partitions records into batches. Buckets are only published
// once closed: a bucket whose end is after now is withheld so that no
// partial hour or day is ever published. Withheld records are picked
// up by a later run.
//
// At each tier, a bucket with at least MinimumBatchSize records
// becomes a batch. The records of the smaller buckets pool into their
// bucket of the next tier, which is evaluated the same way; what is
// still too small at the last tier is discarded. A record is therefore
// published at most once, and every batch meets the minimum.
func (bundler *Bundler) Bundle(records []diagnosiskey.Record, now time.Time) *Result {
	result := newResult()
	result.stats.Read = len(records)
	tiers := bundler.policy.Tiers
	minimum := bundler.policy.MinimumBatchSize

	pending := make(map[bucketKey][]diagnosiskey.Record)
	for _, record := range records {
		if _, ok := bundler.countries[record.Country]; !ok {
			result.stats.Unsupported++
			continue
		}
		start := tiers[0].Truncate(bundler.DistributionTime(record))
		if !closed(tiers[0], start, now) {
			result.stats.Withheld++
			continue
		}
		key := bucketKey{country: record.Country, start: start.Unix()}
		pending[key] = append(pending[key], record)
	}

	for position, tier := range tiers {
		next := make(map[bucketKey][]diagnosiskey.Record)
		for _, key := range sortedKeys(pending) {
			bucket := pending[key]
			start := time.Unix(key.start, 0).UTC()

			if len(bucket) >= minimum {
				result.add(&Batch{
					Country:     key.country,
					Granularity: tier,
					Start:       start,
					Records:     bundler.order(bucket),
				})
				continue
			}

			if position == len(tiers)-1 {
				result.stats.Discarded += len(bucket)
				bundler.logger.Info("discarding records below minimum batch size",
					"country", key.country,
					"granularity", tier.String(),
					"start", start.Format(time.RFC3339),
					"records", len(bucket),
					"minimum", minimum,
				)
				continue
			}

			coarser := tiers[position+1]
			coarserStart := coarser.Truncate(start)
			if !closed(coarser, coarserStart, now) {
				result.stats.Withheld += len(bucket)
				continue
			}
			coarserKey := bucketKey{country: key.country, start: coarserStart.Unix()}
			next[coarserKey] = append(next[coarserKey], bucket...)
		}
		pending = next
	}

	return result
}

func closed(granularity Granularity, start, now time.Time) bool {
	return !start.Add(granularity.Duration()).After(now)
}

func sortedKeys(buckets map[bucketKey][]diagnosiskey.Record) []bucketKey {
	keys := make([]bucketKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].country != keys[j].country {
			return keys[i].country < keys[j].country
		}
		return keys[i].start < keys[j].start
	})
	return keys
}

// order returns a copy of records sorted by the keyed BLAKE3 digest
// of their key data. The order depends only on the key material and
// the ordering key, never on submission order.
func (bundler *Bundler) order(records []diagnosiskey.Record) []diagnosiskey.Record {
	type keyed struct {
		digest []byte
		record diagnosiskey.Record
	}
	entries := make([]keyed, len(records))
	for index, record := range records {
		hasher, err := blake3.NewKeyed(bundler.policy.OrderingKey[:])
		if err != nil {
			// NewKeyed only fails for keys that are not 32 bytes.
			panic("bundler: blake3 keyed hasher: " + err.Error())
		}
		hasher.Write(record.KeyData)
		entries[index] = keyed{digest: hasher.Sum(nil), record: record}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if comparison := bytes.Compare(entries[i].digest, entries[j].digest); comparison != 0 {
			return comparison < 0
		}
		return bytes.Compare(entries[i].record.KeyData, entries[j].record.KeyData) < 0
	})

	ordered := make([]diagnosiskey.Record, len(entries))
	for index, entry := range entries {
		ordered[index] = entry.record
	}
	return ordered
}
