// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundler

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidPolicy is wrapped by every Policy.Validate failure.
var ErrInvalidPolicy = errors.New("bundler: invalid policy")

// Granularity is the time span of one bucket.
type Granularity int

const (
	// Hour buckets records by UTC hour.
	Hour Granularity = iota
	// Day buckets records by UTC day.
	Day
)

// String returns the configuration name of the granularity.
func (granularity Granularity) String() string {
	switch granularity {
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return fmt.Sprintf("unknown(%d)", int(granularity))
	}
}

// ParseGranularity parses "hour" or "day".
func ParseGranularity(name string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hour":
		return Hour, nil
	case "day":
		return Day, nil
	default:
		return 0, fmt.Errorf("%w: unknown granularity %q", ErrInvalidPolicy, name)
	}
}

// Duration returns the length of one bucket.
func (granularity Granularity) Duration() time.Duration {
	if granularity == Day {
		return 24 * time.Hour
	}
	return time.Hour
}

// Truncate returns the start of the bucket containing t.
func (granularity Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if granularity == Day {
		year, month, day := t.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Hour)
}

// Policy controls how records are grouped into publishable batches.
type Policy struct {
	// MinimumBatchSize is the smallest number of records a batch may
	// hold. Buckets below it roll up into the next tier.
	MinimumBatchSize int

	// Tiers lists the bucket granularities from finest to coarsest.
	// Records of a bucket below the minimum pool into their bucket of
	// the next tier; below the minimum at the last tier they are
	// discarded.
	Tiers []Granularity

	// ExpiryPolicy is how long after a key stops being valid it may
	// be published at the earliest.
	ExpiryPolicy time.Duration

	// OrderingKey keys the hash that orders records inside a batch.
	OrderingKey [32]byte
}

// DefaultPolicy returns the hour-then-day policy with a minimum batch
// size of 140 and a two hour expiry policy.
func DefaultPolicy() Policy {
	return Policy{
		MinimumBatchSize: 140,
		Tiers:            []Granularity{Hour, Day},
		ExpiryPolicy:     2 * time.Hour,
	}
}

// Validate checks that the policy can be applied.
func (policy Policy) Validate() error {
	if policy.MinimumBatchSize < 1 {
		return fmt.Errorf("%w: minimum batch size %d, want at least 1", ErrInvalidPolicy, policy.MinimumBatchSize)
	}
	if len(policy.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidPolicy)
	}
	for position, tier := range policy.Tiers {
		if tier != Hour && tier != Day {
			return fmt.Errorf("%w: tier %d is %s", ErrInvalidPolicy, position, tier)
		}
		if position > 0 && tier <= policy.Tiers[position-1] {
			return fmt.Errorf("%w: tiers must get strictly coarser, %s follows %s",
				ErrInvalidPolicy, tier, policy.Tiers[position-1])
		}
	}
	if policy.ExpiryPolicy < 0 {
		return fmt.Errorf("%w: negative expiry policy %s", ErrInvalidPolicy, policy.ExpiryPolicy)
	}
	return nil
}

// DeriveOrderingKey expands a deployment secret into an ordering key
// with HKDF-SHA256. The same secret always yields the same key, which
// keeps batch payloads reproducible across runs.
func DeriveOrderingKey(secret string) ([32]byte, error) {
	var key [32]byte
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte("cwa-distribution batch ordering"))
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return key, fmt.Errorf("bundler: deriving ordering key: %w", err)
	}
	return key, nil
}
