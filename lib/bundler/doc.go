// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundler decides which published keys go into which batch.
//
// Publishing a batch that holds only a handful of keys for a narrow
// time window lets an observer correlate the batch with a single
// submitter. The bundler prevents that with a minimum batch size
// evaluated over a ladder of bucket granularities (by default hour,
// then day):
//
//  1. Records are bucketed by (country, hour of distribution).
//  2. An hour bucket with at least the minimum becomes an hour batch.
//  3. Records of the smaller hour buckets of one day are pooled into a
//     single day bucket, which becomes a day batch if it reaches the
//     minimum.
//  4. Whatever is still below the minimum is discarded for good. This
//     is a deliberate data-loss policy; the count is reported in
//     [Stats] rather than as an error.
//
// The distribution hour of a key is its submission hour, delayed until
// the key expired at least [Policy.ExpiryPolicy] ago. Buckets that are
// not yet closed at the time of the run are withheld for a later run.
//
// Inside a batch, records are ordered by a keyed BLAKE3 hash of their
// key material, which reveals nothing about submission order and is
// identical across runs with the same [Policy.OrderingKey].
package bundler
