// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test fixtures.
//
// [UniqueKey] returns key material that never repeats within a test
// binary, so records built by different helpers in one test cannot
// collide on the keystore's primary key. [Records] builds a run of
// valid records submitted in one hour; their keys expired a day
// before submission, so the bundler's expiry policy never moves them
// to a later hour.
//
// [Signer] and [FailingSigner] supply signing keys for exporter and
// assembly tests.
package testutil
