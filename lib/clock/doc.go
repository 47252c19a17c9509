// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Production code accepts a Clock instead of calling time.Now
// directly. In production, Real() provides the standard library
// behavior. In tests, Fake() provides a clock that moves only when
// told to:
//
//	c := clock.Fake(time.Date(2021, 3, 2, 6, 0, 0, 0, time.UTC))
//	run(ctx, c)
//	c.Advance(time.Hour)
package clock
