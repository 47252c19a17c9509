// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the current time for testability. Production code
// injects Real(); tests inject Fake() with a fixed instant.
//
// Every cutoff decision of a run (retention window, which buckets are
// closed, the last-success timestamp) reads the time from one Clock
// so that a run sees a single consistent "now".
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
