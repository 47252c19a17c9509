// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package diagnosiskey defines the published key record and the time
// units it is bucketed by.
package diagnosiskey
