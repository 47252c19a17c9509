// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics records the outcome of a distribution run as
// Prometheus metrics. A run is a batch job, not a server, so the
// collectors live in a private registry that is written once per run
// to a node_exporter textfile.
package metrics
