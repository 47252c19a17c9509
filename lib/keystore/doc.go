// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keystore persists submitted diagnosis keys in SQLite.
//
// The distribution run reads every record inside the retention
// window once, bundles it, and renders the complete tree; the store
// only has to answer that one range query quickly and drop records
// that left the window. Records are keyed by their key data, so a
// resubmitted key is stored once.
//
// Connections come from a zombiezen sqlitex pool with WAL journaling
// and a busy timeout, so an ingesting process can insert while a
// distribution run reads.
package keystore
