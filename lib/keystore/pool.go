// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// pragmas are applied to every pooled connection.
//
//   - journal_mode=WAL: readers and the single writer do not block
//     each other.
//   - synchronous=NORMAL: commits survive process crashes without an
//     fsync per transaction.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock
//     instead of failing with SQLITE_BUSY.
//   - temp_store=MEMORY: the ORDER BY of a full read sorts in memory.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA cache_size=-8192",
	"PRAGMA temp_store=MEMORY",
}

const schema = `
CREATE TABLE IF NOT EXISTS diagnosis_key (
	key_data BLOB PRIMARY KEY,
	rolling_start_interval_number INTEGER NOT NULL,
	rolling_period INTEGER NOT NULL,
	transmission_risk_level INTEGER NOT NULL,
	submission_timestamp INTEGER NOT NULL,
	country TEXT NOT NULL
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS diagnosis_key_submission
	ON diagnosis_key (submission_timestamp);
`

func openPool(path string, size int) (*sqlitex.Pool, error) {
	return sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConnection,
	})
}

// prepareConnection runs once per connection, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("keystore: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("keystore: creating schema: %w", err)
	}
	return nil
}
