// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Howard86/cwa-server/lib/diagnosiskey"
)

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist; the file is created if missing.
	Path string

	// PoolSize is the number of pooled connections. Zero selects 4.
	PoolSize int

	// Logger receives open/close and retention messages. Nil discards
	// them.
	Logger *slog.Logger
}

// Store is a persisted set of records. It is safe for concurrent use.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open opens or creates the database at config.Path. The caller must
// call Close when done.
func Open(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("keystore: Path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := openPool(config.Path, poolSize)
	if err != nil {
		return nil, fmt.Errorf("keystore: opening %s: %w", config.Path, err)
	}
	store := &Store{pool: pool, logger: logger, path: config.Path}

	// Surface a corrupt or unwritable database now rather than on the
	// first query.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("keystore: opening %s: %w", config.Path, err)
	}
	pool.Put(conn)

	logger.Info("keystore opened", "path", config.Path, "pool_size", poolSize)
	return store, nil
}

// Close closes every connection. Blocks until borrowed connections
// are returned.
func (store *Store) Close() error {
	if err := store.pool.Close(); err != nil {
		return fmt.Errorf("keystore: closing %s: %w", store.path, err)
	}
	store.logger.Info("keystore closed", "path", store.path)
	return nil
}

// Insert validates and stores records in one transaction. Records
// whose key data is already stored are skipped. Returns the number of
// records actually added. An invalid record fails the whole call and
// nothing is stored.
func (store *Store) Insert(ctx context.Context, records []diagnosiskey.Record) (inserted int, err error) {
	for index, record := range records {
		if err := record.Validate(); err != nil {
			return 0, fmt.Errorf("keystore: record %d: %w", index, err)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	conn, err := store.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("keystore: insert: %w", err)
	}
	defer store.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("keystore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, record := range records {
		err = sqlitex.Execute(conn, `
			INSERT OR IGNORE INTO diagnosis_key (
				key_data, rolling_start_interval_number, rolling_period,
				transmission_risk_level, submission_timestamp, country
			) VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				record.KeyData,
				record.RollingStartIntervalNumber,
				record.RollingPeriod,
				record.TransmissionRiskLevel,
				record.SubmissionTimestamp,
				record.Country,
			}})
		if err != nil {
			return 0, fmt.Errorf("keystore: insert: %w", err)
		}
		inserted += conn.Changes()
	}
	return inserted, nil
}

// Records returns every record submitted at or after since, ordered by
// submission hour and then key data.
func (store *Store) Records(ctx context.Context, since time.Time) ([]diagnosiskey.Record, error) {
	conn, err := store.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("keystore: records: %w", err)
	}
	defer store.pool.Put(conn)

	var records []diagnosiskey.Record
	err = sqlitex.Execute(conn, `
		SELECT key_data, rolling_start_interval_number, rolling_period,
			transmission_risk_level, submission_timestamp, country
		FROM diagnosis_key
		WHERE submission_timestamp >= ?
		ORDER BY submission_timestamp, key_data`,
		&sqlitex.ExecOptions{
			Args: []any{diagnosiskey.HoursSinceEpoch(since)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				keyData := make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, keyData)
				records = append(records, diagnosiskey.Record{
					KeyData:                    keyData,
					RollingStartIntervalNumber: stmt.ColumnInt64(1),
					RollingPeriod:              stmt.ColumnInt(2),
					TransmissionRiskLevel:      stmt.ColumnInt(3),
					SubmissionTimestamp:        stmt.ColumnInt64(4),
					Country:                    stmt.ColumnText(5),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("keystore: records: %w", err)
	}
	return records, nil
}

// ApplyRetention deletes every record submitted before cutoff and
// returns how many were deleted.
func (store *Store) ApplyRetention(ctx context.Context, cutoff time.Time) (int, error) {
	conn, err := store.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("keystore: retention: %w", err)
	}
	defer store.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM diagnosis_key WHERE submission_timestamp < ?",
		&sqlitex.ExecOptions{Args: []any{diagnosiskey.HoursSinceEpoch(cutoff)}})
	if err != nil {
		return 0, fmt.Errorf("keystore: retention: %w", err)
	}
	deleted := conn.Changes()
	store.logger.Info("retention applied",
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"deleted", deleted,
	)
	return deleted, nil
}

// Count returns the number of stored records.
func (store *Store) Count(ctx context.Context) (int, error) {
	conn, err := store.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("keystore: count: %w", err)
	}
	defer store.pool.Put(conn)

	var count int
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM diagnosis_key", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("keystore: count: %w", err)
	}
	return count, nil
}
