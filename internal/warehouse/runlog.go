//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunRecord is one row of the run log audit trail.
type RunRecord struct {
	ID         int64     `json:"id"`
	SourceFile string    `json:"source_file"`
	RowsRead   int       `json:"rows_read"`
	RowsLoaded int       `json:"rows_loaded"`
	RowsError  int       `json:"rows_error"`
	RunAt      time.Time `json:"run_at"`
}

// LogRun appends one immutable run-log row. The run timestamp is assigned
// by the database at insert time. There is no update or delete path.
func LogRun(ctx context.Context, pool *pgxpool.Pool, sourceFile string, rowsRead, rowsLoaded, rowsError int) error {
	if err := EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	_, err := pool.Exec(ctx, `
        INSERT INTO etl_log (source_file, rows_read, rows_loaded, rows_error)
        VALUES ($1, $2, $3, $4)
    `, sourceFile, rowsRead, rowsLoaded, rowsError)
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run-log row, or nil when no pipeline
// run has been logged yet.
func LatestRun(ctx context.Context, pool *pgxpool.Pool) (*RunRecord, error) {
	var rec RunRecord
	err := pool.QueryRow(ctx, `
        SELECT id, source_file, rows_read, rows_loaded, rows_error, run_at
        FROM etl_log
        ORDER BY run_at DESC, id DESC
        LIMIT 1
    `).Scan(&rec.ID, &rec.SourceFile, &rec.RowsRead, &rec.RowsLoaded, &rec.RowsError, &rec.RunAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return &rec, nil
}

// RunCount returns the number of logged runs.
func RunCount(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	var count int64
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM etl_log`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}
