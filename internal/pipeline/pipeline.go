//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline orchestrates one batch run: transform, quality scoring,
// dimensional and fact loads, and the run-log append.
package pipeline

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-etl/internal/etl"
	"github.com/pgEdge/pgedge-etl/internal/logging"
	"github.com/pgEdge/pgedge-etl/internal/warehouse"
)

// Summary reports the outcome of one pipeline run. Exactly one summary is
// produced per run, whether the load succeeded, was skipped, or failed.
type Summary struct {
	// SourceFile is the base name of the raw extract consumed.
	SourceFile string `json:"source_file"`

	// RowsRead is the number of rows in the raw extract.
	RowsRead int `json:"rows_read"`

	// RowsLoaded is the number of fact rows inserted.
	RowsLoaded int `json:"rows_loaded"`

	// RowsError is RowsRead when the load failed or was skipped, zero on
	// success. Rows dropped by the transform filter are not errors.
	RowsError int `json:"rows_error"`
}

// Pipeline runs batch ETL executions. One run processes one extract
// start-to-finish; runs are sequential with no internal parallelism, and
// concurrent runs against the same warehouse must be serialized externally.
type Pipeline struct {
	// ProcessedDir is where cleaned copies of each extract are persisted.
	// Empty disables the processed copy.
	ProcessedDir string
}

// Run executes the full pipeline over the extract at csvPath. A nil pool
// signals that the warehouse is unreachable: the load phases are skipped
// and the summary reports the whole batch as errored.
//
// A run-log entry is appended whenever the warehouse is reachable,
// including after a failed load; the returned error describes the load
// failure, never a missing summary.
func (p *Pipeline) Run(ctx context.Context, pool *pgxpool.Pool, csvPath string) (*Summary, *etl.Report, error) {
	raw, err := etl.ReadRawFile(csvPath)
	if err != nil {
		return nil, nil, err
	}
	rowsRead := len(raw.Rows)

	transformer := &etl.Transformer{ProcessedDir: p.ProcessedDir}
	table, err := transformer.Transform(raw)
	if err != nil {
		return nil, nil, err
	}

	report := etl.Analyze(table)

	// Pessimistic until the load commits.
	summary := &Summary{
		SourceFile: table.SourceFile,
		RowsRead:   rowsRead,
		RowsLoaded: 0,
		RowsError:  rowsRead,
	}

	if pool == nil {
		logging.Warn().
			Str("source", summary.SourceFile).
			Msg("Warehouse unreachable; skipping load phases")
		return summary, &report, nil
	}

	loadErr := p.load(ctx, pool, table, summary)

	if err := warehouse.LogRun(ctx, pool,
		summary.SourceFile, summary.RowsRead, summary.RowsLoaded, summary.RowsError); err != nil {
		logging.Warn().
			Err(err).
			Str("source", summary.SourceFile).
			Msg("Failed to append run log entry")
	}

	return summary, &report, loadErr
}

// load runs the dimension and fact phases and updates the summary counts
// to reflect the outcome. Each phase is its own transaction; a failure in
// either leaves the batch counted as unloaded.
func (p *Pipeline) load(ctx context.Context, pool *pgxpool.Pool, table *etl.Table, summary *Summary) error {
	if err := warehouse.LoadDimensions(ctx, pool, table); err != nil {
		return err
	}

	inserted, err := warehouse.LoadFacts(ctx, pool, table)
	if err != nil {
		return err
	}

	summary.RowsLoaded = int(inserted)
	summary.RowsError = 0
	return nil
}
