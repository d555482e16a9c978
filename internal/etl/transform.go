//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package etl

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pgEdge/pgedge-etl/internal/logging"
)

// DelayThresholdHours is the delivery duration beyond which a delivered
// shipment counts as delayed.
const DelayThresholdHours = 48.0

// Transformer turns a raw extract into a cleaned table: timestamps coerced,
// delivery duration and delay flag derived, and rows without a creation
// timestamp dropped. When ProcessedDir is set, a copy of the cleaned table
// is persisted there for auditability.
type Transformer struct {
	// ProcessedDir is where the cleaned copy is written. Empty disables
	// the copy.
	ProcessedDir string
}

// TransformFile reads the extract at path and transforms it.
func (t *Transformer) TransformFile(path string) (*Table, error) {
	raw, err := ReadRawFile(path)
	if err != nil {
		return nil, err
	}
	return t.Transform(raw)
}

// Transform cleans the raw table in place and returns it. Every returned
// row has a non-nil CreatedAt; the returned row count never exceeds the
// input row count.
func (t *Transformer) Transform(raw *Table) (*Table, error) {
	rowsIn := len(raw.Rows)

	cleaned := raw.Rows[:0]
	for _, row := range raw.Rows {
		row.DeliveryTimeHours = deliveryHours(&row)
		row.IsDelayed = isDelayed(&row)

		// The only filtering rule: a record without a creation
		// timestamp is unusable.
		if row.CreatedAt == nil {
			continue
		}
		cleaned = append(cleaned, row)
	}
	raw.Rows = cleaned
	raw.Columns = withDerivedColumns(raw.Columns)

	logging.Info().
		Str("source", raw.SourceFile).
		Int("rows_in", rowsIn).
		Int("rows_out", len(raw.Rows)).
		Msg("Transformed extract")

	if t.ProcessedDir != "" {
		// Best effort: the processed copy is an audit artifact, not
		// part of the returned table's contract.
		if err := t.writeProcessedCopy(raw); err != nil {
			logging.Warn().
				Err(err).
				Str("source", raw.SourceFile).
				Msg("Failed to persist processed copy")
		}
	}

	return raw, nil
}

func (t *Transformer) writeProcessedCopy(table *Table) error {
	if err := os.MkdirAll(t.ProcessedDir, 0o755); err != nil {
		return fmt.Errorf("failed to create processed dir: %w", err)
	}

	path := filepath.Join(t.ProcessedDir, ProcessedFileName(table.SourceFile))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create processed file: %w", err)
	}
	defer f.Close()

	if err := WriteProcessed(f, table); err != nil {
		return fmt.Errorf("failed to write processed file: %w", err)
	}

	logging.Debug().Str("path", path).Msg("Wrote processed copy")
	return nil
}

// ProcessedFileName derives the processed copy's name from the source
// extract's name.
func ProcessedFileName(sourceFile string) string {
	return "processed_" + sourceFile
}

// deliveryHours computes the delivery duration in hours, nil when the
// shipment has no delivery timestamp. The difference may be negative when
// delivered_at precedes created_at; that is surfaced by the quality report,
// not rejected here.
func deliveryHours(s *Shipment) *float64 {
	if s.CreatedAt == nil || s.DeliveredAt == nil {
		return nil
	}
	hours := s.DeliveredAt.Sub(*s.CreatedAt).Hours()
	return &hours
}

// isDelayed is true iff the shipment was delivered and took longer than the
// delay threshold.
func isDelayed(s *Shipment) bool {
	return s.Status == StatusDelivered &&
		s.DeliveryTimeHours != nil &&
		*s.DeliveryTimeHours > DelayThresholdHours
}

func withDerivedColumns(columns []string) []string {
	out := columns
	for _, c := range []string{ColDeliveryTimeHours, ColIsDelayed} {
		present := false
		for _, existing := range out {
			if existing == c {
				present = true
				break
			}
		}
		if !present {
			out = append(out, c)
		}
	}
	return out
}
