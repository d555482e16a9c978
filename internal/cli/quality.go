//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-etl/internal/datagen"
	"github.com/pgEdge/pgedge-etl/internal/etl"
)

var qualityInput string

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Compute a data quality report without loading",
	Long: `Transform an extract and print its data quality report. Nothing is
written to the warehouse and no run-log entry is appended.

Without --input a fresh synthetic extract is generated first.

Example:
  pgedge-etl quality --rows 200
  pgedge-etl quality --input data/raw/shipments_20260829_120000.csv`,
	RunE: runQuality,
}

func init() {
	qualityCmd.Flags().StringVar(&qualityInput, "input", "",
		"existing raw extract to score (default: generate a new one)")
	qualityCmd.Flags().IntVar(&generateRows, "rows", 0,
		"number of shipment rows to generate")
}

func runQuality(cmd *cobra.Command, args []string) error {
	csvPath := qualityInput
	if csvPath == "" {
		if err := applyGenerateFlags(); err != nil {
			return err
		}
		gen := datagen.NewShipmentGenerator(cfg.RawDir, cfg.Generate.Cities, cfg.Generate.Customers)
		var err error
		if csvPath, err = gen.WriteCSV(cfg.Generate.Rows); err != nil {
			return err
		}
	}

	transformer := &etl.Transformer{ProcessedDir: cfg.ProcessedDir}
	table, err := transformer.TransformFile(csvPath)
	if err != nil {
		return err
	}

	report := etl.Analyze(table)
	cmd.Println(report.Format())
	return nil
}
