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
)

var (
	generateRows      int
	generateCities    int
	generateCustomers int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic raw shipment extract",
	Long: `Generate a synthetic shipment extract as a timestamped CSV file in
the raw data directory, without touching the warehouse.

Example:
  pgedge-etl generate --rows 1000`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVar(&generateRows, "rows", 0,
		"number of shipment rows to generate")
	generateCmd.Flags().IntVar(&generateCities, "cities", 0,
		"size of the city pool")
	generateCmd.Flags().IntVar(&generateCustomers, "customers", 0,
		"size of the customer id space")
}

// applyGenerateFlags merges generate flags into the config.
func applyGenerateFlags() error {
	if generateRows > 0 {
		cfg.Generate.Rows = generateRows
	}
	if generateCities > 0 {
		cfg.Generate.Cities = generateCities
	}
	if generateCustomers > 0 {
		cfg.Generate.Customers = generateCustomers
	}
	return cfg.ValidateGenerate()
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := applyGenerateFlags(); err != nil {
		return err
	}

	gen := datagen.NewShipmentGenerator(cfg.RawDir, cfg.Generate.Cities, cfg.Generate.Customers)
	path, err := gen.WriteCSV(cfg.Generate.Rows)
	if err != nil {
		return err
	}

	cmd.Println(path)
	return nil
}
