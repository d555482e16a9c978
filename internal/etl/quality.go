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
	"sort"
	"strings"
)

// Report holds data-quality metrics for one cleaned batch. Every metric is
// a predicate count over the batch; the analyzer never mutates or rejects
// data, so quality assessment stays decoupled from load decisions.
type Report struct {
	// RowCount is the total number of rows in the batch.
	RowCount int `json:"row_count"`

	// NullCounts maps each column to its count of missing values.
	NullCounts map[string]int `json:"null_counts"`

	// DuplicateShipmentID counts shipment_id occurrences beyond the
	// first, i.e. rows minus distinct ids. Nil when the extract carried
	// no shipment_id column at all.
	DuplicateShipmentID *int `json:"duplicate_shipment_id"`

	// NegativeValues maps each numeric measure column to its count of
	// values below zero.
	NegativeValues map[string]int `json:"negative_values"`

	// InvalidDeliveryRows counts rows that are semantically inconsistent:
	// delivered without a delivery timestamp, or with a negative delivery
	// duration.
	InvalidDeliveryRows int `json:"invalid_delivery_rows"`
}

// Analyze computes the quality report for a cleaned table. Pure function of
// its input; no I/O.
func Analyze(table *Table) Report {
	report := Report{
		RowCount:       len(table.Rows),
		NullCounts:     make(map[string]int, len(table.Columns)),
		NegativeValues: make(map[string]int),
	}

	for _, col := range table.Columns {
		report.NullCounts[col] = 0
	}
	for _, row := range table.Rows {
		for _, col := range table.Columns {
			if isMissing(&row, col) {
				report.NullCounts[col]++
			}
		}
	}

	if table.HasColumn(ColShipmentID) {
		seen := make(map[int64]struct{}, len(table.Rows))
		duplicates := 0
		for _, row := range table.Rows {
			if row.ShipmentID == nil {
				continue
			}
			if _, ok := seen[*row.ShipmentID]; ok {
				duplicates++
				continue
			}
			seen[*row.ShipmentID] = struct{}{}
		}
		report.DuplicateShipmentID = &duplicates
	}

	for _, col := range []string{ColWeightKg, ColPrice, ColDeliveryTimeHours} {
		if !table.HasColumn(col) {
			continue
		}
		negatives := 0
		for _, row := range table.Rows {
			if v := numericValue(&row, col); v != nil && *v < 0 {
				negatives++
			}
		}
		report.NegativeValues[col] = negatives
	}

	if table.HasColumn(ColStatus) &&
		table.HasColumn(ColDeliveredAt) &&
		table.HasColumn(ColDeliveryTimeHours) {
		for _, row := range table.Rows {
			undeliveredButDelivered := row.Status == StatusDelivered && row.DeliveredAt == nil
			negativeDuration := row.DeliveryTimeHours != nil && *row.DeliveryTimeHours < 0
			if undeliveredButDelivered || negativeDuration {
				report.InvalidDeliveryRows++
			}
		}
	}

	return report
}

// Format renders the report as a human-readable block for CLI output.
func (r Report) Format() string {
	var b strings.Builder

	b.WriteString("=== DATA QUALITY REPORT ===\n")
	fmt.Fprintf(&b, "Total rows: %d\n", r.RowCount)
	if r.DuplicateShipmentID != nil {
		fmt.Fprintf(&b, "Duplicate shipment_id: %d\n", *r.DuplicateShipmentID)
	} else {
		b.WriteString("Duplicate shipment_id: n/a\n")
	}

	b.WriteString("\nNulls by column:\n")
	for _, col := range sortedKeys(r.NullCounts) {
		fmt.Fprintf(&b, "  - %s: %d\n", col, r.NullCounts[col])
	}

	b.WriteString("\nNegative values:\n")
	for _, col := range sortedKeys(r.NegativeValues) {
		fmt.Fprintf(&b, "  - %s: %d\n", col, r.NegativeValues[col])
	}

	fmt.Fprintf(&b, "\nInvalid delivery rows: %d\n", r.InvalidDeliveryRows)
	b.WriteString("=== END OF QUALITY REPORT ===")

	return b.String()
}

func isMissing(s *Shipment, col string) bool {
	switch col {
	case ColShipmentID:
		return s.ShipmentID == nil
	case ColCustomerID:
		return s.CustomerID == nil
	case ColOriginCity:
		return s.OriginCity == ""
	case ColDestinationCity:
		return s.DestinationCity == ""
	case ColCreatedAt:
		return s.CreatedAt == nil
	case ColDeliveredAt:
		return s.DeliveredAt == nil
	case ColStatus:
		return s.Status == ""
	case ColWeightKg:
		return s.WeightKg == nil
	case ColPrice:
		return s.Price == nil
	case ColDeliveryTimeHours:
		return s.DeliveryTimeHours == nil
	default:
		// is_delayed and unknown columns have no null representation.
		return false
	}
}

func numericValue(s *Shipment, col string) *float64 {
	switch col {
	case ColWeightKg:
		return s.WeightKg
	case ColPrice:
		return s.Price
	case ColDeliveryTimeHours:
		return s.DeliveryTimeHours
	default:
		return nil
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
