//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package etl implements the transform and quality stages of the shipment
// pipeline: decoding raw extracts, deriving analytics columns, and scoring
// data quality over the cleaned batch.
package etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Column names of a raw shipment extract.
const (
	ColShipmentID      = "shipment_id"
	ColCustomerID      = "customer_id"
	ColOriginCity      = "origin_city"
	ColDestinationCity = "destination_city"
	ColCreatedAt       = "created_at"
	ColDeliveredAt     = "delivered_at"
	ColStatus          = "status"
	ColWeightKg        = "weight_kg"
	ColPrice           = "price"

	// Columns derived by the transform stage.
	ColDeliveryTimeHours = "delivery_time_hours"
	ColIsDelayed         = "is_delayed"
)

// RawHeader is the canonical column order of a raw extract file.
var RawHeader = []string{
	ColShipmentID,
	ColCustomerID,
	ColOriginCity,
	ColDestinationCity,
	ColCreatedAt,
	ColDeliveredAt,
	ColStatus,
	ColWeightKg,
	ColPrice,
}

// Shipment status values.
const (
	StatusCreated   = "CREATED"
	StatusInTransit = "IN_TRANSIT"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// Shipment is one record of the cleaned table. Optional fields are pointers
// so that a missing source value stays distinguishable from a zero value all
// the way to the warehouse, where it is stored as NULL.
type Shipment struct {
	ShipmentID        *int64
	CustomerID        *int64
	OriginCity        string
	DestinationCity   string
	CreatedAt         *time.Time
	DeliveredAt       *time.Time
	Status            string
	WeightKg          *float64
	Price             *float64
	DeliveryTimeHours *float64
	IsDelayed         bool
}

// Table is a batch of shipment records together with the set of columns the
// source extract actually carried. Column presence drives the quality report
// and the loaders' data-contract checks.
type Table struct {
	// SourceFile is the base name of the extract this table was built from.
	SourceFile string

	// Columns lists the columns present, source header first, derived
	// columns appended by the transform stage.
	Columns []string

	Rows []Shipment
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MissingColumns returns the subset of names the table does not carry.
func (t *Table) MissingColumns(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !t.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// timestampLayouts are tried in order when coercing extract timestamps.
// ISO-8601 with and without zone offset, plus a bare date.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp coerces a raw field to a timestamp. Unparseable or empty
// values come back nil rather than failing the row.
func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

func parseInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ReadRaw decodes a raw extract from r. The first record is the header;
// unknown columns are ignored and missing columns simply stay absent from
// the resulting table. sourceFile is recorded for provenance.
func ReadRaw(r io.Reader, sourceFile string) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read extract header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		index[name] = i
		columns = append(columns, name)
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	table := &Table{SourceFile: sourceFile, Columns: columns}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read extract row: %w", err)
		}

		table.Rows = append(table.Rows, Shipment{
			ShipmentID:      parseInt(field(record, ColShipmentID)),
			CustomerID:      parseInt(field(record, ColCustomerID)),
			OriginCity:      field(record, ColOriginCity),
			DestinationCity: field(record, ColDestinationCity),
			CreatedAt:       parseTimestamp(field(record, ColCreatedAt)),
			DeliveredAt:     parseTimestamp(field(record, ColDeliveredAt)),
			Status:          field(record, ColStatus),
			WeightKg:        parseFloat(field(record, ColWeightKg)),
			Price:           parseFloat(field(record, ColPrice)),
		})
	}

	return table, nil
}

// ReadRawFile decodes the raw extract at path.
func ReadRawFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extract: %w", err)
	}
	defer f.Close()

	return ReadRaw(f, filepath.Base(path))
}

// WriteProcessed encodes the cleaned table to w in the same CSV shape as the
// extract, with the derived columns appended.
func WriteProcessed(w io.Writer, table *Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(table.Columns); err != nil {
		return err
	}

	for _, row := range table.Rows {
		record := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			record = append(record, formatField(&row, col))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatField(s *Shipment, col string) string {
	switch col {
	case ColShipmentID:
		return formatInt(s.ShipmentID)
	case ColCustomerID:
		return formatInt(s.CustomerID)
	case ColOriginCity:
		return s.OriginCity
	case ColDestinationCity:
		return s.DestinationCity
	case ColCreatedAt:
		return formatTime(s.CreatedAt)
	case ColDeliveredAt:
		return formatTime(s.DeliveredAt)
	case ColStatus:
		return s.Status
	case ColWeightKg:
		return formatFloat(s.WeightKg)
	case ColPrice:
		return formatFloat(s.Price)
	case ColDeliveryTimeHours:
		return formatFloat(s.DeliveryTimeHours)
	case ColIsDelayed:
		return strconv.FormatBool(s.IsDelayed)
	default:
		return ""
	}
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.RFC3339)
}
