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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt(v int64) *int64          { return &v }

func makeTable(rows []Shipment) *Table {
	cols := make([]string, len(RawHeader))
	copy(cols, RawHeader)
	return &Table{SourceFile: "shipments_test.csv", Columns: cols, Rows: rows}
}

func TestTransformDerivesDeliveryColumns(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	table := makeTable([]Shipment{
		// Delivered in 10 hours: on time.
		{ShipmentID: ptrInt(1), CustomerID: ptrInt(1), Status: StatusDelivered,
			CreatedAt: ptrTime(created), DeliveredAt: ptrTime(created.Add(10 * time.Hour))},
		// Delivered in 72 hours: delayed.
		{ShipmentID: ptrInt(2), CustomerID: ptrInt(2), Status: StatusDelivered,
			CreatedAt: ptrTime(created), DeliveredAt: ptrTime(created.Add(72 * time.Hour))},
		// Not delivered: no duration, never delayed.
		{ShipmentID: ptrInt(3), CustomerID: ptrInt(3), Status: StatusCreated,
			CreatedAt: ptrTime(created)},
	})

	transformer := &Transformer{}
	cleaned, err := transformer.Transform(table)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if len(cleaned.Rows) != 3 {
		t.Fatalf("Expected 3 cleaned rows, got %d", len(cleaned.Rows))
	}

	if h := cleaned.Rows[0].DeliveryTimeHours; h == nil || *h != 10 {
		t.Errorf("Expected 10h duration, got %v", h)
	}
	if cleaned.Rows[0].IsDelayed {
		t.Error("10h delivery must not be delayed")
	}
	if !cleaned.Rows[1].IsDelayed {
		t.Error("72h delivery must be delayed")
	}
	if cleaned.Rows[2].DeliveryTimeHours != nil {
		t.Error("Undelivered row must have no duration")
	}
	if cleaned.Rows[2].IsDelayed {
		t.Error("Undelivered row must not be delayed")
	}

	if !cleaned.HasColumn(ColDeliveryTimeHours) || !cleaned.HasColumn(ColIsDelayed) {
		t.Error("Expected derived columns appended to the table")
	}
}

func TestTransformExactly48HoursNotDelayed(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	table := makeTable([]Shipment{
		{ShipmentID: ptrInt(1), CustomerID: ptrInt(1), Status: StatusDelivered,
			CreatedAt: ptrTime(created), DeliveredAt: ptrTime(created.Add(48 * time.Hour))},
	})

	transformer := &Transformer{}
	cleaned, err := transformer.Transform(table)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	// The rule is strictly greater than the threshold.
	if cleaned.Rows[0].IsDelayed {
		t.Error("Exactly 48h must not count as delayed")
	}
}

func TestTransformDelayRequiresDeliveredStatus(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	table := makeTable([]Shipment{
		// Long duration but cancelled: not delayed.
		{ShipmentID: ptrInt(1), CustomerID: ptrInt(1), Status: StatusCancelled,
			CreatedAt: ptrTime(created), DeliveredAt: ptrTime(created.Add(100 * time.Hour))},
	})

	transformer := &Transformer{}
	cleaned, err := transformer.Transform(table)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if cleaned.Rows[0].IsDelayed {
		t.Error("Non-DELIVERED row must not be delayed")
	}
}

func TestTransformDropsMissingCreatedAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	table := makeTable([]Shipment{
		{ShipmentID: ptrInt(1), CustomerID: ptrInt(1), Status: StatusCreated, CreatedAt: ptrTime(created)},
		{ShipmentID: ptrInt(2), CustomerID: ptrInt(2), Status: StatusCreated},
		{ShipmentID: ptrInt(3), CustomerID: ptrInt(3), Status: StatusCreated, CreatedAt: ptrTime(created)},
	})

	transformer := &Transformer{}
	cleaned, err := transformer.Transform(table)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if len(cleaned.Rows) != 2 {
		t.Fatalf("Expected 2 cleaned rows, got %d", len(cleaned.Rows))
	}
	for _, row := range cleaned.Rows {
		if row.CreatedAt == nil {
			t.Error("Cleaned row must never have a missing created_at")
		}
	}
}

func TestTransformNegativeDurationKept(t *testing.T) {
	created := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	table := makeTable([]Shipment{
		// delivered_at before created_at: a quality defect, not a reject.
		{ShipmentID: ptrInt(1), CustomerID: ptrInt(1), Status: StatusDelivered,
			CreatedAt: ptrTime(created), DeliveredAt: ptrTime(created.Add(-24 * time.Hour))},
	})

	transformer := &Transformer{}
	cleaned, err := transformer.Transform(table)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if len(cleaned.Rows) != 1 {
		t.Fatalf("Expected negative-duration row to survive, got %d rows", len(cleaned.Rows))
	}
	if h := cleaned.Rows[0].DeliveryTimeHours; h == nil || *h != -24 {
		t.Errorf("Expected -24h duration, got %v", h)
	}
}

func TestTransformWritesProcessedCopy(t *testing.T) {
	dir := t.TempDir()

	table, err := ReadRaw(strings.NewReader(sampleExtract), "shipments_test.csv")
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}

	transformer := &Transformer{ProcessedDir: dir}
	if _, err := transformer.Transform(table); err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	path := filepath.Join(dir, ProcessedFileName("shipments_test.csv"))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected processed copy at %s: %v", path, err)
	}
	if !strings.Contains(string(data), ColIsDelayed) {
		t.Error("Processed copy missing derived columns")
	}
}

func TestTransformProcessedCopyBestEffort(t *testing.T) {
	// An unwritable processed dir must not fail the transform.
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := ReadRaw(strings.NewReader(sampleExtract), "shipments_test.csv")
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}

	transformer := &Transformer{ProcessedDir: filepath.Join(file, "processed")}
	cleaned, err := transformer.Transform(table)
	if err != nil {
		t.Fatalf("Transform must not fail on processed-copy errors: %v", err)
	}
	if len(cleaned.Rows) == 0 {
		t.Error("Expected cleaned rows despite failed processed copy")
	}
}
