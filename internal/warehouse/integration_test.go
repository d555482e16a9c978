//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

//go:build integration
// +build integration

// Integration tests for the warehouse load path.
// Run with: go test -tags=integration ./internal/warehouse/...
// Requires PostgreSQL to be available.
// Set PGEDGE_ETL_TEST_CONN environment variable to override connection string.

package warehouse_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-etl/internal/etl"
	"github.com/pgEdge/pgedge-etl/internal/testutil"
	"github.com/pgEdge/pgedge-etl/internal/warehouse"
)

// setupWarehouse creates a fresh test database and returns a pool connected
// to it. The database is dropped on success and kept on failure.
func setupWarehouse(t *testing.T, name string) (context.Context, *pgxpool.Pool) {
	t.Helper()

	baseConnStr := testutil.SkipIfNoPostgres(t)
	connStr := testutil.CreateTestDB(t, baseConnStr, name)
	dbName := testutil.GetDBNameFromConnStr(connStr)

	cleanup := testutil.NewTestCleanup(t, baseConnStr, dbName)
	pool := testutil.ConnectTestDB(t, connStr)
	cleanup.SetPool(pool)
	t.Cleanup(cleanup.Cleanup)

	return context.Background(), pool
}

func cleanedColumns() []string {
	cols := append([]string{}, etl.RawHeader...)
	return append(cols, etl.ColDeliveryTimeHours, etl.ColIsDelayed)
}

// shipment builds a cleaned record with the given identity and route. The
// batch epoch keeps timestamps stable across assertions.
var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func shipment(id, customer int64, origin, dest string) etl.Shipment {
	created := epoch.Add(time.Duration(id) * time.Hour)
	delivered := created.Add(24 * time.Hour)
	hours := 24.0
	weight := 4.5
	price := 21500.0
	return etl.Shipment{
		ShipmentID:        &id,
		CustomerID:        &customer,
		OriginCity:        origin,
		DestinationCity:   dest,
		CreatedAt:         &created,
		DeliveredAt:       &delivered,
		Status:            etl.StatusDelivered,
		WeightKg:          &weight,
		Price:             &price,
		DeliveryTimeHours: &hours,
		IsDelayed:         false,
	}
}

func cleanedTable(rows ...etl.Shipment) *etl.Table {
	return &etl.Table{
		SourceFile: "shipments_test.csv",
		Columns:    cleanedColumns(),
		Rows:       rows,
	}
}

func countRows(t *testing.T, ctx context.Context, pool *pgxpool.Pool, rel string) int64 {
	t.Helper()
	var n int64
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM "+rel).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", rel, err)
	}
	return n
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	ctx, pool := setupWarehouse(t, "schema")

	for i := 0; i < 3; i++ {
		if err := warehouse.EnsureSchema(ctx, pool); err != nil {
			t.Fatalf("EnsureSchema pass %d failed: %v", i+1, err)
		}
	}

	for _, rel := range []string{"dim_city", "dim_customer", "fact_shipment", "etl_log"} {
		if n := countRows(t, ctx, pool, rel); n != 0 {
			t.Errorf("Expected %s empty after schema creation, got %d rows", rel, n)
		}
	}
}

func TestLoadDimensionsFullReset(t *testing.T) {
	ctx, pool := setupWarehouse(t, "dims")

	first := cleanedTable(
		shipment(1, 100, "Hanoi", "Da Nang"),
		shipment(2, 101, "Hue", "Hanoi"),
	)
	if err := warehouse.LoadDimensions(ctx, pool, first); err != nil {
		t.Fatalf("First dimension load failed: %v", err)
	}
	if _, err := warehouse.LoadFacts(ctx, pool, first); err != nil {
		t.Fatalf("First fact load failed: %v", err)
	}

	// A second batch with entirely different cities replaces, not extends,
	// the dimensions. Facts go too, or the city FKs would dangle.
	second := cleanedTable(shipment(3, 200, "Can Tho", "Hai Phong"))
	if err := warehouse.LoadDimensions(ctx, pool, second); err != nil {
		t.Fatalf("Second dimension load failed: %v", err)
	}

	if n := countRows(t, ctx, pool, "fact_shipment"); n != 0 {
		t.Errorf("Expected facts cleared by dimension reset, got %d rows", n)
	}
	if n := countRows(t, ctx, pool, "dim_city"); n != 2 {
		t.Errorf("Expected 2 cities after reset, got %d", n)
	}
	if n := countRows(t, ctx, pool, "dim_customer"); n != 1 {
		t.Errorf("Expected 1 customer after reset, got %d", n)
	}

	var name, segment string
	err := pool.QueryRow(ctx,
		"SELECT name, segment FROM dim_customer WHERE customer_id = 200",
	).Scan(&name, &segment)
	if err != nil {
		t.Fatalf("Failed to read customer 200: %v", err)
	}
	if name != warehouse.CustomerName(200) {
		t.Errorf("Expected synthesized name %q, got %q", warehouse.CustomerName(200), name)
	}
	if segment != warehouse.CustomerSegment {
		t.Errorf("Expected segment %q, got %q", warehouse.CustomerSegment, segment)
	}
}

func TestCitySurrogatesAreDeterministic(t *testing.T) {
	ctx, pool := setupWarehouse(t, "cities")

	table := cleanedTable(
		shipment(1, 100, "Hanoi", "Da Nang"),
		shipment(2, 100, "Can Tho", "Hanoi"),
	)

	// Cities are inserted in sorted name order, so walking the surrogate
	// keys in ascending order always yields the names sorted. That holds on
	// every reload even though the sequence itself keeps advancing.
	readCities := func() []string {
		rows, err := pool.Query(ctx, "SELECT name FROM dim_city ORDER BY city_id")
		if err != nil {
			t.Fatalf("Failed to read cities: %v", err)
		}
		defer rows.Close()
		var names []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				t.Fatalf("Failed to scan city: %v", err)
			}
			names = append(names, name)
		}
		return names
	}

	want := []string{"Can Tho", "Da Nang", "Hanoi"}
	for pass := 1; pass <= 2; pass++ {
		if err := warehouse.LoadDimensions(ctx, pool, table); err != nil {
			t.Fatalf("Load pass %d failed: %v", pass, err)
		}
		got := readCities()
		if len(got) != len(want) {
			t.Fatalf("Pass %d: expected %d cities, got %v", pass, len(want), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Pass %d: expected %q at surrogate position %d, got %q",
					pass, want[i], i, got[i])
			}
		}
	}
}

func TestLoadFactsSkipsDuplicateShipments(t *testing.T) {
	ctx, pool := setupWarehouse(t, "facts")

	table := cleanedTable(
		shipment(10, 100, "Hanoi", "Da Nang"),
		shipment(11, 101, "Da Nang", "Hanoi"),
		shipment(10, 100, "Hanoi", "Da Nang"), // duplicate key within batch
	)
	if err := warehouse.LoadDimensions(ctx, pool, table); err != nil {
		t.Fatalf("Dimension load failed: %v", err)
	}

	inserted, err := warehouse.LoadFacts(ctx, pool, table)
	if err != nil {
		t.Fatalf("Fact load failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("Expected 2 inserted with the duplicate skipped, got %d", inserted)
	}
	if n := countRows(t, ctx, pool, "fact_shipment"); n != 2 {
		t.Errorf("Expected 2 fact rows, got %d", n)
	}

	// Replaying the whole batch against the unreset fact table inserts
	// nothing.
	inserted, err = warehouse.LoadFacts(ctx, pool, table)
	if err != nil {
		t.Fatalf("Replay fact load failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("Expected 0 inserted on replay, got %d", inserted)
	}
}

func TestLoadFactsResolvesCityKeys(t *testing.T) {
	ctx, pool := setupWarehouse(t, "citykeys")

	table := cleanedTable(shipment(1, 100, "Hue", "Hanoi"))
	if err := warehouse.LoadDimensions(ctx, pool, table); err != nil {
		t.Fatalf("Dimension load failed: %v", err)
	}
	if _, err := warehouse.LoadFacts(ctx, pool, table); err != nil {
		t.Fatalf("Fact load failed: %v", err)
	}

	var origin, dest string
	err := pool.QueryRow(ctx, `
        SELECT o.name, d.name
        FROM fact_shipment f
        JOIN dim_city o ON o.city_id = f.origin_city_id
        JOIN dim_city d ON d.city_id = f.destination_city_id
        WHERE f.shipment_id = 1
    `).Scan(&origin, &dest)
	if err != nil {
		t.Fatalf("Failed to join fact to cities: %v", err)
	}
	if origin != "Hue" || dest != "Hanoi" {
		t.Errorf("Expected Hue -> Hanoi, got %s -> %s", origin, dest)
	}
}

func TestLoadFactsNullIdentityAbortsBatch(t *testing.T) {
	ctx, pool := setupWarehouse(t, "nullid")

	good := shipment(1, 100, "Hanoi", "Da Nang")
	bad := shipment(2, 100, "Hanoi", "Da Nang")
	bad.ShipmentID = nil

	table := cleanedTable(good, bad)
	if err := warehouse.LoadDimensions(ctx, pool, table); err != nil {
		t.Fatalf("Dimension load failed: %v", err)
	}

	if _, err := warehouse.LoadFacts(ctx, pool, table); err == nil {
		t.Fatal("Expected error for null shipment_id")
	}
	if n := countRows(t, ctx, pool, "fact_shipment"); n != 0 {
		t.Errorf("Expected aborted batch to load nothing, got %d rows", n)
	}
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	ctx, pool := setupWarehouse(t, "contract")

	table := &etl.Table{
		SourceFile: "shipments_test.csv",
		Columns:    []string{etl.ColShipmentID, etl.ColStatus},
		Rows:       []etl.Shipment{shipment(1, 100, "Hanoi", "Hue")},
	}

	if err := warehouse.LoadDimensions(ctx, pool, table); !errors.Is(err, warehouse.ErrDataContract) {
		t.Errorf("Expected ErrDataContract from LoadDimensions, got %v", err)
	}
	if _, err := warehouse.LoadFacts(ctx, pool, table); !errors.Is(err, warehouse.ErrDataContract) {
		t.Errorf("Expected ErrDataContract from LoadFacts, got %v", err)
	}
}

func TestEmptyBatchTruncatesWarehouse(t *testing.T) {
	ctx, pool := setupWarehouse(t, "empty")

	seeded := cleanedTable(shipment(1, 100, "Hanoi", "Da Nang"))
	if err := warehouse.LoadDimensions(ctx, pool, seeded); err != nil {
		t.Fatalf("Seed dimension load failed: %v", err)
	}
	if _, err := warehouse.LoadFacts(ctx, pool, seeded); err != nil {
		t.Fatalf("Seed fact load failed: %v", err)
	}

	empty := cleanedTable()
	if err := warehouse.LoadDimensions(ctx, pool, empty); err != nil {
		t.Fatalf("Empty dimension load failed: %v", err)
	}
	inserted, err := warehouse.LoadFacts(ctx, pool, empty)
	if err != nil {
		t.Fatalf("Empty fact load failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("Expected 0 inserted for empty batch, got %d", inserted)
	}

	for _, rel := range []string{"dim_city", "dim_customer", "fact_shipment"} {
		if n := countRows(t, ctx, pool, rel); n != 0 {
			t.Errorf("Expected %s emptied by empty batch, got %d rows", rel, n)
		}
	}
}

func TestRunLog(t *testing.T) {
	ctx, pool := setupWarehouse(t, "runlog")

	if err := warehouse.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	rec, err := warehouse.LatestRun(ctx, pool)
	if err != nil {
		t.Fatalf("LatestRun on empty log failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("Expected nil record before any run, got %+v", rec)
	}

	if err := warehouse.LogRun(ctx, pool, "shipments_a.csv", 100, 97, 0); err != nil {
		t.Fatalf("First LogRun failed: %v", err)
	}
	if err := warehouse.LogRun(ctx, pool, "shipments_b.csv", 50, 0, 50); err != nil {
		t.Fatalf("Second LogRun failed: %v", err)
	}

	count, err := warehouse.RunCount(ctx, pool)
	if err != nil {
		t.Fatalf("RunCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 logged runs, got %d", count)
	}

	rec, err = warehouse.LatestRun(ctx, pool)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a latest run record")
	}
	if rec.SourceFile != "shipments_b.csv" {
		t.Errorf("Expected latest run for shipments_b.csv, got %q", rec.SourceFile)
	}
	if rec.RowsRead != 50 || rec.RowsLoaded != 0 || rec.RowsError != 50 {
		t.Errorf("Unexpected latest run counts: %+v", rec)
	}
	if rec.RunAt.IsZero() {
		t.Error("Expected database-assigned run timestamp")
	}
}

func TestBatchIdempotence(t *testing.T) {
	ctx, pool := setupWarehouse(t, "idem")

	table := cleanedTable(
		shipment(1, 100, "Hanoi", "Da Nang"),
		shipment(2, 101, "Hue", "Can Tho"),
		shipment(3, 100, "Da Nang", "Hue"),
	)

	load := func() (cities, customers, facts int64) {
		t.Helper()
		if err := warehouse.LoadDimensions(ctx, pool, table); err != nil {
			t.Fatalf("Dimension load failed: %v", err)
		}
		if _, err := warehouse.LoadFacts(ctx, pool, table); err != nil {
			t.Fatalf("Fact load failed: %v", err)
		}
		return countRows(t, ctx, pool, "dim_city"),
			countRows(t, ctx, pool, "dim_customer"),
			countRows(t, ctx, pool, "fact_shipment")
	}

	c1, cu1, f1 := load()
	c2, cu2, f2 := load()

	if c1 != c2 || cu1 != cu2 || f1 != f2 {
		t.Errorf("Expected identical state after replay: cities %d/%d, customers %d/%d, facts %d/%d",
			c1, c2, cu1, cu2, f1, f2)
	}
	if c1 != 4 || cu1 != 2 || f1 != 3 {
		t.Errorf("Unexpected warehouse state: %d cities, %d customers, %d facts", c1, cu1, f1)
	}
}
