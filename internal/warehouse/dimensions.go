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
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-etl/internal/etl"
	"github.com/pgEdge/pgedge-etl/internal/logging"
)

// ErrDataContract marks a batch that does not satisfy the loader's input
// contract (required columns absent from the extract header).
var ErrDataContract = errors.New("data contract violation")

// CustomerSegment is the placeholder segment assigned to every synthesized
// customer row.
const CustomerSegment = "STANDARD"

// dimensionColumns are the extract columns the dimensional load requires.
var dimensionColumns = []string{
	etl.ColShipmentID,
	etl.ColCustomerID,
	etl.ColOriginCity,
	etl.ColDestinationCity,
	etl.ColCreatedAt,
}

// CustomerName synthesizes the display name for a customer; customer names
// are not sourced from raw data.
func CustomerName(customerID int64) string {
	return fmt.Sprintf("Customer %d", customerID)
}

// LoadDimensions resets and repopulates both dimensions from the batch's
// distinct values. The fact relation is truncated first so every run's
// dimensions reflect exactly that run's batch. The whole reset-and-insert
// runs in one transaction.
func LoadDimensions(ctx context.Context, pool *pgxpool.Pool, table *etl.Table) error {
	if err := EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	if missing := table.MissingColumns(dimensionColumns...); len(missing) > 0 {
		return fmt.Errorf("%w: extract is missing columns [%s]",
			ErrDataContract, strings.Join(missing, ", "))
	}

	cities := distinctCities(table)
	customers := distinctCustomers(table)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin dimension load: %w", err)
	}
	defer tx.Rollback(ctx)

	// Full reset: facts first so the dimension deletes never trip the
	// foreign keys.
	for _, rel := range []string{"fact_shipment", "dim_city", "dim_customer"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+rel); err != nil {
			return fmt.Errorf("failed to reset %s: %w", rel, err)
		}
	}

	// Sorted insert order keeps surrogate key assignment deterministic
	// for a given batch.
	for _, name := range cities {
		if _, err := tx.Exec(ctx,
			`INSERT INTO dim_city (name) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("failed to insert city %q: %w", name, err)
		}
	}

	for _, c := range customers {
		if _, err := tx.Exec(ctx, `
            INSERT INTO dim_customer (customer_id, name, segment, created_at)
            VALUES ($1, $2, $3, $4)
        `, c.id, CustomerName(c.id), CustomerSegment, c.firstSeen); err != nil {
			return fmt.Errorf("failed to insert customer %d: %w", c.id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dimension load: %w", err)
	}

	logging.Info().
		Int("cities", len(cities)).
		Int("customers", len(customers)).
		Msg("Dimensions loaded")

	return nil
}

// distinctCities returns the sorted union of origin and destination city
// names observed in the batch.
func distinctCities(table *etl.Table) []string {
	seen := make(map[string]struct{})
	for _, row := range table.Rows {
		if row.OriginCity != "" {
			seen[row.OriginCity] = struct{}{}
		}
		if row.DestinationCity != "" {
			seen[row.DestinationCity] = struct{}{}
		}
	}

	cities := make([]string, 0, len(seen))
	for name := range seen {
		cities = append(cities, name)
	}
	sort.Strings(cities)
	return cities
}

type customerRow struct {
	id        int64
	firstSeen *time.Time
}

// distinctCustomers returns one row per customer with the earliest
// created_at observed for that customer in the batch.
func distinctCustomers(table *etl.Table) []customerRow {
	earliest := make(map[int64]*time.Time)
	for _, row := range table.Rows {
		if row.CustomerID == nil {
			continue
		}
		id := *row.CustomerID
		current, ok := earliest[id]
		if !ok || (row.CreatedAt != nil && (current == nil || row.CreatedAt.Before(*current))) {
			earliest[id] = row.CreatedAt
		}
	}

	customers := make([]customerRow, 0, len(earliest))
	for id, firstSeen := range earliest {
		customers = append(customers, customerRow{id: id, firstSeen: firstSeen})
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].id < customers[j].id })
	return customers
}
