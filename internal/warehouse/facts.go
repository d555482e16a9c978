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
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-etl/internal/etl"
	"github.com/pgEdge/pgedge-etl/internal/logging"
)

// factColumns are the extract columns the fact load requires.
var factColumns = []string{
	etl.ColShipmentID,
	etl.ColCustomerID,
	etl.ColOriginCity,
	etl.ColDestinationCity,
	etl.ColCreatedAt,
}

const insertFactSQL = `
INSERT INTO fact_shipment (
    shipment_id, customer_id, origin_city_id, destination_city_id,
    created_at, delivered_at, status, weight_kg, price,
    delivery_time_hours, is_delayed
)
VALUES (
    $1,
    $2,
    (SELECT city_id FROM dim_city WHERE name = $3 LIMIT 1),
    (SELECT city_id FROM dim_city WHERE name = $4 LIMIT 1),
    $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (shipment_id) DO NOTHING
`

// LoadFacts inserts one fact row per cleaned record, resolving city
// surrogate keys by name against the just-loaded city dimension. A row
// whose shipment_id already exists is skipped silently; that is the
// row-level idempotency guard for re-running a batch against a non-reset
// fact table. The whole batch runs in one transaction, so a failure
// partway through loads nothing.
//
// Returns the number of rows actually inserted (conflict skips excluded).
func LoadFacts(ctx context.Context, pool *pgxpool.Pool, table *etl.Table) (int64, error) {
	if err := EnsureSchema(ctx, pool); err != nil {
		return 0, fmt.Errorf("failed to ensure schema: %w", err)
	}

	if missing := table.MissingColumns(factColumns...); len(missing) > 0 {
		return 0, fmt.Errorf("%w: extract is missing columns [%s]",
			ErrDataContract, strings.Join(missing, ", "))
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin fact load: %w", err)
	}
	defer tx.Rollback(ctx)

	var inserted, skipped int64
	for i, row := range table.Rows {
		if row.ShipmentID == nil {
			return 0, fmt.Errorf("row %d: shipment_id is null", i)
		}
		if row.CustomerID == nil {
			return 0, fmt.Errorf("row %d (shipment %d): customer_id is null",
				i, *row.ShipmentID)
		}

		tag, err := tx.Exec(ctx, insertFactSQL,
			*row.ShipmentID,
			*row.CustomerID,
			row.OriginCity,
			row.DestinationCity,
			row.CreatedAt,
			row.DeliveredAt,
			row.Status,
			finiteOrNull(row.WeightKg),
			finiteOrNull(row.Price),
			finiteOrNull(row.DeliveryTimeHours),
			row.IsDelayed,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert shipment %d: %w",
				*row.ShipmentID, err)
		}

		if tag.RowsAffected() == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit fact load: %w", err)
	}

	logging.Info().
		Int64("inserted", inserted).
		Int64("skipped", skipped).
		Msg("Facts loaded")

	return inserted, nil
}

// finiteOrNull coerces a measure to NULL when it is missing or not a finite
// number, guarding against undefined duration arithmetic upstream.
func finiteOrNull(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
