//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package warehouse implements the load side of the shipment pipeline: the
// star-schema DDL, the full-reset dimensional load, the conflict-skipping
// fact load, and the append-only run log.
package warehouse

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema SQL for the shipment star schema: two dimensions, one fact, and
// the run log.
const createSchemaSQL = `
-- City Dimension
CREATE TABLE IF NOT EXISTS dim_city (
    city_id SERIAL PRIMARY KEY,
    name    TEXT NOT NULL UNIQUE
);

-- Customer Dimension (natural key, no surrogate)
CREATE TABLE IF NOT EXISTS dim_customer (
    customer_id BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    segment     TEXT NOT NULL,
    created_at  TIMESTAMPTZ
);

-- Shipment Fact
CREATE TABLE IF NOT EXISTS fact_shipment (
    shipment_id         BIGINT PRIMARY KEY,
    customer_id         BIGINT REFERENCES dim_customer(customer_id),
    origin_city_id      INTEGER REFERENCES dim_city(city_id),
    destination_city_id INTEGER REFERENCES dim_city(city_id),
    created_at          TIMESTAMPTZ NOT NULL,
    delivered_at        TIMESTAMPTZ,
    status              TEXT,
    weight_kg           DOUBLE PRECISION,
    price               DOUBLE PRECISION,
    delivery_time_hours DOUBLE PRECISION,
    is_delayed          BOOLEAN
);

-- Run Log (append-only audit trail, one row per pipeline execution)
CREATE TABLE IF NOT EXISTS etl_log (
    id          BIGSERIAL PRIMARY KEY,
    source_file TEXT NOT NULL,
    rows_read   INTEGER NOT NULL,
    rows_loaded INTEGER NOT NULL,
    rows_error  INTEGER NOT NULL,
    run_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fact_shipment_customer ON fact_shipment(customer_id);
CREATE INDEX IF NOT EXISTS idx_fact_shipment_created ON fact_shipment(created_at);
CREATE INDEX IF NOT EXISTS idx_etl_log_run_at ON etl_log(run_at);
`

const dropSchemaSQL = `
DROP TABLE IF EXISTS fact_shipment CASCADE;
DROP TABLE IF EXISTS dim_customer CASCADE;
DROP TABLE IF EXISTS dim_city CASCADE;
DROP TABLE IF EXISTS etl_log CASCADE;
`

// EnsureSchema creates the warehouse relations if they do not exist. Safe
// to call before every write; it is a no-op once the schema is in place.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops the warehouse relations, run log included.
func DropSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, dropSchemaSQL)
	return err
}
