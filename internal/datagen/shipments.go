//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pgEdge/pgedge-etl/internal/etl"
	"github.com/pgEdge/pgedge-etl/internal/logging"
)

const (
	// deliveredRatio is the fraction of shipments generated as delivered.
	deliveredRatio = 0.7

	// Transit time bounds for delivered shipments, in hours. The upper
	// bound exceeds the delay threshold so batches contain delayed rows.
	minTransitHours = 12
	maxTransitHours = 96

	// Weight bounds in kilograms.
	minWeightKg = 0.2
	maxWeightKg = 20.0

	// Price model: base fare plus a per-kilogram rate.
	basePrice    = 5000.0
	minRatePerKg = 3000.0
	maxRatePerKg = 8000.0

	// historyDays is how far back created_at timestamps reach.
	historyDays = 60
)

// nonDeliveredStatuses are the candidate statuses for shipments without a
// delivery timestamp.
var nonDeliveredStatuses = []string{
	etl.StatusCreated,
	etl.StatusInTransit,
	etl.StatusCancelled,
}

// ShipmentGenerator produces raw shipment extracts. Cities are drawn from
// a fixed pool so one batch reuses city values and the city dimension gets
// realistic cardinality.
type ShipmentGenerator struct {
	// RawDir is the directory extracts are written to.
	RawDir string

	// Customers is the size of the customer id space.
	Customers int

	faker  *Faker
	cities []string
}

// NewShipmentGenerator creates a generator writing extracts to rawDir,
// with cityPool distinct cities and customer ids in [1, customers].
func NewShipmentGenerator(rawDir string, cityPool, customers int) *ShipmentGenerator {
	return newShipmentGenerator(rawDir, cityPool, customers, NewFaker())
}

// NewShipmentGeneratorWithSeed is NewShipmentGenerator with a fixed seed
// for reproducible extracts.
func NewShipmentGeneratorWithSeed(rawDir string, cityPool, customers int, seed uint64) *ShipmentGenerator {
	return newShipmentGenerator(rawDir, cityPool, customers, NewFakerWithSeed(seed))
}

func newShipmentGenerator(rawDir string, cityPool, customers int, faker *Faker) *ShipmentGenerator {
	if cityPool < 2 {
		cityPool = 2
	}
	if customers < 1 {
		customers = 1
	}

	// Build the pool up front; gofakeit can repeat city names, so keep
	// drawing until the pool holds distinct values.
	seen := make(map[string]struct{}, cityPool)
	cities := make([]string, 0, cityPool)
	for len(cities) < cityPool {
		city := faker.City()
		if _, ok := seen[city]; ok {
			continue
		}
		seen[city] = struct{}{}
		cities = append(cities, city)
	}

	return &ShipmentGenerator{
		RawDir:    rawDir,
		Customers: customers,
		faker:     faker,
		cities:    cities,
	}
}

// Cities returns the generator's city pool.
func (g *ShipmentGenerator) Cities() []string {
	return g.cities
}

// WriteCSV generates numRows shipment records and writes them as a raw
// extract named shipments_<timestamp>.csv under RawDir. Returns the path
// of the written file.
func (g *ShipmentGenerator) WriteCSV(numRows int) (string, error) {
	if err := os.MkdirAll(g.RawDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create raw dir: %w", err)
	}

	name := fmt.Sprintf("shipments_%s.csv", time.Now().Format("20060102_150405"))
	path := filepath.Join(g.RawDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create extract: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(etl.RawHeader); err != nil {
		return "", fmt.Errorf("failed to write extract header: %w", err)
	}

	end := time.Now().UTC().Truncate(time.Second)
	start := end.AddDate(0, 0, -historyDays)

	for i := 0; i < numRows; i++ {
		if err := w.Write(g.record(int64(i+1), start, end)); err != nil {
			return "", fmt.Errorf("failed to write extract row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush extract: %w", err)
	}

	logging.Info().
		Str("path", path).
		Int("rows", numRows).
		Msg("Generated raw extract")

	return path, nil
}

// record builds one CSV record. Shipment ids are sequential within the
// batch; origin and destination always differ.
func (g *ShipmentGenerator) record(shipmentID int64, start, end time.Time) []string {
	origin := Choose(g.faker, g.cities)
	dest := origin
	for dest == origin {
		dest = Choose(g.faker, g.cities)
	}

	createdAt := g.faker.DateRange(start, end).Truncate(time.Second)

	var deliveredAt, status string
	if g.faker.Chance(deliveredRatio) {
		transit := time.Duration(g.faker.Int(minTransitHours, maxTransitHours)) * time.Hour
		deliveredAt = createdAt.Add(transit).Format(time.RFC3339)
		status = etl.StatusDelivered
	} else {
		status = Choose(g.faker, nonDeliveredStatuses)
	}

	weight := round2(g.faker.Float64(minWeightKg, maxWeightKg))
	price := round2(basePrice + weight*g.faker.Float64(minRatePerKg, maxRatePerKg))

	return []string{
		strconv.FormatInt(shipmentID, 10),
		strconv.Itoa(g.faker.Int(1, g.Customers)),
		origin,
		dest,
		createdAt.Format(time.RFC3339),
		deliveredAt,
		status,
		strconv.FormatFloat(weight, 'f', 2, 64),
		strconv.FormatFloat(price, 'f', 2, 64),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
