//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package api exposes the pipeline over a thin HTTP wrapper. Handlers only
// map requests and responses; all pipeline semantics live in the etl,
// pipeline, and warehouse packages.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-etl/internal/config"
	"github.com/pgEdge/pgedge-etl/internal/datagen"
	"github.com/pgEdge/pgedge-etl/internal/etl"
	"github.com/pgEdge/pgedge-etl/internal/logging"
	"github.com/pgEdge/pgedge-etl/internal/pipeline"
	"github.com/pgEdge/pgedge-etl/internal/warehouse"
)

// Server serves the pipeline API. The pool may be nil when the warehouse
// was unreachable at startup; endpoints that need it degrade accordingly.
type Server struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

// NewServer creates an API server over the given warehouse pool.
func NewServer(cfg *config.Config, pool *pgxpool.Pool) *Server {
	return &Server{cfg: cfg, pool: pool}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /etl/runs/latest", s.handleLatestRun)
	mux.HandleFunc("POST /etl/run", s.handleRun)
	mux.HandleFunc("GET /etl/quality/sample", s.handleQualitySample)
	return mux
}

// ListenAndServe blocks serving the API until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Serve.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // a run transforms and loads a whole batch
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info().Str("listen", s.cfg.Serve.Listen).Msg("API server listening")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.pool == nil || s.pool.Ping(r.Context()) != nil {
		status = "db_unreachable"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}

	rec, err := warehouse.LatestRun(r.Context(), s.pool)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to query latest run")
		writeError(w, http.StatusInternalServerError, "failed to query latest run")
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "no runs yet"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// runResponse is the payload for a completed pipeline run.
type runResponse struct {
	Message string            `json:"message"`
	Summary *pipeline.Summary `json:"summary"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	numRows, err := numRowsParam(r, s.cfg.Generate.Rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gen := datagen.NewShipmentGenerator(s.cfg.RawDir, s.cfg.Generate.Cities, s.cfg.Generate.Customers)
	csvPath, err := gen.WriteCSV(numRows)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to generate extract")
		writeError(w, http.StatusInternalServerError, "failed to generate extract")
		return
	}

	p := &pipeline.Pipeline{ProcessedDir: s.cfg.ProcessedDir}
	summary, _, loadErr := p.Run(r.Context(), s.pool, csvPath)
	if summary == nil {
		logging.Error().Err(loadErr).Msg("Pipeline run failed")
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}

	message := "ETL run completed"
	if loadErr != nil {
		logging.Error().Err(loadErr).Msg("Load failed")
		message = "ETL run completed with load failure"
	}
	writeJSON(w, http.StatusOK, runResponse{Message: message, Summary: summary})
}

func (s *Server) handleQualitySample(w http.ResponseWriter, r *http.Request) {
	numRows, err := numRowsParam(r, s.cfg.Generate.Rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gen := datagen.NewShipmentGenerator(s.cfg.RawDir, s.cfg.Generate.Cities, s.cfg.Generate.Customers)
	csvPath, err := gen.WriteCSV(numRows)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to generate extract")
		writeError(w, http.StatusInternalServerError, "failed to generate extract")
		return
	}

	transformer := &etl.Transformer{ProcessedDir: s.cfg.ProcessedDir}
	table, err := transformer.TransformFile(csvPath)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to transform extract")
		writeError(w, http.StatusInternalServerError, "failed to transform extract")
		return
	}

	writeJSON(w, http.StatusOK, etl.Analyze(table))
}

// numRowsParam parses the optional num_rows query parameter.
func numRowsParam(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("num_rows")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("num_rows must be a positive integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
