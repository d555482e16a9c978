//-------------------------------------------------------------------------
//
// pgEdge ETL Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-etl.
// Configuration is loaded from config files and CLI flags; CLI flags take
// precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for pgedge-etl.
type Config struct {
	// Connection is the PostgreSQL connection string for the warehouse.
	Connection string `mapstructure:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// RawDir is where generated raw extracts are written.
	RawDir string `mapstructure:"raw_dir"`

	// ProcessedDir is where cleaned copies of extracts are persisted.
	ProcessedDir string `mapstructure:"processed_dir"`

	// Generate holds configuration for synthetic extract generation.
	Generate GenerateConfig `mapstructure:"generate"`

	// Serve holds configuration for the HTTP API.
	Serve ServeConfig `mapstructure:"serve"`
}

// GenerateConfig holds configuration for the synthetic extract generator.
type GenerateConfig struct {
	// Rows is the number of shipment rows per generated extract.
	Rows int `mapstructure:"rows"`

	// Cities is the size of the generator's city pool.
	Cities int `mapstructure:"cities"`

	// Customers is the size of the customer id space.
	Customers int `mapstructure:"customers"`
}

// ServeConfig holds configuration for the HTTP API server.
type ServeConfig struct {
	// Listen is the address the API server binds to.
	Listen string `mapstructure:"listen"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		RawDir:       filepath.Join("data", "raw"),
		ProcessedDir: filepath.Join("data", "processed"),
		Generate: GenerateConfig{
			Rows:      500,
			Cities:    5,
			Customers: 100,
		},
		Serve: ServeConfig{
			Listen: ":8080",
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-etl.yaml
// 3. ~/.config/pgedge-etl/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-etl")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-etl"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidateGenerate checks configuration required for extract generation.
func (c *Config) ValidateGenerate() error {
	if c.Generate.Rows < 1 {
		return fmt.Errorf("generate rows must be at least 1")
	}
	if c.Generate.Cities < 2 {
		return fmt.Errorf("generate cities must be at least 2")
	}
	if c.Generate.Customers < 1 {
		return fmt.Errorf("generate customers must be at least 1")
	}
	return nil
}

// ValidateServe checks configuration required for the serve command.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Serve.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}
