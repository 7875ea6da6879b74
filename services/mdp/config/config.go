// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the mdp configuration.
//
// Values are layered: built-in defaults, then the YAML file, then MDP_*
// environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianMDP/services/mdp/telemetry"
)

// EnvConfigPath names an explicit config file.
const EnvConfigPath = "MDP_CONFIG"

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full mdp configuration.
type Config struct {
	Solver     SolverConfig     `yaml:"solver"`
	Simulation SimulationConfig `yaml:"simulation"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
}

// SolverConfig holds value iteration defaults.
type SolverConfig struct {
	Mode          string  `yaml:"mode" validate:"oneof=v q"`
	MaxIterations int     `yaml:"max_iterations" validate:"gte=1"`
	RelTol        float64 `yaml:"rel_tol" validate:"gte=0"`
	AbsTol        float64 `yaml:"abs_tol" validate:"gte=0"`
}

// SimulationConfig holds rollout defaults. A zero Seed draws a random one.
type SimulationConfig struct {
	Episodes int    `yaml:"episodes" validate:"gte=1"`
	MaxSteps int    `yaml:"max_steps" validate:"gte=1"`
	Seed     uint64 `yaml:"seed"`
}

// CatalogConfig locates the BadgerDB catalog.
type CatalogConfig struct {
	Path           string        `yaml:"path" validate:"required_without=InMemory"`
	InMemory       bool          `yaml:"in_memory"`
	GCInterval     time.Duration `yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// ServerConfig configures `mdp serve`.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"gte=1,lte=65535"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" validate:"gte=1024"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Solver: SolverConfig{
			Mode:          "v",
			MaxIterations: 100,
			RelTol:        1e-5,
			AbsTol:        1e-8,
		},
		Simulation: SimulationConfig{
			Episodes: 100,
			MaxSteps: 1000,
		},
		Catalog: CatalogConfig{
			Path:           filepath.Join(home, ".mdp", "catalog"),
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8088,
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads path (or $MDP_CONFIG, or ~/.mdp/config.yaml when present),
// applies MDP_* overrides from the environment, and validates the result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path == "" {
		path = defaultPath(lookup)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read the config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultPath(lookup func(string) (string, bool)) string {
	if p, ok := lookup(EnvConfigPath); ok && p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".mdp", "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

var configValidate = validator.New()

// Validate checks every section.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// applyEnv overrides fields from the environment. Unset variables leave
// the field alone; malformed numbers are errors.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("MDP_SOLVER_MODE", &cfg.Solver.Mode)
	integer("MDP_SOLVER_MAX_ITERATIONS", &cfg.Solver.MaxIterations)
	integer("MDP_SIMULATION_EPISODES", &cfg.Simulation.Episodes)
	integer("MDP_SIMULATION_MAX_STEPS", &cfg.Simulation.MaxSteps)
	if v, ok := lookup("MDP_SIMULATION_SEED"); ok && v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MDP_SIMULATION_SEED: %w", err))
		} else {
			cfg.Simulation.Seed = seed
		}
	}
	str("MDP_CATALOG_PATH", &cfg.Catalog.Path)
	boolean("MDP_CATALOG_IN_MEMORY", &cfg.Catalog.InMemory)
	str("MDP_SERVER_HOST", &cfg.Server.Host)
	integer("MDP_SERVER_PORT", &cfg.Server.Port)
	str("MDP_LOG_LEVEL", &cfg.Logging.Level)
	str("MDP_LOG_DIR", &cfg.Logging.Dir)
	boolean("MDP_LOG_JSON", &cfg.Logging.JSON)
	str("MDP_ENV", &cfg.Telemetry.Environment)
	str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("OTEL_METRICS_EXPORTER", &cfg.Telemetry.MetricExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Write saves cfg as YAML, creating the parent directory.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
