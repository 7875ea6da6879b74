// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "v", cfg.Solver.Mode)
	assert.Equal(t, 100, cfg.Solver.MaxIterations)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8088", cfg.Server.Addr())
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
solver:
  mode: q
  max_iterations: 500
catalog:
  in_memory: true
  path: ""
server:
  port: 9000
  request_timeout: 5s
`)
	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "q", cfg.Solver.Mode)
	assert.Equal(t, 500, cfg.Solver.MaxIterations)
	assert.Equal(t, 1e-5, cfg.Solver.RelTol, "unset fields keep defaults")
	assert.True(t, cfg.Catalog.InMemory)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "solver:\n  mode: q\n")
	cfg, err := load(path, env(map[string]string{
		"MDP_SOLVER_MODE":       "v",
		"MDP_SERVER_PORT":       "7000",
		"MDP_SIMULATION_SEED":   "42",
		"MDP_LOG_LEVEL":         "debug",
		"MDP_CATALOG_IN_MEMORY": "true",
		"OTEL_TRACES_EXPORTER":  "stdout",
	}))
	require.NoError(t, err)

	assert.Equal(t, "v", cfg.Solver.Mode)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, uint64(42), cfg.Simulation.Seed)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Catalog.InMemory)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "server:\n  port: 9100\n")
	cfg, err := load("", env(map[string]string{EnvConfigPath: path}))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"bad mode", "solver:\n  mode: lp\n", nil},
		{"zero iterations", "solver:\n  max_iterations: 0\n", nil},
		{"port out of range", "server:\n  port: 70000\n", nil},
		{"bad log level", "logging:\n  level: loud\n", nil},
		{"bad exporter", "telemetry:\n  trace_exporter: zipkin\n", nil},
		{"discard ratio", "catalog:\n  gc_discard_ratio: 1\n", nil},
		{"malformed env int", "", map[string]string{"MDP_SERVER_PORT": "eighty"}},
		{"malformed env bool", "", map[string]string{"MDP_LOG_JSON": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(writeFile(t, tt.body), env(tt.env))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
		assert.Error(t, err)
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := load(writeFile(t, "solver: ["), env(nil))
		assert.Error(t, err)
	})
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Solver.Mode = "q"
	require.NoError(t, Write(path, cfg))

	loaded, err := load(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "q", loaded.Solver.Mode)
	assert.Equal(t, cfg.Catalog, loaded.Catalog)
}
