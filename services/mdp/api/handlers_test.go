// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMDP/services/mdp/catalog"
	"github.com/AleutianAI/AleutianMDP/services/mdp/config"
	store "github.com/AleutianAI/AleutianMDP/services/mdp/storage/badger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const geometricDoc = `{
  "document": {
    "name": "loop",
    "states": [{"name": "s"}],
    "actions": ["go"],
    "rules": ["s & go > reward(1) | s"]
  },
  "max_iterations": 5
}`

func setupTestRouter(t *testing.T, withCatalog bool) *gin.Engine {
	t.Helper()
	var cat *catalog.Catalog
	if withCatalog {
		db, err := store.Open(store.InMemoryConfig())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		cat = catalog.New(db)
	}
	return NewRouter(NewHandlers(config.Default(), cat), 1<<20, nil)
}

func do(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandlers_HandleHealth(t *testing.T) {
	w := do(t, setupTestRouter(t, false), http.MethodGet, "/v1/mdp/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.False(t, resp.Catalog)
}

func TestHandlers_HandleExamples(t *testing.T) {
	w := do(t, setupTestRouter(t, false), http.MethodGet, "/v1/mdp/examples", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ExampleSummary](t, w), 6)
}

func TestHandlers_HandleValidate(t *testing.T) {
	router := setupTestRouter(t, false)

	t.Run("example", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/validate", `{"example": "two-round-dmdp"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[ValidateResponse](t, w)
		assert.Equal(t, "two-round-dmdp", resp.Name)
		assert.Len(t, resp.States, 4)
		assert.True(t, resp.States[3].Terminal)
		assert.Equal(t, []string{"a0", "a1"}, resp.Actions)
		assert.True(t, resp.Deterministic)
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"empty body", `{}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not json", `{`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"two sources", `{"example": "one-round-dmdp", "spec_id": "5f0c7c1e-0f3a-4a8e-9d53-3c0c6f1f2a10"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad spec id", `{"spec_id": "nope"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown example", `{"example": "missing"}`, http.StatusNotFound, "NOT_FOUND"},
		{"catalog disabled", `{"spec_id": "5f0c7c1e-0f3a-4a8e-9d53-3c0c6f1f2a10"}`, http.StatusServiceUnavailable, "CATALOG_DISABLED"},
		{
			"bad rule",
			`{"document": {"states": [{"name": "s"}], "actions": ["a"], "rules": ["s & a > nowhere"]}}`,
			http.StatusBadRequest, "INVALID_SPECIFICATION",
		},
		{
			"incomplete",
			`{"document": {"states": [{"name": "s"}], "actions": ["a"]}}`,
			http.StatusUnprocessableEntity, "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/mdp/validate", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestHandlers_HandleSolve(t *testing.T) {
	router := setupTestRouter(t, false)

	t.Run("value mode", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/solve", `{"example": "one-round-nmdp"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[SolveResponse](t, w)
		assert.Equal(t, "v", resp.Mode)
		assert.Equal(t, []string{"start", "end"}, resp.States)
		assert.InDeltaSlice(t, []float64{2.5, 0}, resp.Values, 1e-9)
		assert.Equal(t, []string{"a0", "a0"}, resp.Policy)
		require.Len(t, resp.Q, 2)
		assert.InDeltaSlice(t, []float64{2.5, 2}, resp.Q[0], 1e-9)
		assert.Positive(t, resp.Iterations)
	})

	t.Run("q mode", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/solve", `{"example": "geometric-series", "mode": "q"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[SolveResponse](t, w)
		assert.Equal(t, "q", resp.Mode)
		assert.InDelta(t, 2.0, resp.Values[0], 1e-3)
	})

	t.Run("no convergence", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/solve", geometricDoc)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, "NO_CONVERGENCE", decode[ErrorResponse](t, w).Code)
	})

	t.Run("bad mode", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/solve", `{"example": "geometric-series", "mode": "lp"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandlers_HandleSimulate(t *testing.T) {
	router := setupTestRouter(t, false)

	t.Run("greedy policy", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/simulate", `{"example": "one-round-dmdp", "episodes": 10, "seed": 3}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[SimulateResponse](t, w)
		assert.Equal(t, []string{"a1", "a0"}, resp.Policy)
		assert.Equal(t, uint64(3), resp.Seed)
		assert.Equal(t, 10, resp.Completed)
		assert.Equal(t, 1.0, resp.MeanReturn)
	})

	t.Run("explicit policy", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/simulate",
			`{"example": "one-round-dmdp", "episodes": 5, "seed": 3, "policy": ["a0", "a0"]}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 0.0, decode[SimulateResponse](t, w).MeanReturn)
	})

	t.Run("unknown action", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/simulate",
			`{"example": "one-round-dmdp", "policy": ["jump", "a0"]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
	})
}

func TestHandlers_Specs(t *testing.T) {
	router := setupTestRouter(t, true)
	doc := `{"name": "loop", "discount": 0.5, "states": [{"name": "s"}], "actions": ["go"], "rules": ["s & go > reward(1) | s"]}`

	w := do(t, router, http.MethodPost, "/v1/mdp/specs", doc)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[PutSpecResponse](t, w).ID
	require.NotEmpty(t, id)

	w = do(t, router, http.MethodGet, "/v1/mdp/specs", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[ListSpecsResponse](t, w)
	require.Len(t, list.Specs, 1)
	assert.Equal(t, "loop", list.Specs[0].Name)

	w = do(t, router, http.MethodGet, "/v1/mdp/specs/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[catalog.Entry](t, w).ID)

	w = do(t, router, http.MethodPost, "/v1/mdp/solve", `{"spec_id": "`+id+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 2.0, decode[SolveResponse](t, w).Values[0], 1e-3)

	w = do(t, router, http.MethodDelete, "/v1/mdp/specs/"+id, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, "/v1/mdp/specs/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	t.Run("invalid document", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/v1/mdp/specs", `{"states": [{"name": "s"}], "actions": ["a"]}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestHandlers_SpecsDisabled(t *testing.T) {
	router := setupTestRouter(t, false)
	w := do(t, router, http.MethodGet, "/v1/mdp/specs", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "CATALOG_DISABLED", decode[ErrorResponse](t, w).Code)
}

func TestRouter_RequestIDAndMetrics(t *testing.T) {
	router := setupTestRouter(t, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/mdp/validate", bytes.NewBufferString(`{"example": "one-round-dmdp"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aleutian_mdp_api_request_duration_seconds")
}

func TestRouter_BodyLimit(t *testing.T) {
	router := NewRouter(NewHandlers(config.Default(), nil), 16, nil)
	w := do(t, router, http.MethodPost, "/v1/mdp/validate", `{"example": "one-round-dmdp"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
