// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves specification validation, solving, simulation, and
// the catalog over HTTP.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianMDP/services/mdp/catalog"
	"github.com/AleutianAI/AleutianMDP/services/mdp/config"
	"github.com/AleutianAI/AleutianMDP/services/mdp/document"
	"github.com/AleutianAI/AleutianMDP/services/mdp/dsl"
	"github.com/AleutianAI/AleutianMDP/services/mdp/env"
	"github.com/AleutianAI/AleutianMDP/services/mdp/examples"
	"github.com/AleutianAI/AleutianMDP/services/mdp/solver"
	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// Package-level error definitions.
var (
	ErrBadRequest      = errors.New("malformed request body")
	ErrNoSource        = errors.New("exactly one of document, example, or spec_id is required")
	ErrCatalogDisabled = errors.New("catalog is not configured")
)

var requestValidate = validator.New()

// Handlers contains the HTTP handlers for the mdp service.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	catalog   *catalog.Catalog
	solverCfg config.SolverConfig
	simCfg    config.SimulationConfig
	serverCfg config.ServerConfig
	solves    singleflight.Group
}

// NewHandlers creates handlers. cat may be nil, which disables the catalog
// routes and spec_id sources.
func NewHandlers(cfg config.Config, cat *catalog.Catalog) *Handlers {
	return &Handlers{
		catalog:   cat,
		solverCfg: cfg.Solver,
		simCfg:    cfg.Simulation,
		serverCfg: cfg.Server,
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// fail writes the error response for err.
func fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "code", code)
	} else {
		logger.Info("request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	})
}

// classify maps domain errors to HTTP status and error code.
func classify(err error) (int, string) {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr), errors.Is(err, ErrBadRequest), errors.Is(err, ErrNoSource),
		errors.Is(err, env.ErrInvalidPolicy), errors.Is(err, solver.ErrUnknownMode):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, dsl.ErrSyntax), errors.Is(err, dsl.ErrParse),
		errors.Is(err, document.ErrInvalidDocument), errors.Is(err, document.ErrUnknownName),
		errors.Is(err, document.ErrEmptyTransition),
		errors.Is(err, spec.ErrInvalidWeight), errors.Is(err, spec.ErrInvalidReward),
		errors.Is(err, spec.ErrInvalidDiscount), errors.Is(err, spec.ErrStateConflict),
		errors.Is(err, spec.ErrTerminalTransition), errors.Is(err, spec.ErrForeignReference):
		return http.StatusBadRequest, "INVALID_SPECIFICATION"
	case errors.Is(err, spec.ErrValidation), errors.Is(err, solver.ErrEmptySpecification):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED"
	case errors.Is(err, solver.ErrNoConvergence):
		return http.StatusUnprocessableEntity, "NO_CONVERGENCE"
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, examples.ErrUnknownExample):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrCatalogDisabled):
		return http.StatusServiceUnavailable, "CATALOG_DISABLED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// bind decodes and validates a JSON body.
func bind(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return requestValidate.Struct(req)
}

// resolve builds the specification a Source selects.
func (h *Handlers) resolve(ctx context.Context, src Source) (*spec.Specification, error) {
	set := 0
	for _, ok := range []bool{src.Document != nil, src.Example != "", src.SpecID != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, ErrNoSource
	}

	switch {
	case src.Document != nil:
		return src.Document.Build(ctx)
	case src.Example != "":
		return examples.Build(src.Example)
	default:
		if h.catalog == nil {
			return nil, ErrCatalogDisabled
		}
		return h.catalog.Load(ctx, src.SpecID)
	}
}

// HandleHealth handles GET /v1/mdp/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Catalog: h.catalog != nil,
	})
}

// HandleExamples handles GET /v1/mdp/examples.
func (h *Handlers) HandleExamples(c *gin.Context) {
	all := examples.Catalog()
	out := make([]ExampleSummary, len(all))
	for i, e := range all {
		out[i] = ExampleSummary{Name: e.Name, Description: e.Description}
	}
	c.JSON(http.StatusOK, out)
}

// HandleValidate handles POST /v1/mdp/validate.
//
// Response:
//
//	200 OK: ValidateResponse
//	400 Bad Request: Malformed request or specification
//	404 Not Found: Unknown example or spec_id
//	422 Unprocessable Entity: Specification fails validation
func (h *Handlers) HandleValidate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleValidate")

	var req ValidateRequest
	if err := bind(c, &req); err != nil {
		fail(c, logger, err)
		return
	}
	s, err := h.resolve(c.Request.Context(), req.Source)
	if err != nil {
		fail(c, logger, err)
		return
	}

	resp := ValidateResponse{
		Name:          s.Name,
		Discount:      s.Discount(),
		Deterministic: s.IsDeterministic(),
		Transitions:   len(s.Transitions()),
	}
	for _, st := range s.States() {
		resp.States = append(resp.States, StateSummary{Name: st.Name, Index: st.Index, Terminal: st.Terminal})
	}
	for _, a := range s.Actions() {
		resp.Actions = append(resp.Actions, a.Name)
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSolve handles POST /v1/mdp/solve.
//
// Description:
//
//	Identical concurrent requests share one solver run. The run is detached
//	from the first caller's cancellation and bounded by the server request
//	timeout instead.
//
// Response:
//
//	200 OK: SolveResponse
//	400 Bad Request: Malformed request or specification
//	422 Unprocessable Entity: Validation failure or no convergence
//	504 Gateway Timeout: Solver exceeded the request timeout
func (h *Handlers) HandleSolve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSolve")

	var req SolveRequest
	if err := bind(c, &req); err != nil {
		fail(c, logger, err)
		return
	}
	if req.Mode == "" {
		req.Mode = h.solverCfg.Mode
	}
	if req.MaxIterations == 0 {
		req.MaxIterations = h.solverCfg.MaxIterations
	}

	key, err := requestKey(req)
	if err != nil {
		fail(c, logger, err)
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	v, err, shared := h.solves.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, h.serverCfg.RequestTimeout)
		defer cancel()
		return h.solve(ctx, req)
	})
	if err != nil {
		fail(c, logger, err)
		return
	}
	logger.Debug("solve complete", "shared", shared)
	c.JSON(http.StatusOK, v)
}

func (h *Handlers) solve(ctx context.Context, req SolveRequest) (*SolveResponse, error) {
	s, err := h.resolve(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	mode, err := solver.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	sv, err := solver.New(s)
	if err != nil {
		return nil, err
	}

	resp := &SolveResponse{Mode: string(mode)}
	opts := solver.Options{
		MaxIterations: req.MaxIterations,
		Tolerance:     solver.AllClose(h.solverCfg.RelTol, h.solverCfg.AbsTol),
		OnIteration:   func(i int, _ float64) { resp.Iterations = i },
	}

	var q *mat.Dense
	switch mode {
	case solver.ModeQ:
		q, err = sv.ComputeQ(ctx, opts)
	default:
		var v *mat.VecDense
		v, err = sv.ComputeV(ctx, opts)
		if err == nil {
			q = sv.QFromV(v)
		}
	}
	if err != nil {
		return nil, err
	}

	states, actions := s.States(), s.Actions()
	for _, st := range states {
		resp.States = append(resp.States, st.Name)
	}
	for _, a := range actions {
		resp.Actions = append(resp.Actions, a.Name)
	}
	resp.Values = sv.VFromQ(q).RawVector().Data
	resp.Q = rows(q)
	for _, a := range solver.GreedyPolicy(q) {
		resp.Policy = append(resp.Policy, actions[a].Name)
	}
	return resp, nil
}

func rows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

// requestKey identifies identical solve requests.
func requestKey(req SolveRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request key: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HandleSimulate handles POST /v1/mdp/simulate.
//
// Description:
//
//	Runs episodes of either the given policy or the greedy policy of the
//	solved specification.
func (h *Handlers) HandleSimulate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSimulate")

	var req SimulateRequest
	if err := bind(c, &req); err != nil {
		fail(c, logger, err)
		return
	}
	if req.Episodes == 0 {
		req.Episodes = h.simCfg.Episodes
	}
	if req.MaxSteps == 0 {
		req.MaxSteps = h.simCfg.MaxSteps
	}
	if req.Seed == 0 {
		req.Seed = h.simCfg.Seed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.serverCfg.RequestTimeout)
	defer cancel()

	s, err := h.resolve(ctx, req.Source)
	if err != nil {
		fail(c, logger, err)
		return
	}
	policy, err := h.policy(ctx, s, req.Policy)
	if err != nil {
		fail(c, logger, err)
		return
	}

	summary, err := env.Simulate(ctx, s, policy, env.SimulateOptions{
		Episodes: req.Episodes,
		MaxSteps: req.MaxSteps,
		Seed:     req.Seed,
	})
	if err != nil {
		fail(c, logger, err)
		return
	}

	resp := SimulateResponse{Summary: summary}
	actions := s.Actions()
	for _, a := range policy {
		resp.Policy = append(resp.Policy, actions[a].Name)
	}
	c.JSON(http.StatusOK, resp)
}

// policy resolves action names, or solves for the greedy policy.
func (h *Handlers) policy(ctx context.Context, s *spec.Specification, names []string) ([]int, error) {
	if len(names) == 0 {
		sv, err := solver.New(s)
		if err != nil {
			return nil, err
		}
		q, err := sv.ComputeQ(ctx, solver.Options{
			MaxIterations: h.solverCfg.MaxIterations,
			Tolerance:     solver.AllClose(h.solverCfg.RelTol, h.solverCfg.AbsTol),
		})
		if err != nil {
			return nil, err
		}
		return solver.GreedyPolicy(q), nil
	}

	policy := make([]int, len(names))
	for i, name := range names {
		a, ok := s.ActionByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown action %q", env.ErrInvalidPolicy, name)
		}
		policy[i] = a.Index
	}
	return policy, nil
}

// HandlePutSpec handles POST /v1/mdp/specs.
func (h *Handlers) HandlePutSpec(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePutSpec")

	if h.catalog == nil {
		fail(c, logger, ErrCatalogDisabled)
		return
	}
	var doc document.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		fail(c, logger, fmt.Errorf("%w: %v", document.ErrInvalidDocument, err))
		return
	}
	id, err := h.catalog.Put(c.Request.Context(), &doc)
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, PutSpecResponse{ID: id})
}

// HandleListSpecs handles GET /v1/mdp/specs.
func (h *Handlers) HandleListSpecs(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListSpecs")

	if h.catalog == nil {
		fail(c, logger, ErrCatalogDisabled)
		return
	}
	entries, err := h.catalog.List(c.Request.Context())
	if err != nil {
		fail(c, logger, err)
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	c.JSON(http.StatusOK, ListSpecsResponse{Specs: entries})
}

// HandleGetSpec handles GET /v1/mdp/specs/:id.
func (h *Handlers) HandleGetSpec(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetSpec")

	if h.catalog == nil {
		fail(c, logger, ErrCatalogDisabled)
		return
	}
	entry, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// HandleDeleteSpec handles DELETE /v1/mdp/specs/:id.
func (h *Handlers) HandleDeleteSpec(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteSpec")

	if h.catalog == nil {
		fail(c, logger, ErrCatalogDisabled)
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
