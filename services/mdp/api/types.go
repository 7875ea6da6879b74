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
	"github.com/AleutianAI/AleutianMDP/services/mdp/catalog"
	"github.com/AleutianAI/AleutianMDP/services/mdp/document"
	"github.com/AleutianAI/AleutianMDP/services/mdp/env"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// RequestID echoes X-Request-ID.
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Catalog bool   `json:"catalog"`
}

// ExampleSummary describes one canned specification.
type ExampleSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Source selects the specification a request operates on. Exactly one
// field must be set.
type Source struct {
	// Document is an inline specification document.
	Document *document.Document `json:"document,omitempty" validate:"-"`

	// Example names a canned specification.
	Example string `json:"example,omitempty" validate:"omitempty,max=64"`

	// SpecID references a catalog entry.
	SpecID string `json:"spec_id,omitempty" validate:"omitempty,uuid"`
}

// ValidateRequest is the body of POST /validate.
type ValidateRequest struct {
	Source
}

// StateSummary is one state in a ValidateResponse.
type StateSummary struct {
	Name     string `json:"name"`
	Index    int    `json:"index"`
	Terminal bool   `json:"terminal"`
}

// ValidateResponse summarizes a valid specification.
type ValidateResponse struct {
	Name          string         `json:"name,omitempty"`
	States        []StateSummary `json:"states"`
	Actions       []string       `json:"actions"`
	Discount      float64        `json:"discount"`
	Deterministic bool           `json:"deterministic"`
	Transitions   int            `json:"transitions"`
}

// SolveRequest is the body of POST /solve.
type SolveRequest struct {
	Source

	// Mode is "v" or "q". Default: the server's solver mode.
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=v q"`

	// MaxIterations overrides the server default.
	MaxIterations int `json:"max_iterations,omitempty" validate:"omitempty,gte=1,lte=100000"`
}

// SolveResponse carries the optimal values and the greedy policy.
type SolveResponse struct {
	Mode       string      `json:"mode"`
	Iterations int         `json:"iterations"`
	States     []string    `json:"states"`
	Actions    []string    `json:"actions"`
	Values     []float64   `json:"values"`
	Q          [][]float64 `json:"q"`
	Policy     []string    `json:"policy"`
}

// SimulateRequest is the body of POST /simulate.
type SimulateRequest struct {
	Source

	// Episodes defaults to the server's simulation episodes.
	Episodes int `json:"episodes,omitempty" validate:"omitempty,gte=1,lte=100000"`

	// MaxSteps defaults to the server's simulation max steps.
	MaxSteps int `json:"max_steps,omitempty" validate:"omitempty,gte=1,lte=1000000"`

	// Seed makes the run reproducible. Zero draws a random seed.
	Seed uint64 `json:"seed,omitempty"`

	// Policy is one action name per state. Empty means the greedy policy
	// of the solved specification.
	Policy []string `json:"policy,omitempty"`
}

// SimulateResponse wraps the episode summary.
type SimulateResponse struct {
	env.Summary
	Policy []string `json:"policy"`
}

// PutSpecResponse is returned by POST /specs.
type PutSpecResponse struct {
	ID string `json:"id"`
}

// ListSpecsResponse is returned by GET /specs.
type ListSpecsResponse struct {
	Specs []catalog.Entry `json:"specs"`
}
