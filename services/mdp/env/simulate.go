// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package env

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// ErrInvalidPolicy is returned when a policy table does not cover every
// state or names an unknown action.
var ErrInvalidPolicy = errors.New("invalid policy")

// SimulateOptions configures Simulate.
type SimulateOptions struct {
	// Episodes is the number of rollouts. Must be positive.
	Episodes int

	// MaxSteps caps every rollout. Must be positive.
	MaxSteps int

	// Seed makes the run reproducible. Zero draws a random seed, which is
	// reported in the summary.
	Seed uint64

	// Workers bounds concurrent rollouts. Default: GOMAXPROCS.
	Workers int
}

// Summary aggregates the episodes of one Simulate call.
type Summary struct {
	Seed                 uint64    `json:"seed"`
	Episodes             int       `json:"episodes"`
	Completed            int       `json:"completed"`
	MeanSteps            float64   `json:"mean_steps"`
	MeanReturn           float64   `json:"mean_return"`
	StdReturn            float64   `json:"std_return"`
	MeanDiscountedReturn float64   `json:"mean_discounted_return"`
	Returns              []float64 `json:"-"`
}

// Simulate runs opts.Episodes rollouts of the fixed policy on s.
//
// Description:
//
//	Episode i uses its own environment seeded from (Seed, i), so results do
//	not depend on how episodes are scheduled across workers.
//
// Inputs:
//   - ctx: Cancels outstanding episodes.
//   - s: Specification to simulate.
//   - policy: One action index per state.
//   - opts: Episode count, step cap, seed, and concurrency.
//
// Outputs:
//   - Summary: Aggregate statistics.
//   - error: ErrInvalidPolicy, a normalization error, or ctx.Err().
func Simulate(ctx context.Context, s *spec.Specification, policy []int, opts SimulateOptions) (Summary, error) {
	if opts.Episodes <= 0 || opts.MaxSteps <= 0 {
		return Summary{}, fmt.Errorf("episodes and max steps must be positive, got %d and %d", opts.Episodes, opts.MaxSteps)
	}
	if len(policy) != s.NumStates() {
		return Summary{}, fmt.Errorf("%w: %d entries for %d states", ErrInvalidPolicy, len(policy), s.NumStates())
	}
	for state, action := range policy {
		if action < 0 || action >= s.NumActions() {
			return Summary{}, fmt.Errorf("%w: action %d for state %d", ErrInvalidPolicy, action, state)
		}
	}
	if _, err := s.Normalize(); err != nil {
		return Summary{}, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64() | 1
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	episodes := make([]Episode, opts.Episodes)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range episodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := New(s, WithSource(rand.NewPCG(seed, uint64(i))))
			if err != nil {
				return err
			}
			ep, err := e.Rollout(FixedPolicy(policy), opts.MaxSteps)
			if err != nil {
				return err
			}
			episodes[i] = ep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	sum := Summary{Seed: seed, Episodes: opts.Episodes, Returns: make([]float64, len(episodes))}
	discounted := make([]float64, len(episodes))
	var steps float64
	for i, ep := range episodes {
		sum.Returns[i] = ep.Return
		discounted[i] = ep.DiscountedReturn
		steps += float64(ep.Steps)
		if ep.Done {
			sum.Completed++
		}
	}
	sum.MeanReturn, sum.StdReturn = stat.MeanStdDev(sum.Returns, nil)
	if len(episodes) < 2 {
		sum.StdReturn = 0
	}
	sum.MeanDiscountedReturn = stat.Mean(discounted, nil)
	sum.MeanSteps = steps / float64(len(episodes))
	return sum, nil
}
