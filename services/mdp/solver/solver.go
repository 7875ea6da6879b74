// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package solver computes optimal value functions of MDP specifications by
// synchronous value iteration over dense tables.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// DefaultMaxIterations is the iteration budget when Options leaves it unset.
const DefaultMaxIterations = 100

// Mode selects which table is iterated.
type Mode string

const (
	// ModeV iterates the state value vector, starting from zeros.
	ModeV Mode = "v"

	// ModeQ iterates the state-action table, starting from expected rewards.
	ModeQ Mode = "q"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeV, ModeQ:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Options configures one fixed-point run.
type Options struct {
	// MaxIterations caps the iteration count. Default: 100.
	MaxIterations int

	// Tolerance decides convergence. Default: AllClose(1e-5, 1e-8).
	Tolerance Tolerance

	// OnIteration, if set, is called after every iteration with the
	// 1-based iteration number and the largest element change.
	OnIteration func(iteration int, delta float64)
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Tolerance == nil {
		o.Tolerance = AllClose(DefaultRelTol, DefaultAbsTol)
	}
	return o
}

// -----------------------------------------------------------------------------
// Solver
// -----------------------------------------------------------------------------

// Solver holds the dense tables of one normalized specification.
//
// Description:
//
//	next[a] is an S x S matrix with next[a][s][s'] = P(s' | s, a). Terminal
//	states get a self-loop with probability 1. rewards is S x A with the
//	expected reward of every pair. Tables are built once in New and never
//	modified, so a Solver may be shared.
//
// Thread Safety: Safe for concurrent use.
type Solver struct {
	specID     string
	discount   float64
	numStates  int
	numActions int
	next       []*mat.Dense
	rewards    *mat.Dense
	logger     *slog.Logger
}

// New normalizes s and builds the solver tables.
//
// Outputs:
//   - *Solver: Ready to iterate.
//   - error: Normalization errors from s, or ErrEmptySpecification.
func New(s *spec.Specification) (*Solver, error) {
	n, err := s.Normalize()
	if err != nil {
		return nil, err
	}
	solver, err := FromNormalized(n)
	if err != nil {
		return nil, err
	}
	solver.specID = s.ID
	return solver, nil
}

// FromNormalized builds the solver tables from an already normalized view.
func FromNormalized(n *spec.Normalized) (*Solver, error) {
	numStates, numActions := len(n.States), len(n.Actions)
	if numStates == 0 || numActions == 0 {
		return nil, ErrEmptySpecification
	}

	next := make([]*mat.Dense, numActions)
	for a := range next {
		next[a] = mat.NewDense(numStates, numStates, nil)
	}
	rewards := mat.NewDense(numStates, numActions, nil)

	for _, state := range n.States {
		for _, action := range n.Actions {
			s, a := state.Index, action.Index
			if state.Terminal {
				next[a].Set(s, s, 1)
				continue
			}
			for _, c := range n.NextStates(s, a) {
				next[a].Set(s, c.Outcome.Index, c.Probability)
			}
			rewards.Set(s, a, n.ExpectedReward(s, a))
		}
	}

	return &Solver{
		discount:   n.Discount,
		numStates:  numStates,
		numActions: numActions,
		next:       next,
		rewards:    rewards,
		logger:     slog.Default().With(slog.String("component", "mdp_solver")),
	}, nil
}

// Dims returns the number of states and actions.
func (s *Solver) Dims() (states, actions int) {
	return s.numStates, s.numActions
}

// Discount returns the discount factor.
func (s *Solver) Discount() float64 { return s.discount }

// Transition returns P(next | state, action).
func (s *Solver) Transition(state, action, next int) float64 {
	return s.next[action].At(state, next)
}

// ExpectedRewards returns a copy of the S x A expected reward table.
func (s *Solver) ExpectedRewards() *mat.Dense {
	return mat.DenseCopyOf(s.rewards)
}

// QFromV computes q = R + discount * P . v.
func (s *Solver) QFromV(v mat.Vector) *mat.Dense {
	q := mat.NewDense(s.numStates, s.numActions, nil)
	var col mat.VecDense
	for a := 0; a < s.numActions; a++ {
		col.MulVec(s.next[a], v)
		for st := 0; st < s.numStates; st++ {
			q.Set(st, a, s.rewards.At(st, a)+s.discount*col.AtVec(st))
		}
	}
	return q
}

// VFromQ computes v[s] = max over actions of q[s].
func (s *Solver) VFromQ(q mat.Matrix) *mat.VecDense {
	rows, cols := q.Dims()
	v := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for st := 0; st < rows; st++ {
		mat.Row(row, st, q)
		v.SetVec(st, floats.Max(row))
	}
	return v
}

// ComputeV iterates v' = VFromQ(QFromV(v)) from the zero vector.
//
// Description:
//
//	Runs plain synchronous Bellman iteration until opts.Tolerance holds
//	between successive iterates. ctx is checked between iterations.
//
// Inputs:
//   - ctx: Context for cancellation and tracing. Must not be nil.
//   - opts: Iteration budget, tolerance, and progress callback.
//
// Outputs:
//   - *mat.VecDense: The converged value vector.
//   - error: *ConvergenceError, ctx.Err(), or ErrNilContext.
func (s *Solver) ComputeV(ctx context.Context, opts Options) (*mat.VecDense, error) {
	initial := mat.NewVecDense(s.numStates, nil)
	return run(ctx, s, ModeV, initial, func(v *mat.VecDense) *mat.VecDense {
		return s.VFromQ(s.QFromV(v))
	}, opts)
}

// ComputeQ iterates q' = QFromV(VFromQ(q)) from the expected rewards.
func (s *Solver) ComputeQ(ctx context.Context, opts Options) (*mat.Dense, error) {
	initial := mat.DenseCopyOf(s.rewards)
	return run(ctx, s, ModeQ, initial, func(q *mat.Dense) *mat.Dense {
		return s.QFromV(s.VFromQ(q))
	}, opts)
}

// run is the shared fixed-point loop.
func run[M mat.Matrix](ctx context.Context, s *Solver, mode Mode, initial M, step func(M) M, opts Options) (M, error) {
	var zero M
	if ctx == nil {
		return zero, ErrNilContext
	}
	opts = opts.withDefaults()

	ctx, span := otel.Tracer("mdp_solver").Start(ctx, "solver.compute_"+string(mode),
		trace.WithAttributes(
			attribute.String("spec_id", s.specID),
			attribute.Int("states", s.numStates),
			attribute.Int("actions", s.numActions),
			attribute.Float64("discount", s.discount),
			attribute.Int("max_iterations", opts.MaxIterations),
		),
	)
	defer span.End()
	start := time.Now()

	value := initial
	iterations := 0
	var err error
	for iterations < opts.MaxIterations {
		if err = ctx.Err(); err != nil {
			break
		}
		next := step(value)
		iterations++
		if opts.OnIteration != nil {
			opts.OnIteration(iterations, maxAbsDiff(value, next))
		}
		if opts.Tolerance(value, next) {
			s.finish(span, mode, "converged", iterations, start, nil)
			return next, nil
		}
		value = next
	}

	status := "cancelled"
	if err == nil {
		status = "diverged"
		err = &ConvergenceError{Iterations: iterations, Last: value}
	}
	s.finish(span, mode, status, iterations, start, err)
	return zero, err
}

func (s *Solver) finish(span trace.Span, mode Mode, status string, iterations int, start time.Time, err error) {
	duration := time.Since(start)
	solvesTotal.WithLabelValues(string(mode), status).Inc()
	iterationsHistogram.WithLabelValues(string(mode)).Observe(float64(iterations))
	solveDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())

	span.SetAttributes(
		attribute.Int("iterations", iterations),
		attribute.String("status", status),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			level = slog.LevelDebug
		}
		s.logger.Log(context.Background(), level, "value iteration stopped",
			slog.String("mode", string(mode)),
			slog.String("status", status),
			slog.Int("iterations", iterations),
			slog.Duration("duration", duration),
		)
		return
	}

	s.logger.Debug("value iteration converged",
		slog.String("mode", string(mode)),
		slog.Int("iterations", iterations),
		slog.Duration("duration", duration),
	)
}

// GreedyPolicy returns the index of the best action in every row of q.
//
// Ties go to the lowest action index.
func GreedyPolicy(q mat.Matrix) []int {
	rows, cols := q.Dims()
	policy := make([]int, rows)
	for st := 0; st < rows; st++ {
		best := 0
		for a := 1; a < cols; a++ {
			if q.At(st, a) > q.At(st, best) {
				best = a
			}
		}
		policy[st] = best
	}
	return policy
}
