// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dsl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// -----------------------------------------------------------------------------
// Builder
// -----------------------------------------------------------------------------

// Builder composes expressions against one specification and compiles them
// as soon as they become fully specified.
//
// Description:
//
//	Builder errors are sticky. After the first failure every method returns
//	nil and does nothing, so a sequence of rules can be written without
//	checking each step and verified once with Err. The error still names
//	the construction that failed, because later calls never overwrite it.
//
//	Transitions committed before a failure stay committed. Discard the
//	specification if Err is non-nil.
//
// Thread Safety: Not safe for concurrent use. The underlying specification
// is, so several builders may share one.
type Builder struct {
	spec   *spec.Specification
	ctx    context.Context
	logger *slog.Logger
	err    error

	rules       int
	transitions int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithContext sets the parent context for compile spans.
func WithContext(ctx context.Context) BuilderOption {
	return func(b *Builder) {
		if ctx != nil {
			b.ctx = ctx
		}
	}
}

// WithLogger replaces the default component logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a builder over s.
func NewBuilder(s *spec.Specification, opts ...BuilderOption) *Builder {
	b := &Builder{
		spec:   s,
		ctx:    context.Background(),
		logger: slog.Default().With(slog.String("component", "mdp_dsl")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Spec returns the specification being built.
func (b *Builder) Spec() *spec.Specification { return b.spec }

// Err returns the first error encountered, or nil.
func (b *Builder) Err() error { return b.err }

// Compiled returns how many rules were compiled and how many transition
// records they committed.
func (b *Builder) Compiled() (rules, transitions int) {
	return b.rules, b.transitions
}

// Validate returns Err if set, otherwise the result of validating the
// specification.
func (b *Builder) Validate() (*spec.Specification, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.spec.Validate()
}

func (b *Builder) fail(err error) {
	if b.err != nil {
		return
	}
	b.err = err

	kind := "commit"
	var syn *SyntaxError
	switch {
	case errors.As(err, &syn), errors.Is(err, ErrEmptyAlternatives):
		kind = "syntax"
	case errors.Is(err, ErrParse):
		kind = "parse"
	case errors.Is(err, spec.ErrInvalidWeight):
		kind = "weight"
	}
	buildErrorsTotal.WithLabelValues(kind).Inc()
	b.logger.Debug("build failed", slog.String("kind", kind), slog.String("error", err.Error()))
}

// usable reports whether the builder can proceed with the given operands.
func (b *Builder) usable(nodes ...Node) bool {
	if b.err != nil {
		return false
	}
	for _, n := range nodes {
		if n == nil {
			b.fail(ErrNilNode)
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Declarations
// -----------------------------------------------------------------------------

// State declares (or reuses) a non-terminal state. An empty name is
// auto-generated.
func (b *Builder) State(name string) Node {
	return b.declareState(name, false)
}

// TerminalState declares (or reuses) a terminal state.
func (b *Builder) TerminalState(name string) Node {
	return b.declareState(name, true)
}

func (b *Builder) declareState(name string, terminal bool) Node {
	if b.err != nil {
		return nil
	}
	state, err := b.spec.DeclareState(name, terminal)
	if err != nil {
		b.fail(err)
		return nil
	}
	return StateRef(state)
}

// Action declares (or reuses) an action. An empty name is auto-generated.
func (b *Builder) Action(name string) Node {
	if b.err != nil {
		return nil
	}
	return ActionRef(b.spec.DeclareAction(name))
}

// Reward creates a reward literal with weight 1.
func (b *Builder) Reward(value float64) Node {
	if b.err != nil {
		return nil
	}
	return RewardOf(value)
}

// Discount sets the discount factor of the specification.
func (b *Builder) Discount(discount float64) {
	if b.err != nil {
		return
	}
	if err := b.spec.SetDiscount(discount); err != nil {
		b.fail(err)
	}
}

// -----------------------------------------------------------------------------
// Operators
// -----------------------------------------------------------------------------

// Or unions the given nodes into one Alternatives node.
//
// A single node is returned unchanged. Alternatives operands are spliced,
// so Or(a, Or(b, c)) equals Or(a, b, c).
func (b *Builder) Or(nodes ...Node) Node {
	if !b.usable(nodes...) {
		return nil
	}
	switch len(nodes) {
	case 0:
		b.fail(ErrEmptyAlternatives)
		return nil
	case 1:
		return nodes[0]
	default:
		return alternativesOf(nodes)
	}
}

// Times weights a reward or next-state node.
func (b *Builder) Times(n Node, w float64) Node {
	if !b.usable(n) {
		return nil
	}
	weighted, err := Weight(n, w)
	if err != nil {
		b.fail(err)
		return nil
	}
	return weighted
}

// And joins a trigger with a continuation and compiles the result if it is
// fully specified.
func (b *Builder) And(left, right Node) Node {
	if !b.usable(left, right) {
		return nil
	}
	joined, err := Join(left, right)
	if err != nil {
		b.fail(err)
		return nil
	}
	return b.compileIfComplete(joined)
}

// To attaches outcome to trigger and compiles the result if it is fully
// specified.
func (b *Builder) To(trigger, outcome Node) Node {
	if !b.usable(trigger, outcome) {
		return nil
	}
	mapping, err := MapsTo(trigger, outcome)
	if err != nil {
		b.fail(err)
		return nil
	}
	return b.compileIfComplete(mapping)
}

func (b *Builder) compileIfComplete(n Node) Node {
	if !n.Info().FullySpecified() {
		return n
	}
	committed, err := Compile(b.ctx, b.spec, n)
	if err != nil {
		b.fail(err)
		return nil
	}
	b.rules++
	b.transitions += committed
	b.logger.Debug("rule compiled",
		slog.String("rule", n.String()),
		slog.Int("transitions", committed),
	)
	return n
}

// -----------------------------------------------------------------------------
// Compilation
// -----------------------------------------------------------------------------

// Compile flattens a fully specified tree and commits the records to s.
//
// Description:
//
//	Every record is checked before any is committed, so a rule that fails
//	leaves s unchanged.
//
// Inputs:
//   - ctx: Parent context for the compile span.
//   - s: Target specification. All referenced states and actions must
//     belong to it.
//   - n: Fully specified tree.
//
// Outputs:
//   - int: Number of records committed.
//   - error: *SyntaxError from flattening or a spec commit error.
func Compile(ctx context.Context, s *spec.Specification, n Node) (int, error) {
	_, span := otel.Tracer("mdp_dsl").Start(ctx, "dsl.compile",
		trace.WithAttributes(attribute.String("spec_id", s.ID)),
	)
	defer span.End()

	records, err := Flatten(n)
	if err == nil {
		err = s.CommitAll(records)
	}
	if err != nil {
		rulesCompiledTotal.WithLabelValues("rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("compile %s: %w", n, err)
	}

	rulesCompiledTotal.WithLabelValues("committed").Inc()
	transitionsCommittedTotal.Add(float64(len(records)))
	span.SetAttributes(attribute.Int("transitions", len(records)))
	return len(records), nil
}
