// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package examples provides small canned specifications used by the CLI,
// the HTTP API, and tests across the module.
//
// Every constructor builds a fresh specification, so callers may mutate
// the result freely.
package examples

import (
	"errors"
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianMDP/services/mdp/dsl"
	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// ErrUnknownExample is returned by Build for names not in the catalog.
var ErrUnknownExample = errors.New("unknown example")

// Example is one entry of the catalog.
type Example struct {
	Name        string
	Description string
	Build       func() (*spec.Specification, error)
}

// Catalog returns every canned example, sorted by name.
func Catalog() []Example {
	out := []Example{
		{Name: "one-round-dmdp", Description: "one decision, deterministic reward on a1", Build: OneRoundDMDP},
		{Name: "two-round-dmdp", Description: "two decisions, deterministic rewards", Build: TwoRoundDMDP},
		{Name: "one-round-nmdp", Description: "one decision, random rewards", Build: OneRoundNMDP},
		{Name: "two-round-nmdp", Description: "two decisions, random rewards", Build: TwoRoundNMDP},
		{Name: "multi-round-nmdp", Description: "recurrent states, random transitions, discount 0.9", Build: MultiRoundNMDP},
		{Name: "geometric-series", Description: "one state paying 1 forever, discount 0.5", Build: func() (*spec.Specification, error) {
			return GeometricSeries(0.5)
		}},
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a catalog entry by name.
func Lookup(name string) (Example, bool) {
	for _, e := range Catalog() {
		if e.Name == name {
			return e, true
		}
	}
	return Example{}, false
}

// Build builds the named example.
func Build(name string) (*spec.Specification, error) {
	e, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExample, name)
	}
	s, err := e.Build()
	if err != nil {
		return nil, fmt.Errorf("build example %s: %w", name, err)
	}
	s.Name = name
	return s, nil
}

// OneRoundDMDP has one decision: a1 pays 1, a0 pays nothing, and both end
// the episode.
func OneRoundDMDP() (*spec.Specification, error) {
	b := dsl.NewBuilder(spec.New())
	start := b.State("start")
	end := b.TerminalState("end")
	a0, a1 := b.Action("a0"), b.Action("a1")

	b.To(b.And(start, b.Or(a0, a1)), end)
	b.To(b.And(start, a1), b.Reward(1))
	return b.Validate()
}

// TwoRoundDMDP routes a0 to a state where a1 pays 3 and a1 to a state
// where a0 pays 1 and a1 pays 2.
func TwoRoundDMDP() (*spec.Specification, error) {
	b := dsl.NewBuilder(spec.New())
	start := b.State("start")
	better := b.State("better")
	worse := b.State("worse")
	end := b.TerminalState("end")
	a0, a1 := b.Action("a0"), b.Action("a1")

	b.To(b.And(start, a0), better)
	b.To(b.And(better, a1), b.Reward(3))

	b.To(b.And(start, a1), worse)
	b.To(b.And(worse, a0), b.Reward(1))
	b.To(b.And(worse, a1), b.Reward(2))

	b.To(b.And(b.Or(better, worse), b.Or(a0, a1)), end)
	return b.Validate()
}

// OneRoundNMDP is OneRoundDMDP with uniform random rewards.
func OneRoundNMDP() (*spec.Specification, error) {
	b := dsl.NewBuilder(spec.New())
	b.State("start")
	b.TerminalState("end")
	b.Action("a0")
	b.Action("a1")

	b.Rule("start & a0 > reward(0) | reward(5)")
	b.Rule("start & a1 > reward(1) | reward(3)")
	b.Rule("start & (a0 | a1) > end")
	return b.Validate()
}

// TwoRoundNMDP is TwoRoundDMDP with weighted random rewards.
func TwoRoundNMDP() (*spec.Specification, error) {
	b := dsl.NewBuilder(spec.New())
	b.State("start")
	b.State("a")
	b.State("b")
	b.TerminalState("end")
	b.Action("a0")
	b.Action("a1")

	for _, rule := range []string{
		"start & a0 > a",
		"a & a0 > reward(-1) | reward(1)",
		"a & a1 > reward(0) * 2 | reward(9)",
		"start & a1 > b",
		"b & a0 > reward(0) | reward(2)",
		"b & a1 > reward(2) | reward(3)",
		"(a | b) & (a0 | a1) > end",
	} {
		b.Rule(rule)
	}
	return b.Validate()
}

// MultiRoundNMDP has two recurrent states paying 3 and 5 per step with
// random transitions between them, and a discount of 0.9.
func MultiRoundNMDP() (*spec.Specification, error) {
	b := dsl.NewBuilder(spec.New())
	start := b.State("start")
	first := b.State("first")
	second := b.State("second")
	end := b.TerminalState("end")
	actionA, actionB := b.Action("A"), b.Action("B")

	eitherAction := b.Or(actionA, actionB)
	eitherState := b.Or(first, second)

	b.To(b.And(start, actionA), b.Or(b.Times(first, 0.25), b.Times(second, 0.75)))
	b.To(b.And(start, actionB), b.Or(b.Times(first, 0.75), b.Times(second, 0.25)))

	b.To(b.And(eitherState, actionA), eitherState)
	b.To(b.And(first, actionB), b.Or(first, b.Times(second, 2)))
	b.To(b.And(second, actionB), b.Or(b.Times(first, 2), second, end))

	b.To(b.And(first, eitherAction), b.Reward(3))
	b.To(b.And(second, eitherAction), b.Reward(5))

	b.Discount(0.9)
	return b.Validate()
}

// GeometricSeries has one state and one action paying 1 and looping back.
// Its value is 1 / (1 - discount).
func GeometricSeries(discount float64) (*spec.Specification, error) {
	b := dsl.NewBuilder(spec.New())
	b.State("s")
	b.Action("loop")
	b.Rule("s & loop > reward(1) | s")
	b.Discount(discount)
	return b.Validate()
}
