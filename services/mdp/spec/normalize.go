// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package spec

import (
	"math"
)

// -----------------------------------------------------------------------------
// Distributions
// -----------------------------------------------------------------------------

// Choice is one outcome of a Distribution with its probability.
type Choice[T comparable] struct {
	Outcome     T
	Probability float64
}

// Distribution is a discrete probability distribution.
//
// Choices are ordered by first appearance of their outcome among the
// committed records, so iteration order is deterministic.
type Distribution[T comparable] []Choice[T]

// Outcomes returns the outcomes in order.
func (d Distribution[T]) Outcomes() []T {
	out := make([]T, len(d))
	for i, c := range d {
		out[i] = c.Outcome
	}
	return out
}

// Probabilities returns the probabilities in the same order as Outcomes.
func (d Distribution[T]) Probabilities() []float64 {
	out := make([]float64, len(d))
	for i, c := range d {
		out[i] = c.Probability
	}
	return out
}

// ProbabilityOf returns the probability of outcome, or 0 if absent.
func (d Distribution[T]) ProbabilityOf(outcome T) float64 {
	for _, c := range d {
		if c.Outcome == outcome {
			return c.Probability
		}
	}
	return 0
}

// Expected returns the mean of a reward distribution.
func Expected(d Distribution[float64]) float64 {
	var mean float64
	for _, c := range d {
		mean += c.Outcome * c.Probability
	}
	return mean
}

// StdDev returns the standard deviation of a reward distribution.
func StdDev(d Distribution[float64]) float64 {
	var second float64
	for _, c := range d {
		second += c.Outcome * c.Outcome * c.Probability
	}
	mean := Expected(d)
	variance := second - mean*mean
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// choices deduplicates outcomes by key, summing weights, and normalizes.
func choices[T comparable](outcomes []Outcome, key func(Outcome) T) Distribution[T] {
	if len(outcomes) == 0 {
		return nil
	}

	index := make(map[T]int, len(outcomes))
	var dist Distribution[T]
	var total float64
	for _, o := range outcomes {
		k := key(o)
		if i, ok := index[k]; ok {
			dist[i].Probability += o.Weight
		} else {
			index[k] = len(dist)
			dist = append(dist, Choice[T]{Outcome: k, Probability: o.Weight})
		}
		total += o.Weight
	}

	for i := range dist {
		dist[i].Probability /= total
	}
	return dist
}

// -----------------------------------------------------------------------------
// Normalized View
// -----------------------------------------------------------------------------

// Normalized is the derived, read-only view of a specification.
//
// For every declared (state, action) pair it holds a distribution over next
// states and a distribution over reward values. A pair with no committed
// reward yields the point distribution {0: 1}. A pair with no committed next
// state is an error unless the state is terminal.
type Normalized struct {
	States   []*State
	Actions  []*Action
	Discount float64

	next    [][]Distribution[*State]
	rewards [][]Distribution[float64]
}

// NextStates returns the next-state distribution of (state, action).
//
// The result is empty for terminal states.
func (n *Normalized) NextStates(state, action int) Distribution[*State] {
	return n.next[state][action]
}

// Rewards returns the reward distribution of (state, action).
func (n *Normalized) Rewards(state, action int) Distribution[float64] {
	return n.rewards[state][action]
}

// ExpectedReward returns the mean reward of (state, action).
func (n *Normalized) ExpectedReward(state, action int) float64 {
	return Expected(n.rewards[state][action])
}

// Normalize builds the normalized view of s.
//
// Description:
//
//	Visits every declared state x action pair in index order. Next-state
//	outcomes with the same target and reward outcomes with the same value
//	are merged by summing weights, then divided by the total weight.
//
// Outputs:
//   - *Normalized: The derived view.
//   - error: *ValidationError for the first pair that breaks a rule.
//
// Thread Safety: Holds the read lock for the duration of the build.
func (s *Specification) Normalize() (*Normalized, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := &Normalized{
		States:   append([]*State(nil), s.states...),
		Actions:  append([]*Action(nil), s.actions...),
		Discount: s.discount,
		next:     make([][]Distribution[*State], len(s.states)),
		rewards:  make([][]Distribution[float64], len(s.states)),
	}

	for _, state := range s.states {
		n.next[state.Index] = make([]Distribution[*State], len(s.actions))
		n.rewards[state.Index] = make([]Distribution[float64], len(s.actions))

		for _, action := range s.actions {
			key := pairKey{state: state.Index, action: action.Index}

			next := choices(s.nextStates[key], func(o Outcome) *State { return o.State })
			if !state.Terminal && len(next) == 0 {
				return nil, &ValidationError{State: state.Name, Action: action.Name, Err: ErrNoNextStates}
			}
			if state.Terminal && len(next) > 0 {
				return nil, &ValidationError{State: state.Name, Action: action.Name, Err: ErrTerminalNextStates}
			}
			n.next[state.Index][action.Index] = next

			rewards := s.rewards[key]
			if state.Terminal && len(rewards) > 0 {
				return nil, &ValidationError{State: state.Name, Action: action.Name, Err: ErrTerminalRewards}
			}
			dist := choices(rewards, func(o Outcome) float64 { return o.Value })
			if len(dist) == 0 {
				dist = Distribution[float64]{{Outcome: 0, Probability: 1}}
			}
			n.rewards[state.Index][action.Index] = dist
		}
	}

	return n, nil
}
