// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package env exposes a validated specification as a step/reset environment.
//
// Observations and actions are the integer indices assigned by the
// specification. Every step draws the reward and the next state
// independently from the normalized distributions of the current
// (state, action) pair.
package env

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// Package-level error definitions.
var (
	ErrNotReset      = errors.New("environment must be reset before stepping")
	ErrInvalidAction = errors.New("invalid action index")
	ErrInvalidStart  = errors.New("start state does not belong to the specification")
	ErrNoStates      = errors.New("specification has no states")
)

// StepResult is what Step returns.
type StepResult struct {
	Observation int
	Reward      float64
	Done        bool
}

// Transition is the most recent (state, action, next state) step.
type Transition struct {
	State  *spec.State
	Action *spec.Action
	Next   *spec.State
}

// Option configures an Env.
type Option func(*Env)

// WithStartState sets the state Reset returns to. Default: the first
// declared state.
func WithStartState(state *spec.State) Option {
	return func(e *Env) { e.start = state }
}

// WithSource sets the random source used for sampling.
func WithSource(src rand.Source) Option {
	return func(e *Env) { e.src = src }
}

// WithSeed seeds a PCG source for reproducible episodes.
func WithSeed(seed uint64) Option {
	return func(e *Env) { e.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15) }
}

// Env is a simulatable view of one specification.
//
// Thread Safety: Not safe for concurrent use.
type Env struct {
	norm  *spec.Normalized
	start *spec.State
	src   rand.Source

	nextDists   [][]*distuv.Categorical
	rewardDists [][]*distuv.Categorical

	state    *spec.State
	previous *Transition
	done     bool
	started  bool
}

// New normalizes s and prepares the sampling distributions.
//
// Outputs:
//   - *Env: Ready for Reset.
//   - error: Normalization errors, ErrNoStates, or ErrInvalidStart.
func New(s *spec.Specification, opts ...Option) (*Env, error) {
	n, err := s.Normalize()
	if err != nil {
		return nil, err
	}
	if len(n.States) == 0 {
		return nil, ErrNoStates
	}

	e := &Env{norm: n, start: n.States[0]}
	for _, opt := range opts {
		opt(e)
	}
	if e.start == nil || e.start.Index >= len(n.States) || n.States[e.start.Index] != e.start {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStart, e.start)
	}
	if e.src == nil {
		seed := uint64(time.Now().UnixNano())
		e.src = rand.NewPCG(seed, seed>>1)
	}

	e.nextDists = make([][]*distuv.Categorical, len(n.States))
	e.rewardDists = make([][]*distuv.Categorical, len(n.States))
	for _, state := range n.States {
		if state.Terminal {
			continue
		}
		e.nextDists[state.Index] = make([]*distuv.Categorical, len(n.Actions))
		e.rewardDists[state.Index] = make([]*distuv.Categorical, len(n.Actions))
		for _, action := range n.Actions {
			next := distuv.NewCategorical(n.NextStates(state.Index, action.Index).Probabilities(), e.src)
			reward := distuv.NewCategorical(n.Rewards(state.Index, action.Index).Probabilities(), e.src)
			e.nextDists[state.Index][action.Index] = &next
			e.rewardDists[state.Index][action.Index] = &reward
		}
	}
	return e, nil
}

// NumStates returns the size of the observation space.
func (e *Env) NumStates() int { return len(e.norm.States) }

// NumActions returns the size of the action space.
func (e *Env) NumActions() int { return len(e.norm.Actions) }

// Discount returns the discount factor of the specification.
func (e *Env) Discount() float64 { return e.norm.Discount }

// State returns the current state, or nil before the first Reset.
func (e *Env) State() *spec.State { return e.state }

// Done reports whether the current state is terminal.
func (e *Env) Done() bool { return e.done }

// Reset moves to the start state and returns its index.
//
// The episode is immediately done if the start state is terminal.
func (e *Env) Reset() int {
	e.state = e.start
	e.previous = nil
	e.done = e.start.Terminal
	e.started = true
	return e.state.Index
}

// Step applies action and returns the new observation, the reward drawn,
// and whether the episode is done.
//
// Stepping after the episode is done returns reward 0 and leaves the
// observation unchanged.
func (e *Env) Step(action int) (StepResult, error) {
	if action < 0 || action >= len(e.norm.Actions) {
		return StepResult{}, fmt.Errorf("%w: %d (have %d actions)", ErrInvalidAction, action, len(e.norm.Actions))
	}
	if !e.started {
		return StepResult{}, ErrNotReset
	}

	from := e.state
	var reward float64
	if !e.done {
		rewards := e.norm.Rewards(from.Index, action)
		reward = rewards[int(e.rewardDists[from.Index][action].Rand())].Outcome

		next := e.norm.NextStates(from.Index, action)
		e.state = next[int(e.nextDists[from.Index][action].Rand())].Outcome
		e.done = e.state.Terminal
	}

	e.previous = &Transition{State: from, Action: e.norm.Actions[action], Next: e.state}
	return StepResult{Observation: e.state.Index, Reward: reward, Done: e.done}, nil
}

// LastTransition returns the most recent step since Reset.
func (e *Env) LastTransition() (Transition, bool) {
	if e.previous == nil {
		return Transition{}, false
	}
	return *e.previous, true
}

// -----------------------------------------------------------------------------
// Rollouts
// -----------------------------------------------------------------------------

// Policy picks an action index for an observation.
type Policy func(observation int) int

// FixedPolicy returns a Policy backed by a per-state action table, such as
// the output of solver.GreedyPolicy.
func FixedPolicy(actions []int) Policy {
	return func(observation int) int { return actions[observation] }
}

// Episode summarizes one rollout.
type Episode struct {
	Steps            int
	Return           float64
	DiscountedReturn float64
	Done             bool
}

// Rollout resets the environment and follows policy until the episode is
// done or maxSteps steps were taken.
func (e *Env) Rollout(policy Policy, maxSteps int) (Episode, error) {
	var ep Episode
	obs := e.Reset()
	ep.Done = e.done

	factor := 1.0
	for !ep.Done && ep.Steps < maxSteps {
		res, err := e.Step(policy(obs))
		if err != nil {
			return ep, err
		}
		ep.Steps++
		ep.Return += res.Reward
		ep.DiscountedReturn += factor * res.Reward
		factor *= e.norm.Discount
		ep.Done = res.Done
		obs = res.Observation
	}
	return ep, nil
}
