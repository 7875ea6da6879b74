// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package spec holds the registry of a Markov Decision Process specification.
//
// A Specification owns the canonical State and Action identities, the
// append-only store of committed transition records, and the discount
// factor. Derived views (see Normalize) are recomputed on demand and never
// cached, so committing more transitions after a Normalize call is allowed.
//
// # Basic Usage
//
//	s := spec.New()
//	start, _ := s.DeclareState("start", false)
//	end, _ := s.DeclareState("end", true)
//	move := s.DeclareAction("move")
//
//	_ = s.CommitTransition(start, move, spec.NextState(end, 1))
//	_ = s.CommitTransition(start, move, spec.Reward(1, 1))
//
//	if _, err := s.Validate(); err != nil {
//	    // errors.Is(err, spec.ErrValidation)
//	}
//
// # Thread Safety
//
// Specification is safe for concurrent use. A single mutex guards the whole
// registry so index assignment and multimap insertion are never interleaved.
package spec

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Identities
// -----------------------------------------------------------------------------

// State is a named state of a specification.
//
// States are created by Specification.DeclareState and compared by pointer
// identity. They are immutable once created.
type State struct {
	// Name is unique within the owning specification.
	Name string

	// Index is dense and assigned in order of first declaration.
	Index int

	// Terminal states may not originate transitions.
	Terminal bool

	owner *Specification
}

func (s *State) String() string {
	return fmt.Sprintf("State(%s, %d, %t)", s.Name, s.Index, s.Terminal)
}

// Action is a named action of a specification.
type Action struct {
	// Name is unique within the owning specification.
	Name string

	// Index is dense and assigned in order of first declaration.
	Index int

	owner *Specification
}

func (a *Action) String() string {
	return fmt.Sprintf("Action(%s, %d)", a.Name, a.Index)
}

// TransitionRecord is one committed (state, action, outcome) triple.
//
// Several records may share the same (state, action) key; that is how
// probabilistic branching and multiple reward components are expressed.
type TransitionRecord struct {
	State   *State
	Action  *Action
	Outcome Outcome
}

func (r TransitionRecord) String() string {
	return fmt.Sprintf("(%s, %s) -> %s", r.State.Name, r.Action.Name, r.Outcome)
}

type pairKey struct {
	state  int
	action int
}

// -----------------------------------------------------------------------------
// Specification
// -----------------------------------------------------------------------------

// Specification is the mutable registry of one MDP build session.
//
// Description:
//
//	Holds the declared states and actions, the committed next-state and
//	reward outcomes per (state, action) pair, and the discount factor.
//	Consumers (normalizer, solver, environment) only read from it.
//
// Thread Safety: Safe for concurrent use.
type Specification struct {
	// ID uniquely identifies this build session.
	ID string

	// Name is an optional human-readable label.
	Name string

	mu           sync.RWMutex
	discount     float64
	states       []*State
	stateByName  map[string]*State
	actions      []*Action
	actionByName map[string]*Action
	nextStates   map[pairKey][]Outcome
	rewards      map[pairKey][]Outcome
	records      []TransitionRecord
}

// New creates an empty specification with discount 1.0.
func New() *Specification {
	return &Specification{
		ID:           uuid.NewString(),
		discount:     1.0,
		stateByName:  make(map[string]*State),
		actionByName: make(map[string]*Action),
		nextStates:   make(map[pairKey][]Outcome),
		rewards:      make(map[pairKey][]Outcome),
	}
}

// DeclareState returns the state with the given name, creating it if needed.
//
// Description:
//
//	Declaration is idempotent by name: re-declaring an existing name returns
//	the same *State with its index unchanged. An empty name is replaced by
//	an auto-generated one, "S<n>" for ordinary states and "T<n>" for
//	terminal states, where n is the current number of states.
//
// Inputs:
//   - name: State name, or "" to auto-generate.
//   - terminal: Whether the state is terminal.
//
// Outputs:
//   - *State: The canonical state for name.
//   - error: ErrStateConflict if name exists with a different terminal flag.
func (s *Specification) DeclareState(name string, terminal bool) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		prefix := "S"
		if terminal {
			prefix = "T"
		}
		name = fmt.Sprintf("%s%d", prefix, len(s.states))
	}

	if existing, ok := s.stateByName[name]; ok {
		if existing.Terminal != terminal {
			return nil, fmt.Errorf("%w: %s", ErrStateConflict, existing)
		}
		return existing, nil
	}

	state := &State{Name: name, Index: len(s.states), Terminal: terminal, owner: s}
	s.states = append(s.states, state)
	s.stateByName[name] = state
	return state, nil
}

// DeclareAction returns the action with the given name, creating it if needed.
//
// An empty name is replaced by "A<n>" where n is the current number of actions.
func (s *Specification) DeclareAction(name string) *Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("A%d", len(s.actions))
	}
	if existing, ok := s.actionByName[name]; ok {
		return existing
	}

	action := &Action{Name: name, Index: len(s.actions), owner: s}
	s.actions = append(s.actions, action)
	s.actionByName[name] = action
	return action
}

// CommitTransition records a single (state, action, outcome) triple.
//
// This is the low-level entry point for callers that already hold concrete
// triples. See CommitAll for the all-or-nothing batch variant.
func (s *Specification) CommitTransition(state *State, action *Action, outcome Outcome) error {
	return s.CommitAll([]TransitionRecord{{State: state, Action: action, Outcome: outcome}})
}

// CommitAll records a batch of transitions atomically.
//
// Description:
//
//	Every record is checked before any is stored, so a rejected batch leaves
//	the specification unchanged. Batches already committed are never rolled
//	back.
//
// Inputs:
//   - records: Triples in the order they should be stored.
//
// Outputs:
//   - error: ErrForeignReference, ErrTerminalTransition, ErrInvalidWeight,
//     or ErrInvalidReward wrapped with the offending record.
//
// Thread Safety: The whole batch is committed under one lock.
func (s *Specification) CommitAll(records []TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if err := s.checkRecord(r); err != nil {
			return err
		}
	}

	for _, r := range records {
		key := pairKey{state: r.State.Index, action: r.Action.Index}
		switch r.Outcome.Kind {
		case KindNextState:
			s.nextStates[key] = append(s.nextStates[key], r.Outcome)
		case KindReward:
			s.rewards[key] = append(s.rewards[key], r.Outcome)
		}
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Specification) checkRecord(r TransitionRecord) error {
	if r.State == nil || r.Action == nil || r.State.owner != s || r.Action.owner != s {
		return fmt.Errorf("%w: %s", ErrForeignReference, describe(r))
	}
	if r.State.Terminal {
		return fmt.Errorf("%w: %s", ErrTerminalTransition, r)
	}
	w := r.Outcome.Weight
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidWeight, r)
	}
	switch r.Outcome.Kind {
	case KindNextState:
		if r.Outcome.State == nil || r.Outcome.State.owner != s {
			return fmt.Errorf("%w: %s", ErrForeignReference, describe(r))
		}
	case KindReward:
		if math.IsNaN(r.Outcome.Value) || math.IsInf(r.Outcome.Value, 0) {
			return fmt.Errorf("%w: %s", ErrInvalidReward, r)
		}
	default:
		return fmt.Errorf("unknown outcome kind %d", r.Outcome.Kind)
	}
	return nil
}

// describe formats a record that may contain nil references.
func describe(r TransitionRecord) string {
	state, action := "<nil>", "<nil>"
	if r.State != nil {
		state = r.State.Name
	}
	if r.Action != nil {
		action = r.Action.Name
	}
	return fmt.Sprintf("(%s, %s)", state, action)
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// Discount returns the discount factor (default 1.0).
func (s *Specification) Discount() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discount
}

// SetDiscount sets the discount factor. It must be within [0, 1].
func (s *Specification) SetDiscount(discount float64) error {
	if math.IsNaN(discount) || discount < 0 || discount > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidDiscount, discount)
	}
	s.mu.Lock()
	s.discount = discount
	s.mu.Unlock()
	return nil
}

// States returns the declared states in index order.
func (s *Specification) States() []*State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*State, len(s.states))
	copy(out, s.states)
	return out
}

// Actions returns the declared actions in index order.
func (s *Specification) Actions() []*Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Action, len(s.actions))
	copy(out, s.actions)
	return out
}

// NumStates returns the number of declared states.
func (s *Specification) NumStates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// NumActions returns the number of declared actions.
func (s *Specification) NumActions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}

// StateByName looks up a declared state without creating it.
func (s *Specification) StateByName(name string) (*State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.stateByName[name]
	return state, ok
}

// ActionByName looks up a declared action without creating it.
func (s *Specification) ActionByName(name string) (*Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	action, ok := s.actionByName[name]
	return action, ok
}

// StateAt returns the state with the given index.
func (s *Specification) StateAt(index int) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.states) {
		return nil, fmt.Errorf("%w: state %d", ErrIndexOutOfRange, index)
	}
	return s.states[index], nil
}

// ActionAt returns the action with the given index.
func (s *Specification) ActionAt(index int) (*Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.actions) {
		return nil, fmt.Errorf("%w: action %d", ErrIndexOutOfRange, index)
	}
	return s.actions[index], nil
}

// Transitions returns every committed record in commit order.
func (s *Specification) Transitions() []TransitionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TransitionRecord, len(s.records))
	copy(out, s.records)
	return out
}

// IsDeterministic reports whether every (state, action) pair has at most one
// committed next-state outcome and at most one committed reward outcome.
//
// Raw commit counts are used, so two identical outcomes for the same pair
// still make the specification non-deterministic.
func (s *Specification) IsDeterministic() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, outcomes := range s.nextStates {
		if len(outcomes) > 1 {
			return false
		}
	}
	for _, outcomes := range s.rewards {
		if len(outcomes) > 1 {
			return false
		}
	}
	return true
}

// Validate forces normalization and returns the specification unchanged on
// success. There is no validation logic beyond building the normalized view.
func (s *Specification) Validate() (*Specification, error) {
	if _, err := s.Normalize(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Specification) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("Specification(%s, states=%d, actions=%d, records=%d, discount=%g)",
		s.ID, len(s.states), len(s.actions), len(s.records), s.discount)
}
