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

import "fmt"

// OutcomeKind distinguishes next-state outcomes from reward outcomes.
type OutcomeKind int

const (
	// KindNextState outcomes carry a *State in Outcome.State.
	KindNextState OutcomeKind = iota + 1

	// KindReward outcomes carry a scalar in Outcome.Value.
	KindReward
)

func (k OutcomeKind) String() string {
	switch k {
	case KindNextState:
		return "next_state"
	case KindReward:
		return "reward"
	default:
		return "unknown"
	}
}

// Outcome is a weighted payload: either a next state or a reward value.
//
// Weights are relative. Outcomes with the same payload for the same
// (state, action) pair are summed before normalization.
type Outcome struct {
	Kind   OutcomeKind
	State  *State
	Value  float64
	Weight float64
}

// NextState creates a next-state outcome.
func NextState(state *State, weight float64) Outcome {
	return Outcome{Kind: KindNextState, State: state, Weight: weight}
}

// Reward creates a reward outcome.
func Reward(value, weight float64) Outcome {
	return Outcome{Kind: KindReward, Value: value, Weight: weight}
}

// Scaled returns a copy of o with its weight multiplied by factor.
func (o Outcome) Scaled(factor float64) Outcome {
	o.Weight *= factor
	return o
}

// IsReward reports whether o carries a reward value.
func (o Outcome) IsReward() bool {
	return o.Kind == KindReward
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindNextState:
		name := "<nil>"
		if o.State != nil {
			name = o.State.Name
		}
		return fmt.Sprintf("NextState(%s, %g)", name, o.Weight)
	case KindReward:
		return fmt.Sprintf("Reward(%g, %g)", o.Value, o.Weight)
	default:
		return "Outcome(?)"
	}
}
