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
	"fmt"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// -----------------------------------------------------------------------------
// Flattening
// -----------------------------------------------------------------------------

// row is a partially filled transition triple.
//
// Slots are write-once. Filling a slot twice means verification let through
// a tree it should have rejected, so it panics.
type row struct {
	state      *spec.State
	action     *spec.Action
	outcome    spec.Outcome
	hasOutcome bool
}

func (r row) withState(s *spec.State) row {
	if r.state != nil {
		panic(fmt.Sprintf("dsl: state slot already filled with %s, cannot set %s", r.state, s))
	}
	r.state = s
	return r
}

func (r row) withAction(a *spec.Action) row {
	if r.action != nil {
		panic(fmt.Sprintf("dsl: action slot already filled with %s, cannot set %s", r.action, a))
	}
	r.action = a
	return r
}

func (r row) withOutcome(o spec.Outcome) row {
	if r.hasOutcome {
		panic(fmt.Sprintf("dsl: outcome slot already filled with %s, cannot set %s", r.outcome, o))
	}
	r.outcome = o
	r.hasOutcome = true
	return r
}

// Flatten expands a fully specified tree into concrete transition records.
//
// Description:
//
//	Walks the tree with a working list of partially filled rows that starts
//	as one empty row. Leaves fill their slot in every row. Alternatives run
//	each branch against the same input rows and concatenate the results in
//	declaration order, which realizes the cross product of all branches.
//	Conjunctions fill from the left subtree and feed the result into the
//	right. Mappings fill from the trigger and then attach each outcome
//	alternative.
//
// Inputs:
//   - n: A tree whose Info is fully specified.
//
// Outputs:
//   - []spec.TransitionRecord: One record per concrete combination.
//   - error: *SyntaxError if n is not fully specified or a row starts
//     from a terminal state.
func Flatten(n Node) ([]spec.TransitionRecord, error) {
	if !n.Info().FullySpecified() {
		return nil, syntaxErrorf(n, "%s does not specify state, action, and outcome", n)
	}

	rows := fill(n, []row{{}})

	records := make([]spec.TransitionRecord, 0, len(rows))
	for _, r := range rows {
		if r.state.Terminal {
			return nil, syntaxErrorf(n, "cannot specify transition (%s, %s) -> %s for terminal state",
				r.state.Name, r.action.Name, r.outcome)
		}
		records = append(records, spec.TransitionRecord{State: r.state, Action: r.action, Outcome: r.outcome})
	}
	return records, nil
}

// fill applies the trigger side of n to every row.
func fill(n Node, rows []row) []row {
	switch n := n.(type) {
	case *StateNode:
		out := make([]row, len(rows))
		for i, r := range rows {
			out[i] = r.withState(n.state)
		}
		return out
	case *ActionNode:
		out := make([]row, len(rows))
		for i, r := range rows {
			out[i] = r.withAction(n.action)
		}
		return out
	case *Alternatives:
		var out []row
		for _, c := range n.children {
			out = append(out, fill(c, rows)...)
		}
		return out
	case *Conjunction:
		return fill(n.right, fill(n.left, rows))
	case *Mapping:
		return attach(n.outcome, fill(n.trigger, rows))
	default:
		panic(fmt.Sprintf("dsl: %s cannot fill a trigger slot", n))
	}
}

// attach applies the outcome side of n to every row.
func attach(n Node, rows []row) []row {
	switch n := n.(type) {
	case *Alternatives:
		var out []row
		for _, c := range n.children {
			out = append(out, attach(c, rows)...)
		}
		return out
	case *RewardNode:
		return attachOutcome(rows, n.outcome)
	case *WeightedStateNode:
		return attachOutcome(rows, n.outcome)
	case *StateNode:
		return attachOutcome(rows, spec.NextState(n.state, 1))
	default:
		panic(fmt.Sprintf("dsl: %s cannot fill an outcome slot", n))
	}
}

func attachOutcome(rows []row, o spec.Outcome) []row {
	out := make([]row, len(rows))
	for i, r := range rows {
		out[i] = r.withOutcome(o)
	}
	return out
}
