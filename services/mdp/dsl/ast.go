// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dsl implements the expression language for MDP specifications.
//
// Expressions are trees of immutable nodes built with four operators:
//
//   - Union (a | b): alternatives, merged into one flat list
//   - Join (a & b): a trigger joined with another trigger or a mapping
//   - Weight (n * w): scales reward and next-state weights
//   - MapsTo (a > b): attaches outcomes to a trigger
//
// Every operator verifies the roles of its operands when it is called, so a
// malformed expression fails at the exact composition that made it invalid.
// The operators themselves have no side effects. The Builder checks after
// each Join and MapsTo whether the result carries state, action, and outcome
// information together and, if so, flattens it into transition records and
// commits them to its specification.
//
// # Example
//
//	b := dsl.NewBuilder(spec.New())
//	start := b.State("start")
//	end := b.TerminalState("end")
//	a0, a1 := b.Action("a0"), b.Action("a1")
//
//	b.To(b.And(start, b.Or(a0, a1)), end)
//	b.To(b.And(start, a1), b.Reward(1))
//
//	s, err := b.Validate()
//
// The same rules in text form:
//
//	start & (a0 | a1) > end
//	start & a1 > reward(1)
package dsl

import (
	"fmt"
	"math"
	"strings"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// -----------------------------------------------------------------------------
// Structural Info
// -----------------------------------------------------------------------------

// Info records which transition columns a subtree provides.
type Info struct {
	HasState   bool
	HasAction  bool
	HasOutcome bool
}

// FullySpecified reports whether state, action, and outcome are all present.
func (i Info) FullySpecified() bool {
	return i.HasState && i.HasAction && i.HasOutcome
}

func (i Info) String() string {
	return fmt.Sprintf("Info(state=%t, action=%t, outcome=%t)", i.HasState, i.HasAction, i.HasOutcome)
}

// -----------------------------------------------------------------------------
// Nodes
// -----------------------------------------------------------------------------

// Node is an expression tree node.
//
// The set of node types is closed: *StateNode, *ActionNode, *RewardNode,
// *WeightedStateNode, *Alternatives, *Conjunction, and *Mapping. Composite
// nodes can only be created through Union, Join, and MapsTo, which verify
// their operands and compute Info once.
type Node interface {
	// Info returns the structural info of the subtree.
	Info() Info

	String() string

	node()
}

// InfoOf returns the structural info of n.
func InfoOf(n Node) Info {
	return n.Info()
}

// StateNode references a declared state.
type StateNode struct {
	state *spec.State
}

// StateRef wraps a declared state as a node.
func StateRef(state *spec.State) *StateNode {
	return &StateNode{state: state}
}

// State returns the referenced state.
func (n *StateNode) State() *spec.State { return n.state }

func (n *StateNode) Info() Info { return Info{HasState: true} }
func (n *StateNode) String() string { return "State(" + n.state.Name + ")" }
func (n *StateNode) node() {}

// ActionNode references a declared action.
type ActionNode struct {
	action *spec.Action
}

// ActionRef wraps a declared action as a node.
func ActionRef(action *spec.Action) *ActionNode {
	return &ActionNode{action: action}
}

// Action returns the referenced action.
func (n *ActionNode) Action() *spec.Action { return n.action }

func (n *ActionNode) Info() Info { return Info{HasAction: true} }
func (n *ActionNode) String() string { return "Action(" + n.action.Name + ")" }
func (n *ActionNode) node() {}

// RewardNode is a reward literal with a weight.
type RewardNode struct {
	outcome spec.Outcome
}

// RewardOf creates a reward literal with weight 1.
func RewardOf(value float64) *RewardNode {
	return &RewardNode{outcome: spec.Reward(value, 1)}
}

// Outcome returns the reward outcome.
func (n *RewardNode) Outcome() spec.Outcome { return n.outcome }

func (n *RewardNode) Info() Info { return Info{} }
func (n *RewardNode) String() string { return n.outcome.String() }
func (n *RewardNode) node() {}

// WeightedStateNode is a next state with an explicit weight.
type WeightedStateNode struct {
	outcome spec.Outcome
}

// Outcome returns the next-state outcome.
func (n *WeightedStateNode) Outcome() spec.Outcome { return n.outcome }

func (n *WeightedStateNode) Info() Info { return Info{} }
func (n *WeightedStateNode) String() string { return n.outcome.String() }
func (n *WeightedStateNode) node() {}

// Alternatives is a flat list of interchangeable nodes.
type Alternatives struct {
	children []Node
	info     Info
}

// Children returns the alternatives in declaration order.
func (n *Alternatives) Children() []Node {
	return append([]Node(nil), n.children...)
}

func (n *Alternatives) Info() Info { return n.info }

func (n *Alternatives) String() string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = c.String()
	}
	return "Alternatives[" + strings.Join(parts, " | ") + "]"
}

func (n *Alternatives) node() {}

// Conjunction joins a trigger with another trigger or a mapping.
type Conjunction struct {
	left  Node
	right Node
	info  Info
}

// Left returns the left operand.
func (n *Conjunction) Left() Node { return n.left }

// Right returns the right operand.
func (n *Conjunction) Right() Node { return n.right }

func (n *Conjunction) Info() Info { return n.info }
func (n *Conjunction) String() string { return "(" + n.left.String() + " & " + n.right.String() + ")" }
func (n *Conjunction) node() {}

// Mapping attaches outcomes to a trigger.
type Mapping struct {
	trigger Node
	outcome Node
	info    Info
}

// Trigger returns the trigger operand.
func (n *Mapping) Trigger() Node { return n.trigger }

// Outcome returns the outcome operand.
func (n *Mapping) Outcome() Node { return n.outcome }

func (n *Mapping) Info() Info { return n.info }
func (n *Mapping) String() string { return "(" + n.trigger.String() + " > " + n.outcome.String() + ")" }
func (n *Mapping) node() {}

// -----------------------------------------------------------------------------
// Operators
// -----------------------------------------------------------------------------

// Union merges left and right into one Alternatives node.
//
// Alternatives operands are spliced in rather than nested, so
// Union(Union(a, b), c) and Union(a, Union(b, c)) both yield [a, b, c].
// Homogeneity is not checked here; it is checked when the result is used
// as a trigger.
func Union(left, right Node) *Alternatives {
	return alternativesOf([]Node{left, right})
}

// alternativesOf builds one Alternatives from operands, splicing nested lists.
func alternativesOf(operands []Node) *Alternatives {
	children := make([]Node, 0, len(operands))
	for _, op := range operands {
		if alt, ok := op.(*Alternatives); ok {
			children = append(children, alt.children...)
		} else {
			children = append(children, op)
		}
	}

	info := Info{HasState: true, HasAction: true, HasOutcome: true}
	for _, c := range children {
		ci := c.Info()
		info.HasState = info.HasState && ci.HasState
		info.HasAction = info.HasAction && ci.HasAction
		info.HasOutcome = info.HasOutcome && ci.HasOutcome
	}
	return &Alternatives{children: children, info: info}
}

// Join builds the conjunction of a trigger and a continuation.
//
// Description:
//
//	left must be a valid trigger. right must be a valid trigger unless it
//	already carries outcome info, in which case it is a mapping that
//	verified itself. The two sides may not both carry state info or both
//	carry action info. The check is per branch: an alternative carrying
//	state info conflicts with a state on the other side even when its
//	siblings carry none.
//
// Outputs:
//   - *Conjunction: The joined node.
//   - error: *SyntaxError if verification fails.
func Join(left, right Node) (*Conjunction, error) {
	if err := CheckTrigger(left); err != nil {
		return nil, err
	}
	ri := right.Info()
	if !ri.HasOutcome {
		if err := CheckTrigger(right); err != nil {
			return nil, err
		}
	}

	li := left.Info()
	la, ra := anyInfo(left), anyInfo(right)
	if la.HasState && ra.HasState {
		return nil, syntaxErrorf(right, "%s and %s both have state information", left, right)
	}
	if la.HasAction && ra.HasAction {
		return nil, syntaxErrorf(right, "%s and %s both have action information", left, right)
	}

	return &Conjunction{
		left:  left,
		right: right,
		info: Info{
			HasState:   li.HasState || ri.HasState,
			HasAction:  li.HasAction || ri.HasAction,
			HasOutcome: ri.HasOutcome,
		},
	}, nil
}

// anyInfo is like Info but ORs over alternatives instead of ANDing, so it
// reports every column that some branch of n fills.
func anyInfo(n Node) Info {
	switch n := n.(type) {
	case *Alternatives:
		var info Info
		for _, c := range n.children {
			ci := anyInfo(c)
			info.HasState = info.HasState || ci.HasState
			info.HasAction = info.HasAction || ci.HasAction
			info.HasOutcome = info.HasOutcome || ci.HasOutcome
		}
		return info
	case *Conjunction:
		l, r := anyInfo(n.left), anyInfo(n.right)
		return Info{
			HasState:   l.HasState || r.HasState,
			HasAction:  l.HasAction || r.HasAction,
			HasOutcome: l.HasOutcome || r.HasOutcome,
		}
	case *Mapping:
		info := anyInfo(n.trigger)
		info.HasOutcome = true
		return info
	default:
		return n.Info()
	}
}

// MapsTo attaches outcome to trigger.
//
// trigger must pass CheckTrigger and outcome must pass CheckOutcome.
func MapsTo(trigger, outcome Node) (*Mapping, error) {
	if err := CheckTrigger(trigger); err != nil {
		return nil, err
	}
	if err := CheckOutcome(outcome); err != nil {
		return nil, err
	}

	ti := trigger.Info()
	return &Mapping{
		trigger: trigger,
		outcome: outcome,
		info:    Info{HasState: ti.HasState, HasAction: ti.HasAction, HasOutcome: true},
	}, nil
}

// Weight multiplies the weight of a reward or next-state node by w.
//
// Description:
//
//	A plain state reference is promoted to a weighted next state.
//	Alternatives distribute the weight to every child. Any other node kind
//	cannot be weighted.
//
// Outputs:
//   - Node: The weighted node.
//   - error: spec.ErrInvalidWeight for w that is not finite and positive,
//     *SyntaxError for nodes that cannot be weighted.
func Weight(n Node, w float64) (Node, error) {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return nil, fmt.Errorf("%w: %v", spec.ErrInvalidWeight, w)
	}

	switch n := n.(type) {
	case *RewardNode:
		return &RewardNode{outcome: n.outcome.Scaled(w)}, nil
	case *WeightedStateNode:
		return &WeightedStateNode{outcome: n.outcome.Scaled(w)}, nil
	case *StateNode:
		return &WeightedStateNode{outcome: spec.NextState(n.state, w)}, nil
	case *Alternatives:
		weighted := make([]Node, len(n.children))
		for i, c := range n.children {
			wc, err := Weight(c, w)
			if err != nil {
				return nil, err
			}
			weighted[i] = wc
		}
		return alternativesOf(weighted), nil
	default:
		return nil, syntaxErrorf(n, "%s cannot be weighted (only rewards and states)", n)
	}
}
