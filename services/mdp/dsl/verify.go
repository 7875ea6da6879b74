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

import "fmt"

// CheckTrigger verifies that n may appear where a state or action is expected.
//
// Description:
//
//	State and action references pass. Alternatives pass when every child
//	passes and the list is homogeneous, meaning all children carry state
//	info or all carry action info. Conjunctions pass when both sides pass.
//	Rewards, weighted states, and mappings fail.
//
// Outputs:
//   - error: *SyntaxError naming the first offending subtree, or nil.
func CheckTrigger(n Node) error {
	switch n := n.(type) {
	case *StateNode, *ActionNode:
		return nil
	case *Alternatives:
		for _, c := range n.children {
			if err := CheckTrigger(c); err != nil {
				return err
			}
		}
		if info := n.Info(); !info.HasState && !info.HasAction {
			return syntaxErrorf(n, "%s contains non-homogeneous alternatives", n)
		}
		return nil
	case *Conjunction:
		if err := CheckTrigger(n.left); err != nil {
			return err
		}
		return CheckTrigger(n.right)
	case *RewardNode, *WeightedStateNode, *Mapping:
		return syntaxErrorf(n, "%s is not a valid trigger (expected a state or an action)", n)
	default:
		panic(fmt.Sprintf("dsl: unhandled node type %T", n))
	}
}

// CheckOutcome verifies that n may appear where an outcome is expected.
//
// States, weighted states, and rewards pass. Alternatives pass when every
// child passes. Actions, conjunctions, and mappings fail.
func CheckOutcome(n Node) error {
	switch n := n.(type) {
	case *StateNode, *WeightedStateNode, *RewardNode:
		return nil
	case *Alternatives:
		for _, c := range n.children {
			if err := CheckOutcome(c); err != nil {
				return err
			}
		}
		return nil
	case *ActionNode, *Conjunction, *Mapping:
		return syntaxErrorf(n, "%s is not a valid outcome (expected a reward or a state)", n)
	default:
		panic(fmt.Sprintf("dsl: unhandled node type %T", n))
	}
}
