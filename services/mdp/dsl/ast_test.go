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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// fixture holds two states, a terminal state, and two actions.
type fixture struct {
	spec   *spec.Specification
	stateA *StateNode
	stateB *StateNode
	end    *StateNode
	actA   *ActionNode
	actB   *ActionNode
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := spec.New()
	a, err := s.DeclareState("A", false)
	require.NoError(t, err)
	b, err := s.DeclareState("B", false)
	require.NoError(t, err)
	end, err := s.DeclareState("end", true)
	require.NoError(t, err)
	return fixture{
		spec:   s,
		stateA: StateRef(a),
		stateB: StateRef(b),
		end:    StateRef(end),
		actA:   ActionRef(s.DeclareAction("a")),
		actB:   ActionRef(s.DeclareAction("b")),
	}
}

// =============================================================================
// Structural Info Tests
// =============================================================================

func TestInfoOf(t *testing.T) {
	f := newFixture(t)

	t.Run("leaves", func(t *testing.T) {
		assert.Equal(t, Info{HasState: true}, InfoOf(f.stateA))
		assert.Equal(t, Info{HasAction: true}, InfoOf(f.actA))
		assert.Equal(t, Info{}, InfoOf(RewardOf(1)))
	})

	t.Run("alternatives require every child to agree", func(t *testing.T) {
		assert.Equal(t, Info{HasState: true}, InfoOf(Union(f.stateA, f.stateB)))
		assert.Equal(t, Info{}, InfoOf(Union(f.stateA, f.actA)))
	})

	t.Run("conjunction combines sides and takes outcome from the right", func(t *testing.T) {
		mapping, err := MapsTo(f.actA, f.stateB)
		require.NoError(t, err)
		joined, err := Join(f.stateA, mapping)
		require.NoError(t, err)

		assert.True(t, InfoOf(joined).FullySpecified())

		plain, err := Join(f.stateA, f.actA)
		require.NoError(t, err)
		assert.Equal(t, Info{HasState: true, HasAction: true}, InfoOf(plain))
	})

	t.Run("mapping always carries outcome", func(t *testing.T) {
		mapping, err := MapsTo(f.stateA, RewardOf(1))
		require.NoError(t, err)
		assert.Equal(t, Info{HasState: true, HasOutcome: true}, InfoOf(mapping))
	})
}

// =============================================================================
// Verifier Tests
// =============================================================================

func TestCheckTrigger(t *testing.T) {
	f := newFixture(t)
	mapping, err := MapsTo(f.actA, f.stateA)
	require.NoError(t, err)
	weighted, err := Weight(f.stateA, 2)
	require.NoError(t, err)
	conj, err := Join(f.stateA, f.actA)
	require.NoError(t, err)

	tests := []struct {
		name    string
		node    Node
		wantErr bool
	}{
		{"state", f.stateA, false},
		{"action", f.actA, false},
		{"homogeneous states", Union(f.stateA, f.stateB), false},
		{"homogeneous actions", Union(f.actA, f.actB), false},
		{"conjunction of triggers", conj, false},
		{"mixed alternatives", Union(f.stateA, f.actA), true},
		{"reward", RewardOf(1), true},
		{"weighted state", weighted, true},
		{"mapping", mapping, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTrigger(tt.node)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSyntax)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckTrigger_NonHomogeneousNamesNode(t *testing.T) {
	f := newFixture(t)
	mixed := Union(f.stateA, f.actB)

	err := CheckTrigger(mixed)
	var syn *SyntaxError
	require.ErrorAs(t, err, &syn)
	assert.Same(t, mixed, syn.Node)
	assert.Contains(t, syn.Reason, "non-homogeneous")
}

func TestCheckOutcome(t *testing.T) {
	f := newFixture(t)
	mapping, err := MapsTo(f.actA, f.stateA)
	require.NoError(t, err)
	conj, err := Join(f.stateA, f.actA)
	require.NoError(t, err)

	assert.NoError(t, CheckOutcome(f.stateA))
	assert.NoError(t, CheckOutcome(RewardOf(3)))
	assert.NoError(t, CheckOutcome(Union(f.stateA, RewardOf(1))))

	assert.ErrorIs(t, CheckOutcome(f.actA), ErrSyntax)
	assert.ErrorIs(t, CheckOutcome(mapping), ErrSyntax)
	assert.ErrorIs(t, CheckOutcome(conj), ErrSyntax)
	assert.ErrorIs(t, CheckOutcome(Union(f.stateA, f.actB)), ErrSyntax)
}

// =============================================================================
// Operator Tests
// =============================================================================

func TestUnion_SplicesAlternatives(t *testing.T) {
	f := newFixture(t)
	reward := RewardOf(1)

	left := Union(Union(f.stateA, f.stateB), reward)
	right := Union(f.stateA, Union(f.stateB, reward))

	assert.Equal(t, []Node{f.stateA, f.stateB, reward}, left.Children())
	assert.Equal(t, []Node{f.stateA, f.stateB, reward}, right.Children())
}

func TestJoin(t *testing.T) {
	f := newFixture(t)

	t.Run("two states fail", func(t *testing.T) {
		_, err := Join(f.stateA, f.stateB)
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("two actions fail", func(t *testing.T) {
		_, err := Join(f.actA, f.actB)
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("left must be a trigger", func(t *testing.T) {
		_, err := Join(RewardOf(1), f.actA)
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("right mapping is trusted", func(t *testing.T) {
		mapping, err := MapsTo(Union(f.actA, f.actB), f.stateA)
		require.NoError(t, err)
		_, err = Join(Union(f.stateA, f.stateB), mapping)
		assert.NoError(t, err)
	})

	t.Run("state with action mapping conflict", func(t *testing.T) {
		mapping, err := MapsTo(f.stateB, f.stateA)
		require.NoError(t, err)
		_, err = Join(f.stateA, mapping)
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("state inside one mapping alternative conflicts", func(t *testing.T) {
		withState, err := MapsTo(f.stateB, RewardOf(1))
		require.NoError(t, err)
		withAction, err := MapsTo(f.actA, RewardOf(1))
		require.NoError(t, err)
		mixed := Union(withState, withAction)
		assert.Equal(t, Info{HasOutcome: true}, mixed.Info())

		_, err = Join(f.stateA, mixed)
		var serr *SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Same(t, mixed, serr.Node)
	})

	t.Run("action inside one mapping alternative conflicts", func(t *testing.T) {
		full, err := MapsTo(mustJoin(t, f.stateA, f.actB), RewardOf(1))
		require.NoError(t, err)
		stateOnly, err := MapsTo(f.stateB, RewardOf(1))
		require.NoError(t, err)

		_, err = Join(f.actA, Union(full, stateOnly))
		assert.ErrorIs(t, err, ErrSyntax)
	})
}

func mustJoin(t *testing.T, left, right Node) *Conjunction {
	t.Helper()
	c, err := Join(left, right)
	require.NoError(t, err)
	return c
}

func TestMapsTo(t *testing.T) {
	f := newFixture(t)

	_, err := MapsTo(Union(f.stateA, f.actB), f.stateA)
	assert.ErrorIs(t, err, ErrSyntax)

	_, err = MapsTo(f.stateA, Union(f.stateA, f.actB))
	assert.ErrorIs(t, err, ErrSyntax)

	_, err = MapsTo(f.stateA, RewardOf(1))
	assert.NoError(t, err)
}

func TestWeight(t *testing.T) {
	f := newFixture(t)

	t.Run("reward weights multiply", func(t *testing.T) {
		n, err := Weight(RewardOf(2), 3)
		require.NoError(t, err)
		n, err = Weight(n, 0.5)
		require.NoError(t, err)

		reward, ok := n.(*RewardNode)
		require.True(t, ok)
		assert.Equal(t, 2.0, reward.Outcome().Value)
		assert.Equal(t, 1.5, reward.Outcome().Weight)
	})

	t.Run("state is promoted to weighted state", func(t *testing.T) {
		n, err := Weight(f.stateA, 2)
		require.NoError(t, err)
		ws, ok := n.(*WeightedStateNode)
		require.True(t, ok)
		assert.Same(t, f.stateA.State(), ws.Outcome().State)
		assert.Equal(t, 2.0, ws.Outcome().Weight)
	})

	t.Run("alternatives distribute", func(t *testing.T) {
		n, err := Weight(Union(f.stateA, RewardOf(1)), 4)
		require.NoError(t, err)
		alt, ok := n.(*Alternatives)
		require.True(t, ok)
		for _, c := range alt.Children() {
			switch c := c.(type) {
			case *WeightedStateNode:
				assert.Equal(t, 4.0, c.Outcome().Weight)
			case *RewardNode:
				assert.Equal(t, 4.0, c.Outcome().Weight)
			default:
				t.Fatalf("unexpected child %T", c)
			}
		}
	})

	t.Run("actions cannot be weighted", func(t *testing.T) {
		_, err := Weight(f.actA, 2)
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("invalid weights", func(t *testing.T) {
		for _, w := range []float64{0, -2, math.NaN(), math.Inf(1)} {
			_, err := Weight(RewardOf(1), w)
			assert.ErrorIs(t, err, spec.ErrInvalidWeight)
		}
	})
}

// =============================================================================
// Flatten Tests
// =============================================================================

func TestFlatten_CrossProductOrder(t *testing.T) {
	f := newFixture(t)

	trigger, err := Join(Union(f.stateA, f.stateB), Union(f.actA, f.actB))
	require.NoError(t, err)
	mapping, err := MapsTo(trigger, Union(f.stateA, RewardOf(1)))
	require.NoError(t, err)

	records, err := Flatten(mapping)
	require.NoError(t, err)
	require.Len(t, records, 8)

	type key struct {
		state, action string
		reward        bool
	}
	got := make([]key, len(records))
	for i, r := range records {
		got[i] = key{r.State.Name, r.Action.Name, r.Outcome.IsReward()}
	}
	assert.Equal(t, []key{
		{"A", "a", false}, {"B", "a", false}, {"A", "b", false}, {"B", "b", false},
		{"A", "a", true}, {"B", "a", true}, {"A", "b", true}, {"B", "b", true},
	}, got)
}

func TestFlatten_AlternativeMappings(t *testing.T) {
	f := newFixture(t)

	toA, err := MapsTo(f.actA, f.stateA)
	require.NoError(t, err)
	toB, err := MapsTo(f.actB, f.stateB)
	require.NoError(t, err)
	joined, err := Join(Union(f.stateA, f.stateB), Union(toA, toB))
	require.NoError(t, err)

	records, err := Flatten(joined)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, r := range records {
		if r.Action.Name == "a" {
			assert.Equal(t, "A", r.Outcome.State.Name)
		} else {
			assert.Equal(t, "B", r.Outcome.State.Name)
		}
	}
}

func TestFlatten_Errors(t *testing.T) {
	f := newFixture(t)

	t.Run("partial tree", func(t *testing.T) {
		conj, err := Join(f.stateA, f.actA)
		require.NoError(t, err)
		_, err = Flatten(conj)
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("terminal origin", func(t *testing.T) {
		conj, err := Join(Union(f.stateA, f.end), f.actA)
		require.NoError(t, err)
		mapping, err := MapsTo(conj, f.stateA)
		require.NoError(t, err)

		_, err = Flatten(mapping)
		require.ErrorIs(t, err, ErrSyntax)
		assert.Contains(t, err.Error(), "terminal")
	})
}

func TestRow_WriteOncePanics(t *testing.T) {
	f := newFixture(t)
	r := row{}.withState(f.stateA.State())

	assert.Panics(t, func() { r.withState(f.stateB.State()) })
	assert.Panics(t, func() {
		row{}.withOutcome(spec.Reward(1, 1)).withOutcome(spec.Reward(2, 1))
	})
	assert.Panics(t, func() {
		row{}.withAction(f.actA.Action()).withAction(f.actB.Action())
	})
}
