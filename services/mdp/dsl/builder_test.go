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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

func TestBuilder_CompilesWhenFullySpecified(t *testing.T) {
	b := NewBuilder(spec.New())
	stateA, stateB := b.State("A"), b.State("B")
	actA, actB := b.Action("a"), b.Action("b")

	b.To(b.And(stateA, actA), stateA)
	b.To(b.And(stateA, actB), stateB)
	b.To(b.And(stateB, b.Or(actA, actB)), stateB)

	require.NoError(t, b.Err())
	rules, transitions := b.Compiled()
	assert.Equal(t, 3, rules)
	assert.Equal(t, 4, transitions)
	assert.Len(t, b.Spec().Transitions(), 4)

	_, err := b.Validate()
	assert.NoError(t, err)
}

func TestBuilder_PartialExpressionsDoNotCompile(t *testing.T) {
	b := NewBuilder(spec.New())
	stateA := b.State("A")
	actA := b.Action("a")

	conj := b.And(stateA, actA)
	require.NotNil(t, conj)
	mapping := b.To(actA, stateA)
	require.NotNil(t, mapping)

	rules, _ := b.Compiled()
	assert.Zero(t, rules)
	assert.Empty(t, b.Spec().Transitions())
}

func TestBuilder_Alternatives(t *testing.T) {
	t.Run("alternatives on both sides", func(t *testing.T) {
		b := NewBuilder(spec.New())
		stateA, stateB := b.State(""), b.State("")
		actA, actB := b.Action(""), b.Action("")

		b.To(b.And(b.Or(stateA, stateB), b.Or(actA, actB)), b.Or(stateA, stateB))

		require.NoError(t, b.Err())
		assert.Len(t, b.Spec().Transitions(), 8)
	})

	t.Run("join with alternative mapping", func(t *testing.T) {
		b := NewBuilder(spec.New())
		stateA, stateB := b.State(""), b.State("")
		actA, actB := b.Action(""), b.Action("")

		b.And(b.Or(stateA, stateB), b.To(b.Or(actA, actB), b.Or(stateA, stateB)))

		require.NoError(t, b.Err())
		rules, transitions := b.Compiled()
		assert.Equal(t, 1, rules)
		assert.Equal(t, 8, transitions)
	})

	t.Run("join with alternatives of mappings", func(t *testing.T) {
		b := NewBuilder(spec.New())
		stateA, stateB := b.State(""), b.State("")
		actA, actB := b.Action(""), b.Action("")

		b.And(b.Or(stateA, stateB), b.Or(b.To(actA, stateA), b.To(actB, stateB)))

		require.NoError(t, b.Err())
		assert.Len(t, b.Spec().Transitions(), 4)
		_, err := b.Validate()
		assert.NoError(t, err)
	})
}

func TestBuilder_WeightedOutcomes(t *testing.T) {
	t.Run("weighted next states", func(t *testing.T) {
		b := NewBuilder(spec.New())
		state, action := b.State(""), b.Action("")

		b.To(b.And(state, action), b.Times(state, 0.5))
		b.To(b.And(state, action), b.Or(b.Times(state, 2), b.Times(state, 5)))

		_, err := b.Validate()
		require.NoError(t, err)
	})

	t.Run("weighted rewards merge", func(t *testing.T) {
		b := NewBuilder(spec.New())
		state, action := b.State(""), b.Action("")

		b.To(b.And(state, action), state)
		b.To(b.And(state, action), b.Times(b.Reward(1), 1))
		b.To(b.And(state, action), b.Or(b.Times(b.Reward(1), 1), b.Times(b.Reward(2), 3)))
		require.NoError(t, b.Err())

		n, err := b.Spec().Normalize()
		require.NoError(t, err)
		rewards := n.Rewards(0, 0)
		assert.InDelta(t, 0.4, rewards.ProbabilityOf(1), 1e-12)
		assert.InDelta(t, 0.6, rewards.ProbabilityOf(2), 1e-12)
	})
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("two states conjoined", func(t *testing.T) {
		b := NewBuilder(spec.New())
		assert.Nil(t, b.And(b.State("A"), b.State("B")))
		assert.ErrorIs(t, b.Err(), ErrSyntax)
	})

	t.Run("two actions conjoined", func(t *testing.T) {
		b := NewBuilder(spec.New())
		b.And(b.Action("a"), b.Action("b"))
		assert.ErrorIs(t, b.Err(), ErrSyntax)
	})

	t.Run("mixed alternatives as trigger", func(t *testing.T) {
		b := NewBuilder(spec.New())
		stateA, actB := b.State("A"), b.Action("b")
		b.To(b.Or(stateA, actB), stateA)
		assert.ErrorIs(t, b.Err(), ErrSyntax)
	})

	t.Run("action inside outcome", func(t *testing.T) {
		b := NewBuilder(spec.New())
		stateA, actB := b.State("A"), b.Action("b")
		b.To(stateA, b.Or(stateA, actB))
		assert.ErrorIs(t, b.Err(), ErrSyntax)
	})

	t.Run("terminal origin commits nothing", func(t *testing.T) {
		b := NewBuilder(spec.New())
		start, end := b.State("start"), b.TerminalState("end")
		act := b.Action("")
		b.To(b.And(b.Or(start, end), act), start)

		assert.ErrorIs(t, b.Err(), ErrSyntax)
		assert.Empty(t, b.Spec().Transitions())
	})

	t.Run("missing next state fails validation", func(t *testing.T) {
		b := NewBuilder(spec.New())
		b.State("")
		b.Action("")
		_, err := b.Validate()
		assert.ErrorIs(t, err, spec.ErrValidation)
	})

	t.Run("invalid discount", func(t *testing.T) {
		b := NewBuilder(spec.New())
		b.Discount(2)
		assert.ErrorIs(t, b.Err(), spec.ErrInvalidDiscount)
	})

	t.Run("nil operand", func(t *testing.T) {
		b := NewBuilder(spec.New())
		b.And(nil, b.Action(""))
		assert.ErrorIs(t, b.Err(), ErrNilNode)
	})

	t.Run("empty alternatives", func(t *testing.T) {
		b := NewBuilder(spec.New())
		assert.Nil(t, b.Or())
		assert.ErrorIs(t, b.Err(), ErrEmptyAlternatives)

		var serr *SyntaxError
		assert.False(t, errors.As(b.Err(), &serr))
	})

	t.Run("state hidden in one mapping branch", func(t *testing.T) {
		b := NewBuilder(spec.New())
		s0, s1 := b.State("s0"), b.State("s1")
		a0, a1 := b.Action("a0"), b.Action("a1")
		branches := b.Or(b.To(s1, b.Reward(1)), b.To(a0, b.Reward(1)))

		assert.NotPanics(t, func() {
			b.And(a1, b.And(s0, branches))
		})
		assert.ErrorIs(t, b.Err(), ErrSyntax)
		assert.Empty(t, b.Spec().Transitions())
	})
}

func TestBuilder_ErrorsAreSticky(t *testing.T) {
	b := NewBuilder(spec.New())
	stateA, stateB := b.State("A"), b.State("B")
	act := b.Action("a")

	b.And(stateA, stateB)
	first := b.Err()
	require.Error(t, first)

	assert.Nil(t, b.State("C"))
	assert.Nil(t, b.To(b.And(stateA, act), stateB))
	b.Discount(0.5)

	assert.Equal(t, first, b.Err())
	assert.Empty(t, b.Spec().Transitions())
	assert.Equal(t, 1.0, b.Spec().Discount())
	assert.Equal(t, 2, b.Spec().NumStates())

	_, err := b.Validate()
	assert.Equal(t, first, err)
}

func TestBuilder_Discount(t *testing.T) {
	b := NewBuilder(spec.New())
	b.Discount(0.5)
	require.NoError(t, b.Err())
	assert.Equal(t, 0.5, b.Spec().Discount())
}
