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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

func newRuleBuilder(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder(spec.New())
	b.State("start")
	b.State("mid")
	b.TerminalState("end")
	b.Action("left")
	b.Action("right")
	require.NoError(t, b.Err())
	return b
}

func TestParseRule(t *testing.T) {
	t.Run("union of actions then mapping", func(t *testing.T) {
		b := newRuleBuilder(t)
		_, err := ParseRule(b, "start & (left | right) > end")
		require.NoError(t, err)
		assert.Len(t, b.Spec().Transitions(), 2)
	})

	t.Run("mapping binds loosest", func(t *testing.T) {
		b := newRuleBuilder(t)
		_, err := ParseRule(b, "start & left > reward(5) | start | end * 2")
		require.NoError(t, err)

		records := b.Spec().Transitions()
		require.Len(t, records, 3)
		assert.Equal(t, spec.Reward(5, 1), records[0].Outcome)
		assert.Equal(t, "start", records[1].Outcome.State.Name)
		assert.Equal(t, "end", records[2].Outcome.State.Name)
		assert.Equal(t, 2.0, records[2].Outcome.Weight)
	})

	t.Run("parenthesized mapping joins with states", func(t *testing.T) {
		b := newRuleBuilder(t)
		_, err := ParseRule(b, "(start | mid) & ((left > start) | (right > mid))")
		require.NoError(t, err)
		assert.Len(t, b.Spec().Transitions(), 4)
	})

	t.Run("negative and fractional numbers", func(t *testing.T) {
		b := newRuleBuilder(t)
		_, err := ParseRule(b, "mid & left > reward(-1.5) * 0.25 | reward(1.)")
		require.NoError(t, err)

		records := b.Spec().Transitions()
		require.Len(t, records, 2)
		assert.Equal(t, spec.Reward(-1.5, 0.25), records[0].Outcome)
		assert.Equal(t, spec.Reward(1, 1), records[1].Outcome)
	})

	t.Run("partial rule returns uncompiled node", func(t *testing.T) {
		b := newRuleBuilder(t)
		n, err := ParseRule(b, "left | right")
		require.NoError(t, err)
		assert.Equal(t, Info{HasAction: true}, n.Info())
		assert.Empty(t, b.Spec().Transitions())
	})
}

func TestParseRule_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"unknown name", "start & jump > end", ErrParse},
		{"chained mapping", "start & left > mid > end", ErrParse},
		{"trailing token", "start & left > end )", ErrParse},
		{"missing operand", "start & > end", ErrParse},
		{"bad weight", "start & left > end * x", ErrParse},
		{"unclosed reward", "start & left > reward(1", ErrParse},
		{"two states", "start & mid", ErrSyntax},
		{"mixed alternatives", "start | left > start", ErrSyntax},
		{"action as outcome", "start > start | left", ErrSyntax},
		{"terminal origin", "end & left > start", ErrSyntax},
		{"zero weight", "start & left > end * 0", spec.ErrInvalidWeight},
		{"state hidden in one mapping branch", "right & (start & ((mid > reward(1)) | (left > reward(1))))", ErrSyntax},
		{"action hidden in one mapping branch", "mid & (left & ((right > reward(1)) | (start > reward(1))))", ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newRuleBuilder(t)
			n, err := ParseRule(b, tt.src)
			assert.Nil(t, n)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, b.Err(), tt.wantErr)
			assert.Empty(t, b.Spec().Transitions())
		})
	}
}

func TestParseRule_ReportsOffset(t *testing.T) {
	b := newRuleBuilder(t)
	_, err := ParseRule(b, "start & jump > end")

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 8, perr.Offset)
	assert.Contains(t, perr.Msg, "jump")
}

func TestBuilder_Rule(t *testing.T) {
	b := newRuleBuilder(t)
	b.Rule("start & left > mid")
	b.Rule("start & right > end | reward(1)")
	b.Rule("mid & (left | right) > end")

	s, err := b.Validate()
	require.NoError(t, err)
	assert.Len(t, s.Transitions(), 5)
}
