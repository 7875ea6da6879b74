// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
		ok    bool
	}{
		{"", LevelRich, true},
		{"rich", LevelRich, true},
		{" Minimal ", LevelMinimal, true},
		{"MACHINE", LevelMachine, true},
		{"loud", LevelRich, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, LevelMachine)

	p.Title("ignored")
	p.Success("done")
	p.Warning("careful")
	p.Error("broken")
	p.KeyValue("states", 3)
	p.Box("discount", "0.5")
	p.Table([]string{"state", "value"}, [][]string{{"start", "1"}, {"end", "0"}})

	want := "OK: done\n" +
		"WARN: careful\n" +
		"ERROR: broken\n" +
		"states\t3\n" +
		"discount: 0.5\n" +
		"state\tvalue\n" +
		"start\t1\n" +
		"end\t0\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_Table(t *testing.T) {
	for _, level := range []Level{LevelRich, LevelMinimal} {
		t.Run(string(level), func(t *testing.T) {
			var buf bytes.Buffer
			NewPrinter(&buf, level).Table([]string{"state", "value"}, [][]string{{"start", "1.5"}})

			out := buf.String()
			assert.Contains(t, out, "state")
			assert.Contains(t, out, "start")
			assert.Contains(t, out, "1.5")
		})
	}
}

func TestPrinter_Level(t *testing.T) {
	assert.Equal(t, LevelMinimal, NewPrinter(&bytes.Buffer{}, LevelMinimal).Level())
}
