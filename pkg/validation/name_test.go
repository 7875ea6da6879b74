// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Valid names
		{"simple", "start", false},
		{"single char", "s", false},
		{"with digit", "a0", false},
		{"underscore", "_hidden_state", false},
		{"mixed case", "Better", false},
		{"max length", strings.Repeat("a", MaxNameLength), false},

		// Invalid names
		{"empty", "", true},
		{"leading digit", "0a", true},
		{"operator", "a|b", true},
		{"spaces", "a b", true},
		{"parenthesis", "reward(1)", true},
		{"reserved", "reward", true},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
		{"unicode", "état", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", tt.input, err)
			}
		})
	}
}

func TestValidateNames(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		wantErr bool
	}{
		{"all valid", []string{"a0", "a1"}, false},
		{"one invalid", []string{"a0", "bad!"}, true},
		{"duplicate", []string{"a0", "a0"}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNames(tt.names)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNames(%v) error = %v, wantErr %v", tt.names, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	got, err := SanitizeName("  start \n")
	if err != nil {
		t.Fatalf("SanitizeName() error = %v", err)
	}
	if got != "start" {
		t.Errorf("SanitizeName() = %q, want %q", got, "start")
	}

	if _, err := SanitizeName("   "); err == nil {
		t.Error("SanitizeName() expected error for blank input")
	}
}
