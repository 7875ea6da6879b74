// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for user-provided names.
//
// State and action names are resolved by the text rule parser, so they must
// be plain identifiers that cannot be confused with operators, numbers, or
// reward literals.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidName is wrapped by every name validation failure.
var ErrInvalidName = errors.New("invalid name")

// MaxNameLength bounds state and action names.
const MaxNameLength = 64

// namePattern matches identifiers: a letter or underscore, then letters,
// digits, or underscores.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved names are keywords of the rule syntax.
var reserved = map[string]bool{
	"reward": true,
}

// ValidateName validates a state or action name.
//
// Valid names:
//   - 1-64 characters
//   - Letters, digits, and underscores
//   - Not starting with a digit
//   - Not a reserved word ("reward")
//
// Example:
//
//	if err := validation.ValidateName(name); err != nil {
//	    return fmt.Errorf("state %d: %w", i, err)
//	}
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q (must be letters, digits, or underscores, not starting with a digit)", ErrInvalidName, name)
	}
	if reserved[name] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

// ValidateNames validates multiple names and rejects duplicates.
// Returns an error listing all invalid names if any fail validation.
func ValidateNames(names []string) error {
	var invalid []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if err := ValidateName(n); err != nil || seen[n] {
			invalid = append(invalid, n)
		}
		seen[n] = true
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidName, invalid)
	}
	return nil
}

// SanitizeName trims surrounding whitespace and validates the result.
func SanitizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := ValidateName(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
