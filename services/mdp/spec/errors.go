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

import (
	"errors"
	"fmt"
)

// Package-level error definitions.
var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("specification validation failed")

	// ErrNoNextStates means a non-terminal (state, action) pair has no next state.
	ErrNoNextStates = errors.New("no next states specified for non-terminal pair")

	// ErrTerminalNextStates means next states were specified for a terminal state.
	ErrTerminalNextStates = errors.New("next states specified for terminal pair")

	// ErrTerminalRewards means rewards were specified for a terminal state.
	ErrTerminalRewards = errors.New("rewards specified for terminal pair")

	// ErrTerminalTransition is returned when committing a transition whose
	// origin is a terminal state.
	ErrTerminalTransition = errors.New("cannot specify a transition for a terminal state")

	// ErrInvalidWeight is returned for weights that are not finite and positive.
	ErrInvalidWeight = errors.New("outcome weight must be finite and positive")

	// ErrInvalidReward is returned for NaN or infinite reward values.
	ErrInvalidReward = errors.New("reward value must be finite")

	// ErrInvalidDiscount is returned for discounts outside [0, 1].
	ErrInvalidDiscount = errors.New("discount must be within [0, 1]")

	// ErrForeignReference is returned when a state or action from another
	// specification is used.
	ErrForeignReference = errors.New("state or action belongs to a different specification")

	// ErrStateConflict is returned when a state name is redeclared with a
	// different terminal flag.
	ErrStateConflict = errors.New("state redeclared with conflicting terminal flag")

	// ErrIndexOutOfRange is returned for state or action indices that were
	// never assigned.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ValidationError reports a (state, action) pair that violates the
// completeness rules of a normalized specification.
//
// errors.Is matches both ErrValidation and the specific cause in Err.
type ValidationError struct {
	State  string
	Action string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: (%s, %s): %v", e.State, e.Action, e.Err)
}

// Unwrap returns the specific cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
