// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Package-level error definitions.
var (
	// ErrNoConvergence is matched by every *ConvergenceError.
	ErrNoConvergence = errors.New("value iteration did not converge")

	// ErrEmptySpecification is returned for specifications without states
	// or without actions.
	ErrEmptySpecification = errors.New("specification needs at least one state and one action")

	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownMode is returned for modes other than "v" and "q".
	ErrUnknownMode = errors.New("unknown solver mode")
)

// ConvergenceError reports a fixed-point iteration that exhausted its budget.
type ConvergenceError struct {
	// Iterations is the number of iterations performed.
	Iterations int

	// Last is the final iterate (a V vector or a Q table).
	Last mat.Matrix
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("no convergence after %d iterations:\n%v",
		e.Iterations, mat.Formatted(e.Last, mat.Squeeze()))
}

// Is reports whether target is ErrNoConvergence.
func (e *ConvergenceError) Is(target error) bool {
	return target == ErrNoConvergence
}
