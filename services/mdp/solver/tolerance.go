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
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Default tolerances for AllClose.
const (
	DefaultRelTol = 1e-5
	DefaultAbsTol = 1e-8
)

// Tolerance decides whether two successive iterates are close enough to
// stop. Both arguments always have the same dimensions.
type Tolerance func(previous, next mat.Matrix) bool

// AllClose returns a Tolerance that holds when every element satisfies
// |previous - next| <= absTol + relTol*|next|.
func AllClose(relTol, absTol float64) Tolerance {
	return func(previous, next mat.Matrix) bool {
		r, c := previous.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				a, b := previous.At(i, j), next.At(i, j)
				if math.Abs(a-b) > absTol+relTol*math.Abs(b) {
					return false
				}
			}
		}
		return true
	}
}

// WithinAbsOrRel returns a Tolerance that holds when every element pair is
// within eps absolutely or relatively.
func WithinAbsOrRel(eps float64) Tolerance {
	return func(previous, next mat.Matrix) bool {
		r, c := previous.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if !scalar.EqualWithinAbsOrRel(previous.At(i, j), next.At(i, j), eps, eps) {
					return false
				}
			}
		}
		return true
	}
}

// maxAbsDiff returns the largest element-wise absolute difference.
func maxAbsDiff(a, b mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return floats.Norm(diff.RawMatrix().Data, math.Inf(1))
}
