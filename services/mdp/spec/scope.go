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

import "sync"

// -----------------------------------------------------------------------------
// Session Scope
// -----------------------------------------------------------------------------

// The process-wide "current" specification. Most callers should pass a
// *Specification explicitly; the scope exists for code that wants ambient
// access during a build session.
var (
	scopeMu sync.Mutex
	current *Specification
)

// Enter makes s the current specification and returns a function that
// restores the previous one.
//
// Description:
//
//	Scopes nest with stack discipline: each restore reinstates exactly the
//	specification that was current when its Enter was called. Calling the
//	restore function more than once has no further effect.
//
// Example:
//
//	restore := spec.Enter(s)
//	defer restore()
func Enter(s *Specification) (restore func()) {
	scopeMu.Lock()
	previous := current
	current = s
	scopeMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			scopeMu.Lock()
			current = previous
			scopeMu.Unlock()
		})
	}
}

// Current returns the current specification, or nil outside any scope.
func Current() *Specification {
	scopeMu.Lock()
	defer scopeMu.Unlock()
	return current
}

// WithNew runs fn inside a scope over a fresh specification.
//
// The previous scope is restored when fn returns, panics, or fails. On
// failure the partially built specification is still returned so callers
// can inspect what was committed before the error.
func WithNew(fn func(*Specification) error) (*Specification, error) {
	s := New()
	restore := Enter(s)
	defer restore()

	if err := fn(s); err != nil {
		return s, err
	}
	return s, nil
}
