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
	"fmt"
)

// Package-level error definitions.
var (
	// ErrSyntax is matched by every *SyntaxError.
	ErrSyntax = errors.New("dsl syntax error")

	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("dsl parse error")

	// ErrNilNode is returned when a nil node is passed to the builder
	// without a prior error explaining it.
	ErrNilNode = errors.New("nil node")

	// ErrEmptyAlternatives is returned when Or is called with no nodes.
	ErrEmptyAlternatives = errors.New("empty alternatives")
)

// SyntaxError reports an expression whose roles do not fit together.
//
// Node is the offending subtree.
type SyntaxError struct {
	Node   Node
	Reason string
}

func (e *SyntaxError) Error() string {
	return "syntax error: " + e.Reason
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

func syntaxErrorf(n Node, format string, args ...any) *SyntaxError {
	return &SyntaxError{Node: n, Reason: fmt.Sprintf(format, args...)}
}

// ParseError reports a text rule that could not be tokenized or parsed.
type ParseError struct {
	// Rule is the source text.
	Rule string

	// Offset is the byte offset of the failure in Rule.
	Offset int

	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at offset %d: %s", e.Rule, e.Offset, e.Msg)
}

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
