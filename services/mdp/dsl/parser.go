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
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// -----------------------------------------------------------------------------
// Text Rules
// -----------------------------------------------------------------------------

// ParseRule parses one text rule and applies it to b.
//
// Description:
//
//	Grammar, from loosest to tightest binding:
//
//	  rule    = union [ ">" union ]
//	  union   = conj { "|" conj }
//	  conj    = weight { "&" weight }
//	  weight  = primary { "*" number }
//	  primary = ident | "reward" "(" number ")" | "(" rule ")"
//
//	Identifiers resolve to declared states first, then declared actions.
//	The whole rule is parsed before any operator runs, so a malformed rule
//	commits nothing. Operators then run left to right, compiling at the
//	same point they would when called through the Builder directly.
//
// Inputs:
//   - b: Builder whose specification declares every referenced name.
//   - src: Rule text, e.g. "start & (a0 | a1) > end".
//
// Outputs:
//   - Node: The resulting tree, which may or may not have been compiled.
//   - error: *ParseError, *SyntaxError, or a commit error. The error is
//     also recorded on b.
func ParseRule(b *Builder, src string) (Node, error) {
	if b.err != nil {
		return nil, b.err
	}

	p := &parser{spec: b.spec, src: src}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats
	p.s.Filename = "rule"
	p.s.Error = func(s *scanner.Scanner, msg string) {
		p.errorf(s.Position.Offset, "%s", msg)
	}
	p.next()

	e := p.rule()
	if p.err == nil && p.tok != scanner.EOF {
		p.errorf(p.pos, "unexpected %s", p.describe())
	}
	if p.err != nil {
		b.fail(p.err)
		return nil, p.err
	}

	n := e.eval(b)
	if b.err != nil {
		return nil, b.err
	}
	return n, nil
}

// Rule is the sticky form of ParseRule.
func (b *Builder) Rule(src string) Node {
	n, _ := ParseRule(b, src)
	return n
}

// expr is a parsed rule before any operator has run.
type expr struct {
	op       rune
	leaf     Node
	operands []*expr
	weight   float64
}

// eval applies the operators through b, operands first and left to right.
func (e *expr) eval(b *Builder) Node {
	switch e.op {
	case 0:
		return e.leaf
	case '*':
		return b.Times(e.operands[0].eval(b), e.weight)
	case '&':
		return b.And(e.operands[0].eval(b), e.operands[1].eval(b))
	case '>':
		return b.To(e.operands[0].eval(b), e.operands[1].eval(b))
	case '|':
		nodes := make([]Node, len(e.operands))
		for i, o := range e.operands {
			nodes[i] = o.eval(b)
		}
		return b.Or(nodes...)
	default:
		panic(fmt.Sprintf("dsl: unknown rule operator %q", e.op))
	}
}

type parser struct {
	spec *spec.Specification
	s    scanner.Scanner
	src  string

	tok  rune
	text string
	pos  int
	err  error
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
	p.pos = p.s.Position.Offset
}

func (p *parser) errorf(offset int, format string, args ...any) {
	if p.err != nil {
		return
	}
	p.err = &ParseError{Rule: p.src, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) describe() string {
	if p.tok == scanner.EOF {
		return "end of rule"
	}
	return strconv.Quote(p.text)
}

func (p *parser) expect(tok rune) {
	if p.tok != tok {
		p.errorf(p.pos, "expected %q, found %s", tok, p.describe())
		return
	}
	p.next()
}

func (p *parser) rule() *expr {
	left := p.union()
	if p.err != nil || p.tok != '>' {
		return left
	}
	p.next()
	right := p.union()
	if p.err != nil {
		return nil
	}
	if p.tok == '>' {
		p.errorf(p.pos, "chained '>' is not supported, parenthesize the mapping")
		return nil
	}
	return &expr{op: '>', operands: []*expr{left, right}}
}

func (p *parser) union() *expr {
	operands := []*expr{p.conj()}
	for p.err == nil && p.tok == '|' {
		p.next()
		operands = append(operands, p.conj())
	}
	if p.err != nil {
		return nil
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return &expr{op: '|', operands: operands}
}

func (p *parser) conj() *expr {
	left := p.weight()
	for p.err == nil && p.tok == '&' {
		p.next()
		right := p.weight()
		left = &expr{op: '&', operands: []*expr{left, right}}
	}
	return left
}

func (p *parser) weight() *expr {
	e := p.primary()
	for p.err == nil && p.tok == '*' {
		p.next()
		w, ok := p.number()
		if !ok {
			return nil
		}
		e = &expr{op: '*', operands: []*expr{e}, weight: w}
	}
	return e
}

func (p *parser) primary() *expr {
	switch p.tok {
	case scanner.Ident:
		name, at := p.text, p.pos
		p.next()
		if name == "reward" && p.tok == '(' {
			p.next()
			v, ok := p.number()
			if !ok {
				return nil
			}
			p.expect(')')
			return &expr{leaf: RewardOf(v)}
		}
		return p.resolve(name, at)
	case '(':
		p.next()
		e := p.rule()
		p.expect(')')
		return e
	default:
		p.errorf(p.pos, "expected a name, reward(...) or '(', found %s", p.describe())
		return nil
	}
}

func (p *parser) resolve(name string, at int) *expr {
	if state, ok := p.spec.StateByName(name); ok {
		return &expr{leaf: StateRef(state)}
	}
	if action, ok := p.spec.ActionByName(name); ok {
		return &expr{leaf: ActionRef(action)}
	}
	p.errorf(at, "unknown state or action %q", name)
	return nil
}

func (p *parser) number() (float64, bool) {
	sign := 1.0
	switch p.tok {
	case '-':
		sign = -1
		p.next()
	case '+':
		p.next()
	}
	if p.tok != scanner.Int && p.tok != scanner.Float {
		p.errorf(p.pos, "expected a number, found %s", p.describe())
		return 0, false
	}
	v, err := strconv.ParseFloat(p.text, 64)
	if err != nil {
		p.errorf(p.pos, "invalid number %q: %v", p.text, err)
		return 0, false
	}
	p.next()
	return sign * v, true
}
