// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document is the file format for specifications.
//
// A document declares states and actions, then describes transitions either
// as text rules compiled by the dsl package or as explicit weighted tables:
//
//	name: one-round
//	discount: 0.9
//	states:
//	  - name: start
//	  - name: end
//	    terminal: true
//	actions: [a0, a1]
//	rules:
//	  - start & (a0 | a1) > end
//	transitions:
//	  - state: start
//	    action: a1
//	    rewards: [{value: 1}]
//
// JSON documents with the same shape are accepted by Parse.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianMDP/pkg/validation"
	"github.com/AleutianAI/AleutianMDP/services/mdp/dsl"
	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// Package-level error definitions.
var (
	ErrInvalidDocument = errors.New("invalid document")
	ErrUnknownName     = errors.New("unknown state or action")
	ErrEmptyTransition = errors.New("transition has no next states and no rewards")
)

// =============================================================================
// Document Model
// =============================================================================

// Document is the serialized form of a specification.
type Document struct {
	Name        string       `yaml:"name,omitempty" json:"name,omitempty" validate:"omitempty,max=128"`
	Discount    *float64     `yaml:"discount,omitempty" json:"discount,omitempty" validate:"omitempty,gte=0,lte=1"`
	States      []StateDecl  `yaml:"states" json:"states" validate:"required,min=1,dive"`
	Actions     []string     `yaml:"actions" json:"actions" validate:"required,min=1,dive,mdpname"`
	Rules       []string     `yaml:"rules,omitempty" json:"rules,omitempty" validate:"dive,required"`
	Transitions []Transition `yaml:"transitions,omitempty" json:"transitions,omitempty" validate:"dive"`
}

// StateDecl declares one state.
type StateDecl struct {
	Name     string `yaml:"name" json:"name" validate:"mdpname"`
	Terminal bool   `yaml:"terminal,omitempty" json:"terminal,omitempty"`
}

// Transition lists the weighted outcomes of one (state, action) pair.
type Transition struct {
	State   string       `yaml:"state" json:"state" validate:"mdpname"`
	Action  string       `yaml:"action" json:"action" validate:"mdpname"`
	Next    []NextState  `yaml:"next,omitempty" json:"next,omitempty" validate:"dive"`
	Rewards []RewardDecl `yaml:"rewards,omitempty" json:"rewards,omitempty" validate:"dive"`
}

// NextState is a weighted next state. An omitted weight means 1.
type NextState struct {
	State  string   `yaml:"state" json:"state" validate:"mdpname"`
	Weight *float64 `yaml:"weight,omitempty" json:"weight,omitempty" validate:"omitnil,gt=0"`
}

// RewardDecl is a weighted reward value. An omitted weight means 1.
type RewardDecl struct {
	Value  float64  `yaml:"value" json:"value"`
	Weight *float64 `yaml:"weight,omitempty" json:"weight,omitempty" validate:"omitnil,gt=0"`
}

// =============================================================================
// Validation
// =============================================================================

var documentValidate *validator.Validate

func init() {
	documentValidate = validator.New()
	_ = documentValidate.RegisterValidation("mdpname", validateName)
}

// validateName accepts identifiers the rule parser can resolve.
func validateName(fl validator.FieldLevel) bool {
	return validation.ValidateName(fl.Field().String()) == nil
}

// Validate checks the structure of d without building it.
func (d *Document) Validate() error {
	if err := documentValidate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "Weight" {
					return fmt.Errorf("%w: %w: %v", ErrInvalidDocument, spec.ErrInvalidWeight, err)
				}
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	names := make([]string, 0, len(d.States)+len(d.Actions))
	for _, st := range d.States {
		names = append(names, st.Name)
	}
	names = append(names, d.Actions...)
	if err := validation.ValidateNames(names); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// =============================================================================
// Parsing
// =============================================================================

// Parse decodes a YAML or JSON document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d Document
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFile reads and parses the document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Marshal encodes d as YAML.
func Marshal(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// Building
// =============================================================================

// Build compiles d into a validated specification.
//
// Description:
//
//	States and actions are declared in document order, so their indices
//	match the document. Rules compile next through a dsl.Builder, then the
//	explicit transitions are committed one pair at a time. The result is
//	validated before it is returned.
//
// Inputs:
//   - ctx: Context passed to the rule compiler for tracing.
//
// Outputs:
//   - *spec.Specification: The validated specification.
//   - error: ErrInvalidDocument, a rule error, or a validation error.
func (d *Document) Build(ctx context.Context) (*spec.Specification, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s := spec.New()
	s.Name = d.Name
	for _, st := range d.States {
		if _, err := s.DeclareState(st.Name, st.Terminal); err != nil {
			return nil, err
		}
	}
	for _, a := range d.Actions {
		s.DeclareAction(a)
	}
	if d.Discount != nil {
		if err := s.SetDiscount(*d.Discount); err != nil {
			return nil, err
		}
	}

	b := dsl.NewBuilder(s, dsl.WithContext(ctx))
	for i, rule := range d.Rules {
		if _, err := dsl.ParseRule(b, rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}

	for i, t := range d.Transitions {
		records, err := t.records(s)
		if err != nil {
			return nil, fmt.Errorf("transition %d: %w", i+1, err)
		}
		if err := s.CommitAll(records); err != nil {
			return nil, fmt.Errorf("transition %d: %w", i+1, err)
		}
	}

	return s.Validate()
}

func (t Transition) records(s *spec.Specification) ([]spec.TransitionRecord, error) {
	if len(t.Next) == 0 && len(t.Rewards) == 0 {
		return nil, ErrEmptyTransition
	}
	state, ok := s.StateByName(t.State)
	if !ok {
		return nil, fmt.Errorf("%w: state %q", ErrUnknownName, t.State)
	}
	action, ok := s.ActionByName(t.Action)
	if !ok {
		return nil, fmt.Errorf("%w: action %q", ErrUnknownName, t.Action)
	}

	records := make([]spec.TransitionRecord, 0, len(t.Next)+len(t.Rewards))
	for _, n := range t.Next {
		next, ok := s.StateByName(n.State)
		if !ok {
			return nil, fmt.Errorf("%w: state %q", ErrUnknownName, n.State)
		}
		records = append(records, spec.TransitionRecord{
			State: state, Action: action, Outcome: spec.NextState(next, weightOrOne(n.Weight)),
		})
	}
	for _, r := range t.Rewards {
		records = append(records, spec.TransitionRecord{
			State: state, Action: action, Outcome: spec.Reward(r.Value, weightOrOne(r.Weight)),
		})
	}
	return records, nil
}

func weightOrOne(w *float64) float64 {
	if w == nil {
		return 1
	}
	return *w
}

// explicitWeight returns nil for the default weight.
func explicitWeight(w float64) *float64 {
	if w == 1 {
		return nil
	}
	return &w
}

// FromSpecification exports s as a document with explicit transitions.
//
// Records of the same (state, action) pair are grouped under the first
// position the pair was committed at. Weights are kept as committed, so
// building the result reproduces the same normalized distributions.
func FromSpecification(s *spec.Specification) *Document {
	d := &Document{Name: s.Name}
	if discount := s.Discount(); discount != 1 {
		d.Discount = &discount
	}
	for _, st := range s.States() {
		d.States = append(d.States, StateDecl{Name: st.Name, Terminal: st.Terminal})
	}
	for _, a := range s.Actions() {
		d.Actions = append(d.Actions, a.Name)
	}

	type pair struct{ state, action int }
	index := make(map[pair]int)
	for _, r := range s.Transitions() {
		key := pair{r.State.Index, r.Action.Index}
		i, ok := index[key]
		if !ok {
			i = len(d.Transitions)
			index[key] = i
			d.Transitions = append(d.Transitions, Transition{State: r.State.Name, Action: r.Action.Name})
		}
		t := &d.Transitions[i]
		if r.Outcome.IsReward() {
			t.Rewards = append(t.Rewards, RewardDecl{Value: r.Outcome.Value, Weight: explicitWeight(r.Outcome.Weight)})
		} else {
			t.Next = append(t.Next, NextState{State: r.Outcome.State.Name, Weight: explicitWeight(r.Outcome.Weight)})
		}
	}
	return d
}
