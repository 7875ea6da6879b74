// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianMDP/services/mdp/document"
	"github.com/AleutianAI/AleutianMDP/services/mdp/env"
	"github.com/AleutianAI/AleutianMDP/services/mdp/examples"
	"github.com/AleutianAI/AleutianMDP/services/mdp/report"
	"github.com/AleutianAI/AleutianMDP/services/mdp/solver"
	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// =============================================================================
// validate
// =============================================================================

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check that a specification is complete and consistent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSpec(cmd.Context(), args[0])
			if err != nil {
				a.printer.Error(err.Error())
				return err
			}

			a.printer.Success(fmt.Sprintf("%s is valid", displayName(s, args[0])))
			a.printer.KeyValue("states", s.NumStates())
			a.printer.KeyValue("actions", s.NumActions())
			a.printer.KeyValue("discount", formatFloat(s.Discount()))
			a.printer.KeyValue("deterministic", s.IsDeterministic())
			a.printer.KeyValue("transitions", len(s.Transitions()))

			rows := make([][]string, 0, s.NumStates())
			for _, st := range s.States() {
				rows = append(rows, []string{strconv.Itoa(st.Index), st.Name, strconv.FormatBool(st.Terminal)})
			}
			a.printer.Table([]string{"index", "state", "terminal"}, rows)
			return nil
		},
	}
}

// =============================================================================
// solve
// =============================================================================

func (a *app) solveCmd() *cobra.Command {
	var (
		mode          string
		maxIterations int
		chartPath     string
	)
	cmd := &cobra.Command{
		Use:   "solve FILE",
		Short: "Compute optimal values and the greedy policy by value iteration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = a.cfg.Solver.Mode
			}
			if maxIterations <= 0 {
				maxIterations = a.cfg.Solver.MaxIterations
			}
			m, err := solver.ParseMode(mode)
			if err != nil {
				return err
			}

			s, err := loadSpec(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sv, err := solver.New(s)
			if err != nil {
				return err
			}

			var deltas []float64
			opts := solver.Options{
				MaxIterations: maxIterations,
				Tolerance:     solver.AllClose(a.cfg.Solver.RelTol, a.cfg.Solver.AbsTol),
				OnIteration:   func(_ int, delta float64) { deltas = append(deltas, delta) },
			}
			var q *mat.Dense
			if m == solver.ModeQ {
				q, err = sv.ComputeQ(cmd.Context(), opts)
			} else {
				var v *mat.VecDense
				if v, err = sv.ComputeV(cmd.Context(), opts); err == nil {
					q = sv.QFromV(v)
				}
			}
			if err != nil {
				a.printer.Warning(fmt.Sprintf("no solution after %d iterations", len(deltas)))
				return err
			}

			v := sv.VFromQ(q)
			a.printSolution(s, m, len(deltas), q, v)

			if chartPath != "" {
				run := report.Run{
					Title:  displayName(s, args[0]),
					Mode:   string(m),
					Deltas: deltas,
					Values: v.RawVector().Data,
				}
				for _, st := range s.States() {
					run.States = append(run.States, st.Name)
				}
				if err := report.WriteFile(chartPath, run); err != nil {
					return err
				}
				a.printer.Success("chart written to " + chartPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "iterate the state values (v) or the state-action table (q)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration budget (default solver.max_iterations)")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write an HTML convergence chart to this path")
	return cmd
}

func (a *app) printSolution(s *spec.Specification, m solver.Mode, iterations int, q *mat.Dense, v *mat.VecDense) {
	a.printer.Success(fmt.Sprintf("converged in %d iterations (mode %s)", iterations, m))

	actions := s.Actions()
	headers := []string{"state", "V", "policy"}
	for _, act := range actions {
		headers = append(headers, "Q("+act.Name+")")
	}

	policy := solver.GreedyPolicy(q)
	rows := make([][]string, 0, s.NumStates())
	for _, st := range s.States() {
		row := []string{st.Name, formatFloat(v.AtVec(st.Index)), actions[policy[st.Index]].Name}
		for _, act := range actions {
			row = append(row, formatFloat(q.At(st.Index, act.Index)))
		}
		rows = append(rows, row)
	}
	a.printer.Table(headers, rows)
}

// =============================================================================
// simulate
// =============================================================================

func (a *app) simulateCmd() *cobra.Command {
	var (
		opts   env.SimulateOptions
		policy []string
	)
	cmd := &cobra.Command{
		Use:   "simulate FILE",
		Short: "Run episodes of a policy and report returns",
		Long: `Run episodes of a policy and report returns.

Without --policy the greedy policy of the solved specification is used.
--policy takes one action name per state, in state order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Episodes <= 0 {
				opts.Episodes = a.cfg.Simulation.Episodes
			}
			if opts.MaxSteps <= 0 {
				opts.MaxSteps = a.cfg.Simulation.MaxSteps
			}
			if opts.Seed == 0 {
				opts.Seed = a.cfg.Simulation.Seed
			}

			s, err := loadSpec(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			actions, err := a.resolvePolicy(cmd, s, policy)
			if err != nil {
				return err
			}

			summary, err := env.Simulate(cmd.Context(), s, actions, opts)
			if err != nil {
				return err
			}

			a.printer.Success(fmt.Sprintf("%d of %d episodes finished", summary.Completed, summary.Episodes))
			a.printer.KeyValue("seed", summary.Seed)
			a.printer.KeyValue("mean steps", formatFloat(summary.MeanSteps))
			a.printer.KeyValue("mean return", formatFloat(summary.MeanReturn))
			a.printer.KeyValue("std return", formatFloat(summary.StdReturn))
			a.printer.KeyValue("mean discounted return", formatFloat(summary.MeanDiscountedReturn))
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Episodes, "episodes", 0, "number of episodes (default simulation.episodes)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "step cap per episode (default simulation.max_steps)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (0 draws one)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent episodes (default GOMAXPROCS)")
	cmd.Flags().StringSliceVar(&policy, "policy", nil, "comma-separated action per state")
	return cmd
}

// resolvePolicy maps action names to indices, or solves for the greedy
// policy when names is empty.
func (a *app) resolvePolicy(cmd *cobra.Command, s *spec.Specification, names []string) ([]int, error) {
	if len(names) > 0 {
		out := make([]int, len(names))
		for i, name := range names {
			act, ok := s.ActionByName(name)
			if !ok {
				return nil, fmt.Errorf("%w: unknown action %q", env.ErrInvalidPolicy, name)
			}
			out[i] = act.Index
		}
		return out, nil
	}

	sv, err := solver.New(s)
	if err != nil {
		return nil, err
	}
	q, err := sv.ComputeQ(cmd.Context(), solver.Options{
		MaxIterations: a.cfg.Solver.MaxIterations,
		Tolerance:     solver.AllClose(a.cfg.Solver.RelTol, a.cfg.Solver.AbsTol),
	})
	if err != nil {
		return nil, err
	}
	return solver.GreedyPolicy(q), nil
}

// =============================================================================
// examples
// =============================================================================

func (a *app) examplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples [NAME]",
		Short: "List built-in examples, or print one as a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				all := examples.Catalog()
				rows := make([][]string, len(all))
				for i, e := range all {
					rows[i] = []string{e.Name, e.Description}
				}
				a.printer.Table([]string{"name", "description"}, rows)
				return nil
			}

			s, err := examples.Build(args[0])
			if err != nil {
				return err
			}
			data, err := document.Marshal(document.FromSpecification(s))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
