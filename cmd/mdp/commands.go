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
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianMDP/pkg/logging"
	"github.com/AleutianAI/AleutianMDP/pkg/ux"
	"github.com/AleutianAI/AleutianMDP/services/mdp/config"
	"github.com/AleutianAI/AleutianMDP/services/mdp/document"
	"github.com/AleutianAI/AleutianMDP/services/mdp/examples"
	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
)

// ErrUnknownSource is returned when a FILE argument is neither a readable
// file nor a built-in example.
var ErrUnknownSource = errors.New("not a readable file or a built-in example")

// app carries the state shared by every subcommand of one invocation.
type app struct {
	// --- Global flags ---
	configPath string
	logLevel   string
	output     string

	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
}

// newRootCmd builds the full command tree.
func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mdp",
		Short: "Build, solve and simulate Markov decision processes",
		Long: `mdp works with Markov decision processes written as YAML or JSON
specification documents. Every FILE argument may also name a built-in example;
run "mdp examples" to list them.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $MDP_CONFIG or ~/.mdp/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flags.StringVarP(&a.output, "output", "o", "rich", "output style (rich, minimal, machine)")

	root.AddCommand(
		a.validateCmd(),
		a.solveCmd(),
		a.simulateCmd(),
		a.examplesCmd(),
		a.serveCmd(),
		a.watchCmd(),
		a.catalogCmd(),
	)
	return root
}

// setup loads configuration and installs the logger and printer.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	level, ok := logging.ParseLevel(cfg.Logging.Level)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}
	outputLevel, ok := ux.ParseLevel(a.output)
	if !ok {
		return fmt.Errorf("unknown output style %q", a.output)
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "mdp",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	a.logger.SetDefault()
	a.printer = ux.NewPrinter(cmd.OutOrStdout(), outputLevel)
	return nil
}

// loadSpec builds the specification named by arg: a document file when one
// exists at that path, otherwise a built-in example.
func loadSpec(ctx context.Context, arg string) (*spec.Specification, error) {
	if _, err := os.Stat(arg); err == nil {
		doc, err := document.LoadFile(arg)
		if err != nil {
			return nil, err
		}
		return doc.Build(ctx)
	}

	s, err := examples.Build(arg)
	if errors.Is(err, examples.ErrUnknownExample) {
		return nil, fmt.Errorf("%q: %w", arg, ErrUnknownSource)
	}
	return s, err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func displayName(s *spec.Specification, fallback string) string {
	if s.Name != "" {
		return s.Name
	}
	return fallback
}
