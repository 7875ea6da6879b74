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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianMDP/services/mdp/api"
	"github.com/AleutianAI/AleutianMDP/services/mdp/catalog"
	"github.com/AleutianAI/AleutianMDP/services/mdp/document"
	store "github.com/AleutianAI/AleutianMDP/services/mdp/storage/badger"
	"github.com/AleutianAI/AleutianMDP/services/mdp/telemetry"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openCatalog opens the configured BadgerDB and wraps it in a catalog.
func (a *app) openCatalog() (*catalog.Catalog, func() error, error) {
	cfg := store.DefaultConfig(a.cfg.Catalog.Path)
	if a.cfg.Catalog.InMemory {
		cfg = store.InMemoryConfig()
	}
	cfg.GCInterval = a.cfg.Catalog.GCInterval
	cfg.GCDiscardRatio = a.cfg.Catalog.GCDiscardRatio
	cfg.Logger = slog.Default()

	db, err := store.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return catalog.New(db), db.Close, nil
}

// =============================================================================
// serve
// =============================================================================

func (a *app) serveCmd() *cobra.Command {
	var (
		port      int
		noCatalog bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				a.cfg.Server.Port = port
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if a.cfg.Logging.Level == "debug" {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			shutdown, err := telemetry.Init(ctx, a.cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
				}
			}()

			var cat *catalog.Catalog
			if !noCatalog {
				c, closeDB, err := a.openCatalog()
				if err != nil {
					return err
				}
				defer closeDB()
				cat = c
			}

			handlers := api.NewHandlers(a.cfg, cat)
			router := api.NewRouter(handlers, a.cfg.Server.MaxBodyBytes, telemetry.MetricsHandler())

			addr := a.cfg.Server.Addr()
			a.printer.Box("Aleutian MDP", fmt.Sprintf("listening on http://%s/v1/mdp", addr))
			return api.Serve(ctx, addr, router, a.cfg.Server.RequestTimeout)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default server.port)")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "disable the /specs routes and spec_id sources")
	return cmd
}

// =============================================================================
// watch
// =============================================================================

func (a *app) watchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-validate a document every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			w, err := document.NewWatcher(args[0], a.reportBuild, &document.WatcherOptions{
				DebounceWindow: debounce,
				Logger:         slog.Default(),
			})
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "wait this long after the last change")
	return cmd
}

func (a *app) reportBuild(res document.BuildResult) {
	stamp := res.Time.Format(time.TimeOnly)
	if res.Err != nil {
		a.printer.Error(fmt.Sprintf("%s %v", stamp, res.Err))
		return
	}
	s := res.Specification
	a.printer.Success(fmt.Sprintf("%s valid: %d states, %d actions", stamp, s.NumStates(), s.NumActions()))
}
