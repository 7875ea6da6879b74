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
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianMDP/services/mdp/catalog"
	"github.com/AleutianAI/AleutianMDP/services/mdp/document"
	"github.com/AleutianAI/AleutianMDP/services/mdp/examples"
)

func (a *app) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage stored specification documents",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "put FILE",
			Short: "Store a document file or a built-in example",
			Args:  cobra.ExactArgs(1),
			RunE: a.withCatalog(func(cmd *cobra.Command, cat *catalog.Catalog, args []string) error {
				doc, err := loadDocument(args[0])
				if err != nil {
					return err
				}
				id, err := cat.Put(cmd.Context(), doc)
				if err != nil {
					return err
				}
				a.printer.Success("stored " + id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "get ID",
			Short: "Print a stored document",
			Args:  cobra.ExactArgs(1),
			RunE: a.withCatalog(func(cmd *cobra.Command, cat *catalog.Catalog, args []string) error {
				entry, err := cat.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := document.Marshal(entry.Document)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored documents",
			Args:  cobra.NoArgs,
			RunE: a.withCatalog(func(cmd *cobra.Command, cat *catalog.Catalog, _ []string) error {
				entries, err := cat.List(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, len(entries))
				for i, e := range entries {
					rows[i] = []string{
						e.ID,
						e.Name,
						strconv.Itoa(e.States),
						strconv.Itoa(e.Actions),
						e.CreatedAt.Format(time.RFC3339),
					}
				}
				a.printer.Table([]string{"id", "name", "states", "actions", "created"}, rows)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a stored document",
			Args:  cobra.ExactArgs(1),
			RunE: a.withCatalog(func(cmd *cobra.Command, cat *catalog.Catalog, args []string) error {
				if err := cat.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printer.Success("deleted " + args[0])
				return nil
			}),
		},
	)
	return cmd
}

// withCatalog opens the catalog around fn.
func (a *app) withCatalog(fn func(*cobra.Command, *catalog.Catalog, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cat, closeDB, err := a.openCatalog()
		if err != nil {
			return err
		}
		defer closeDB()
		return fn(cmd, cat, args)
	}
}

// loadDocument reads a document file, or exports a built-in example.
func loadDocument(arg string) (*document.Document, error) {
	doc, err := document.LoadFile(arg)
	if err == nil {
		return doc, nil
	}
	if _, ok := examples.Lookup(arg); !ok {
		return nil, err
	}
	s, err := examples.Build(arg)
	if err != nil {
		return nil, err
	}
	return document.FromSpecification(s), nil
}
