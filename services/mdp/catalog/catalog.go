// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog persists specification documents in BadgerDB.
//
// Entries are stored as JSON under keys of the form "spec/<uuid>". Only
// documents that build into a valid specification are accepted.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianMDP/services/mdp/document"
	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
	store "github.com/AleutianAI/AleutianMDP/services/mdp/storage/badger"
)

const keyPrefix = "spec/"

// ErrNotFound is returned for unknown entry IDs.
var ErrNotFound = errors.New("catalog entry not found")

// Entry is one stored document.
type Entry struct {
	ID        string             `json:"id"`
	Name      string             `json:"name,omitempty"`
	States    int                `json:"states"`
	Actions   int                `json:"actions"`
	CreatedAt time.Time          `json:"created_at"`
	Document  *document.Document `json:"document,omitempty"`
}

// Catalog is a document store over a BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Catalog struct {
	db     *store.DB
	logger *slog.Logger
}

// New creates a catalog on an open database. The caller owns db.
func New(db *store.DB) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With(slog.String("component", "mdp_catalog")),
	}
}

func key(id string) []byte { return []byte(keyPrefix + id) }

// Put builds doc to check it, then stores it under a new ID.
//
// Outputs:
//   - string: The new entry ID.
//   - error: Build errors from the document, or storage errors.
func (c *Catalog) Put(ctx context.Context, doc *document.Document) (string, error) {
	s, err := doc.Build(ctx)
	if err != nil {
		return "", err
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Name:      doc.Name,
		States:    s.NumStates(),
		Actions:   s.NumActions(),
		CreatedAt: time.Now().UTC(),
		Document:  doc,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode catalog entry: %w", err)
	}

	if err := c.db.Update(ctx, func(txn *badger.Txn) error {
		return txn.Set(key(entry.ID), data)
	}); err != nil {
		return "", fmt.Errorf("store catalog entry: %w", err)
	}

	c.logger.Info("specification stored",
		slog.String("id", entry.ID),
		slog.String("name", entry.Name),
		slog.Int("states", entry.States),
	)
	return entry.ID, nil
}

// Get returns the entry with the given ID, including its document.
func (c *Catalog) Get(ctx context.Context, id string) (*Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var entry Entry
	err := c.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog entry %s: %w", id, err)
	}
	return &entry, nil
}

// Load builds the specification stored under id.
func (c *Catalog) Load(ctx context.Context, id string) (*spec.Specification, error) {
	entry, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.Document.Build(ctx)
}

// List returns every entry without its document, oldest first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := c.db.Scan(ctx, []byte(keyPrefix), func(_, value []byte) error {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			return fmt.Errorf("decode catalog entry: %w", err)
		}
		entry.Document = nil
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Delete removes the entry with the given ID.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	err := c.db.Update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete catalog entry %s: %w", id, err)
	}
	c.logger.Info("specification deleted", slog.String("id", id))
	return nil
}
