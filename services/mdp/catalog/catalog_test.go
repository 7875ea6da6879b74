// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMDP/services/mdp/document"
	"github.com/AleutianAI/AleutianMDP/services/mdp/examples"
	"github.com/AleutianAI/AleutianMDP/services/mdp/spec"
	store "github.com/AleutianAI/AleutianMDP/services/mdp/storage/badger"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	db, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func exampleDocument(t *testing.T, name string) *document.Document {
	t.Helper()
	s, err := examples.Build(name)
	require.NoError(t, err)
	return document.FromSpecification(s)
}

func TestCatalog_PutGetLoad(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	id, err := c.Put(ctx, exampleDocument(t, "two-round-dmdp"))
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	entry, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, "two-round-dmdp", entry.Name)
	assert.Equal(t, 4, entry.States)
	assert.Equal(t, 2, entry.Actions)
	require.NotNil(t, entry.Document)

	s, err := c.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, s.NumStates())
}

func TestCatalog_PutRejectsInvalid(t *testing.T) {
	c := newCatalog(t)
	doc := &document.Document{
		States:  []document.StateDecl{{Name: "s"}},
		Actions: []string{"a"},
	}
	_, err := c.Put(context.Background(), doc)
	assert.ErrorIs(t, err, spec.ErrValidation)

	entries, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCatalog_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	first, err := c.Put(ctx, exampleDocument(t, "one-round-dmdp"))
	require.NoError(t, err)
	second, err := c.Put(ctx, exampleDocument(t, "geometric-series"))
	require.NoError(t, err)

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	ids := []string{entries[0].ID, entries[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)
	for _, e := range entries {
		assert.Nil(t, e.Document)
	}

	require.NoError(t, c.Delete(ctx, first))
	_, err = c.Get(ctx, first)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, first), ErrNotFound)

	entries, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second, entries[0].ID)
}

func TestCatalog_NotFound(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	for _, id := range []string{"not-a-uuid", uuid.NewString()} {
		_, err := c.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = c.Load(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}
