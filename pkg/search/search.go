// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package search finds sessions (meeting notes) relevant to a query. It is
// the collaborator behind the search_sessions tool.
package search

import (
	"context"
	"slices"
	"time"
)

// Document is one indexed session.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Hit is a document with its relevance score. Higher is more relevant.
type Hit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Filters narrow a search. The zero value matches everything.
type Filters struct {
	CreatedAfter  *time.Time `json:"created_after,omitempty" jsonschema_description:"Only sessions created at or after this RFC 3339 time"`
	CreatedBefore *time.Time `json:"created_before,omitempty" jsonschema_description:"Only sessions created before this RFC 3339 time"`
	IDs           []string   `json:"ids,omitempty" jsonschema_description:"Restrict the search to these session ids"`
}

// Match reports whether doc passes f. A nil filter matches everything.
func (f *Filters) Match(doc Document) bool {
	if f == nil {
		return true
	}
	if f.CreatedAfter != nil && doc.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !doc.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, doc.ID) {
		return false
	}
	return true
}

// Searcher returns hits for query, most relevant first. filters may be nil.
type Searcher interface {
	Search(ctx context.Context, query string, filters *Filters) ([]Hit, error)
}

// Indexer adds or replaces documents in a searchable corpus.
type Indexer interface {
	Index(ctx context.Context, docs ...Document) error
}

// Func adapts a function to Searcher.
type Func func(ctx context.Context, query string, filters *Filters) ([]Hit, error)

// Search calls f.
func (f Func) Search(ctx context.Context, query string, filters *Filters) ([]Hit, error) {
	return f(ctx, query, filters)
}

// SortHits orders hits by descending score, keeping the input order for
// equal scores.
func SortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}
