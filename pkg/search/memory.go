// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"
)

// InMemory is a process-local corpus scored by term frequency. It backs
// tests and the CLI demo when no vector store is configured.
type InMemory struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]indexed
}

type indexed struct {
	doc   Document
	terms map[string]int
	total int
}

// NewInMemory creates an empty corpus.
func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[string]indexed)}
}

// Index adds docs, replacing any with the same id.
func (m *InMemory) Index(_ context.Context, docs ...Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		if _, exists := m.docs[doc.ID]; !exists {
			m.order = append(m.order, doc.ID)
		}
		terms := tokenize(doc.Title + " " + doc.Content)
		counts := make(map[string]int, len(terms))
		for _, term := range terms {
			counts[term]++
		}
		m.docs[doc.ID] = indexed{doc: doc, terms: counts, total: len(terms)}
	}
	return nil
}

// Len returns the number of indexed documents.
func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Search scores every document matching filters. A document scores the
// sum over query terms of their frequency in the document, normalized by
// document length; documents sharing no term with the query are omitted.
// An empty query matches every filtered document with score 0.
func (m *InMemory) Search(ctx context.Context, query string, filters *Filters) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTerms := tokenize(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, id := range m.order {
		entry := m.docs[id]
		if !filters.Match(entry.doc) {
			continue
		}
		if len(queryTerms) == 0 {
			hits = append(hits, Hit{Document: entry.doc})
			continue
		}
		var matched int
		for _, term := range queryTerms {
			matched += entry.terms[term]
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / math.Sqrt(float64(entry.total))
		hits = append(hits, Hit{Document: entry.doc, Score: score})
	}
	SortHits(hits)
	return hits, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
