// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/scribe/pkg/resilience"
)

// VectorStore is a vector database holding embedded documents.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, dimensions uint64) error
	// Upsert adds or replaces points.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Query returns up to limit points nearest to vector that pass filters.
	Query(ctx context.Context, collection string, vector []float32, limit int, filters *Filters) ([]ScoredPoint, error)
}

// Point is one embedded document.
type Point struct {
	Vector   []float32
	Document Document
}

// ScoredPoint is a query result.
type ScoredPoint struct {
	Document Document
	Score    float32
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Vector searches a VectorStore by embedding the query. Calls to the
// embedder and the store are retried, and store calls go through a breaker.
type Vector struct {
	store      VectorStore
	embedder   Embedder
	collection string

	limit   int
	backoff resilience.Backoff
	breaker *resilience.Breaker
	logger  *slog.Logger
}

// VectorOption configures a Vector searcher.
type VectorOption func(*Vector)

// WithLimit sets how many nearest points a query asks for.
func WithLimit(n int) VectorOption {
	return func(v *Vector) {
		if n > 0 {
			v.limit = n
		}
	}
}

// WithBackoff sets the retry policy.
func WithBackoff(b resilience.Backoff) VectorOption {
	return func(v *Vector) { v.backoff = b }
}

// WithBreaker sets the breaker guarding store calls.
func WithBreaker(b *resilience.Breaker) VectorOption {
	return func(v *Vector) {
		if b != nil {
			v.breaker = b
		}
	}
}

// WithVectorLogger sets the logger.
func WithVectorLogger(logger *slog.Logger) VectorOption {
	return func(v *Vector) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVector creates a searcher over collection.
func NewVector(store VectorStore, embedder Embedder, collection string, opts ...VectorOption) *Vector {
	v := &Vector{
		store:      store,
		embedder:   embedder,
		collection: collection,
		limit:      20,
		backoff:    resilience.DefaultBackoff(),
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Name:             "vector store",
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	b := v.backoff
	if b.OnRetry == nil {
		b.OnRetry = func(attempt int, err error, delay time.Duration) {
			v.logger.Warn("search backend call failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
		}
	}
	v.backoff = b
	return v
}

// Search embeds query and returns the nearest documents passing filters.
func (v *Vector) Search(ctx context.Context, query string, filters *Filters) ([]Hit, error) {
	vec, err := v.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	points, err := resilience.Retry(ctx, v.backoff, func(ctx context.Context) ([]ScoredPoint, error) {
		var out []ScoredPoint
		err := v.breaker.Execute(ctx, func(ctx context.Context) error {
			var qerr error
			out, qerr = v.store.Query(ctx, v.collection, vec, v.limit, filters)
			return qerr
		})
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", v.collection, err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		// Stores may apply filters approximately; enforce them here.
		if !filters.Match(p.Document) {
			continue
		}
		hits = append(hits, Hit{Document: p.Document, Score: float64(p.Score)})
	}
	SortHits(hits)
	return hits, nil
}

// Index embeds docs and upserts them, creating the collection on first use.
func (v *Vector) Index(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]Point, 0, len(docs))
	for _, doc := range docs {
		vec, err := v.embed(ctx, doc.Title+"\n\n"+doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		points = append(points, Point{Vector: vec, Document: doc})
	}

	return v.backoff.Do(ctx, func(ctx context.Context) error {
		return v.breaker.Execute(ctx, func(ctx context.Context) error {
			if err := v.store.EnsureCollection(ctx, v.collection, uint64(len(points[0].Vector))); err != nil {
				return err
			}
			return v.store.Upsert(ctx, v.collection, points)
		})
	})
}

func (v *Vector) embed(ctx context.Context, text string) ([]float32, error) {
	return resilience.Retry(ctx, v.backoff, func(ctx context.Context) ([]float32, error) {
		return v.embedder.Embed(ctx, text)
	})
}
