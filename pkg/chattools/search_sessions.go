// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package chattools

import (
	"context"
	"fmt"
	"time"

	"github.com/jllopis/scribe/pkg/search"
	"github.com/jllopis/scribe/pkg/tool"
)

const (
	// SearchSessionsName is the registered name of the session search tool.
	SearchSessionsName = "search_sessions"

	// MaxSessionResults caps how many hits are returned to the model.
	MaxSessionResults = 5
	// MaxSessionContent is the number of characters of content kept per hit.
	// Characters are Unicode code points, so a hit made of astral-plane
	// runes such as emoji keeps 500 of them, twice what a UTF-16 count
	// would allow.
	MaxSessionContent = 500
)

// SearchSessionsInput is the model-supplied input.
type SearchSessionsInput struct {
	Query   string          `json:"query" jsonschema_description:"The search query to find relevant sessions"`
	Filters *search.Filters `json:"filters,omitempty" jsonschema_description:"Optional filters for the search query"`
}

// SessionResult is one session as shown to the model.
type SessionResult struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchSessionsOutput wraps the shaped results.
type SearchSessionsOutput struct {
	Results []SessionResult `json:"results"`
}

// NewSearchSessions builds the search_sessions tool over searcher.
func NewSearchSessions(searcher search.Searcher) tool.Definition {
	return tool.New(SearchSessionsName,
		"Search for sessions (meeting notes) using query and filters. Returns relevant sessions with their content.",
		func(ctx context.Context, in SearchSessionsInput) (SearchSessionsOutput, error) {
			hits, err := searcher.Search(ctx, in.Query, in.Filters)
			if err != nil {
				return SearchSessionsOutput{}, fmt.Errorf("search sessions: %w", err)
			}
			return ShapeSessions(hits), nil
		})
}

// ShapeSessions keeps the MaxSessionResults highest-scoring hits, in score
// order, and cuts each content to MaxSessionContent characters. The input
// slice is not modified.
func ShapeSessions(hits []search.Hit) SearchSessionsOutput {
	ranked := make([]search.Hit, len(hits))
	copy(ranked, hits)
	search.SortHits(ranked)
	if len(ranked) > MaxSessionResults {
		ranked = ranked[:MaxSessionResults]
	}

	out := SearchSessionsOutput{Results: make([]SessionResult, len(ranked))}
	for i, hit := range ranked {
		out.Results[i] = SessionResult{
			ID:        hit.Document.ID,
			Title:     hit.Document.Title,
			Content:   truncate(hit.Document.Content, MaxSessionContent),
			Score:     hit.Score,
			CreatedAt: hit.Document.CreatedAt,
		}
	}
	return out
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
