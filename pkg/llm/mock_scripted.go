// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedStreamProvider replays a pre-defined sequence of rounds; each call
// to ChatStream consumes the next round. Useful for testing multi-round tool
// loops without a model.
type ScriptedStreamProvider struct {
	mu       sync.Mutex
	rounds   [][]StreamChunk
	Err      error
	Requests []ChatRequest
}

// NewScriptedStreamProvider creates a provider that plays rounds in order.
func NewScriptedStreamProvider(rounds ...[]StreamChunk) *ScriptedStreamProvider {
	return &ScriptedStreamProvider{rounds: rounds}
}

// TextRound is a round that streams parts as text deltas then finishes.
func TextRound(parts ...string) []StreamChunk {
	round := make([]StreamChunk, 0, len(parts)+1)
	for _, p := range parts {
		round = append(round, StreamChunk{Content: p})
	}
	return append(round, StreamChunk{Done: true})
}

// ToolCallRound is a round that requests the given tool calls.
func ToolCallRound(calls ...ToolCall) []StreamChunk {
	return []StreamChunk{{Done: true, ToolCalls: calls}}
}

// ChatStream implements StreamingProvider.
func (s *ScriptedStreamProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	s.mu.Lock()
	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		s.mu.Unlock()
		return nil, s.Err
	}
	if len(s.rounds) == 0 {
		s.mu.Unlock()
		return nil, errors.New("scripted stream: no more rounds available")
	}
	round := s.rounds[0]
	s.rounds = s.rounds[1:]
	s.mu.Unlock()

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for _, chunk := range round {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// AddRound appends a round to the queue.
func (s *ScriptedStreamProvider) AddRound(round []StreamChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, round)
}

// Remaining returns how many rounds have not been played.
func (s *ScriptedStreamProvider) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rounds)
}

var _ StreamingProvider = (*ScriptedStreamProvider)(nil)
