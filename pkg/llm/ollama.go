// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaProvider streams chat completions from an Ollama server.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

// NewOllama creates a new OllamaProvider.
func NewOllama(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Tools    []Tool                 `json:"tools,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ollamaStreamEvent is one NDJSON line of a streaming /api/chat response.
type ollamaStreamEvent struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	Error           string  `json:"error,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
}

// ChatStream implements StreamingProvider.
func (p *OllamaProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	oReq := ollamaRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   true,
		Tools:    req.Tools,
	}
	if req.Temperature != 0 {
		oReq.Options = map[string]interface{}{"temperature": req.Temperature}
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama api call failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama api returned status %d: %s", resp.StatusCode, string(respBody))
	}

	chunks := make(chan StreamChunk, 64)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()
		readOllamaStream(ctx, resp.Body, chunks)
	}()
	return chunks, nil
}

func readOllamaStream(ctx context.Context, body io.Reader, chunks chan<- StreamChunk) {
	send := func(c StreamChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := bufio.NewReader(body)
	var toolCalls []ToolCall
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var event ollamaStreamEvent
			if jerr := json.Unmarshal(line, &event); jerr == nil {
				if event.Error != "" {
					send(StreamChunk{Error: fmt.Errorf("ollama: %s", event.Error)})
					return
				}
				// Ollama sends complete tool calls, not deltas.
				toolCalls = append(toolCalls, event.Message.ToolCalls...)
				if event.Message.Content != "" {
					if !send(StreamChunk{Content: event.Message.Content}) {
						return
					}
				}
				if event.Done {
					send(StreamChunk{
						Done:      true,
						ToolCalls: toolCalls,
						Usage: &Usage{
							PromptTokens:     event.PromptEvalCount,
							CompletionTokens: event.EvalCount,
							TotalTokens:      event.PromptEvalCount + event.EvalCount,
						},
					})
					return
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			send(StreamChunk{Error: err})
			return
		}
	}
}

var _ StreamingProvider = (*OllamaProvider)(nil)
