// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jllopis/scribe/pkg/audit"
	"github.com/jllopis/scribe/pkg/chattools"
	"github.com/jllopis/scribe/pkg/config"
	"github.com/jllopis/scribe/pkg/guardrails"
	"github.com/jllopis/scribe/pkg/llm"
	scribemcp "github.com/jllopis/scribe/pkg/mcp"
	"github.com/jllopis/scribe/pkg/orchestrator"
	"github.com/jllopis/scribe/pkg/search"
	"github.com/jllopis/scribe/pkg/search/ollama"
	"github.com/jllopis/scribe/pkg/search/qdrant"
	"github.com/jllopis/scribe/pkg/task"
	"github.com/jllopis/scribe/pkg/telemetry"
	"github.com/jllopis/scribe/pkg/tool"
)

const serviceName = "scribe"

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	level    *slog.LevelVar
	metrics  *telemetry.Metrics
	store    *task.Store
	registry *tool.Registry
	runner   *orchestrator.Runner
	audit    audit.Store

	closers []func() error
}

// newApp wires logging, telemetry, the task store, tools and the runner.
// Remote MCP servers listed in the config are imported into the registry.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, level: new(slog.LevelVar)}
	a.level.Set(telemetry.ParseLevel(cfg.Log.Level))
	a.logger = telemetry.NewLeveledLogger(logOut, a.level, cfg.Log.Format)
	slog.SetDefault(a.logger)

	shutdown, err := telemetry.Init(serviceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		OTLPHeaders:  cfg.Telemetry.OTLPHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})

	if a.metrics, err = telemetry.NewMetrics(); err != nil {
		a.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	storeOpts := []task.Option{task.WithLogger(a.logger), task.WithMetrics(a.metrics)}
	if cfg.Audit.Enabled {
		if a.audit, err = openAudit(cfg.Audit.Path); err != nil {
			a.Close()
			return nil, err
		}
		if c, ok := a.audit.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
		recOpts := []audit.RecorderOption{
			audit.WithTextDeltas(cfg.Audit.TextDeltas),
			audit.WithLogger(a.logger),
		}
		redactor, err := buildRedactor(cfg.Audit.Redact)
		if err != nil {
			a.Close()
			return nil, err
		}
		if redactor != nil {
			recOpts = append(recOpts, audit.WithRedactor(redactor))
		}
		rec := audit.NewRecorder(a.audit, recOpts...)
		storeOpts = append(storeOpts, task.WithObserver(rec.Observe))
	}
	a.store = task.NewStore(storeOpts...)

	searcher, err := a.buildSearch(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry, err = chattools.Build(chattools.Deps{Search: searcher},
		tool.WithLogger(a.logger), tool.WithMetrics(a.metrics))
	if err != nil {
		a.Close()
		return nil, err
	}
	remote, err := a.importRemoteTools(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	runOpts := []orchestrator.Option{
		orchestrator.WithModel(cfg.LLM.Model),
		orchestrator.WithMaxRounds(cfg.LLM.MaxRounds),
		orchestrator.WithLogger(a.logger),
	}
	if len(remote) > 0 {
		chat := append([]string{chattools.SearchSessionsName, chattools.AnalyzeStructureName}, remote...)
		runOpts = append(runOpts, orchestrator.WithKindTools(task.KindChat, chat...))
	}
	a.runner = orchestrator.New(a.store, provider, a.registry, runOpts...)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("shutdown", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}

func buildRedactor(mode string) (*guardrails.PIIFilter, error) {
	switch mode {
	case "", "off":
		return nil, nil
	case "mask":
		return guardrails.NewPIIFilter(guardrails.ModeMask), nil
	case "hash":
		return guardrails.NewPIIFilter(guardrails.ModeHash), nil
	default:
		return nil, fmt.Errorf("unknown audit redact mode %q", mode)
	}
}

func openAudit(path string) (audit.Store, error) {
	if path == "" || path == ":memory:" {
		return audit.NewMemoryStore(), nil
	}
	st, err := audit.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return st, nil
}

func buildProvider(cfg config.LLMConfig) (llm.StreamingProvider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return llm.NewOllama(cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}

func (a *app) buildSearch(ctx context.Context) (search.Searcher, error) {
	cfg := a.cfg.Search
	var (
		searcher search.Searcher
		indexer  search.Indexer
	)
	switch cfg.Provider {
	case "", "memory":
		mem := search.NewInMemory()
		searcher, indexer = mem, mem
	case "qdrant":
		store, err := qdrant.New(cfg.QdrantAddr)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		vec := search.NewVector(store, ollama.NewEmbedder(cfg.EmbedderBaseURL, cfg.EmbedderModel), cfg.Collection,
			search.WithVectorLogger(a.logger))
		searcher, indexer = vec, vec
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("search: unsupported provider %q", cfg.Provider)
	}

	if cfg.Seed != "" {
		docs, err := loadSeed(cfg.Seed)
		if err != nil {
			return nil, err
		}
		seedCtx, cancel := context.WithTimeout(ctx, cfg.Timeout*time.Duration(len(docs)+1))
		defer cancel()
		if err := indexer.Index(seedCtx, docs...); err != nil {
			return nil, fmt.Errorf("search: index seed: %w", err)
		}
		a.logger.Info("search corpus seeded", slog.Int("documents", len(docs)), slog.String("provider", cfg.Provider))
	}
	return searcher, nil
}

// loadSeed reads a JSON array of documents.
func loadSeed(path string) ([]search.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("search: read seed: %w", err)
	}
	var docs []search.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("search: decode seed %s: %w", path, err)
	}
	return docs, nil
}

// importRemoteTools returns the registry names of every imported tool.
func (a *app) importRemoteTools(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(a.cfg.MCP.Servers))
	for name := range a.cfg.MCP.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []string
	for _, name := range names {
		client, err := dialMCP(ctx, a.cfg.MCP.Servers[name])
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		a.closers = append(a.closers, client.Close)
		imported, err := scribemcp.Import(ctx, client, a.registry, name)
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		a.logger.Info("imported remote tools", slog.String("server", name), slog.Any("tools", imported))
		all = append(all, imported...)
	}
	return all, nil
}

func dialMCP(ctx context.Context, srv config.MCPServerConfig) (*scribemcp.Client, error) {
	switch srv.Transport {
	case "", "stdio":
		if srv.Command == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		return scribemcp.DialStdio(ctx, srv.Command, srv.Args, srv.Env)
	case "http":
		if srv.URL == "" {
			return nil, fmt.Errorf("http transport requires a url")
		}
		return scribemcp.DialHTTP(ctx, srv.URL)
	default:
		return nil, fmt.Errorf("unsupported transport %q", srv.Transport)
	}
}
