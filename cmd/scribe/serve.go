// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jllopis/scribe/pkg/config"
	"github.com/jllopis/scribe/pkg/httpapi"
	scribemcp "github.com/jllopis/scribe/pkg/mcp"
	"github.com/jllopis/scribe/pkg/telemetry"
)

func runServeMCP(ctx context.Context, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	addr := cmd.String("http", "", "Serve Streamable HTTP on this address instead of stdio")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	// stdout carries the protocol in stdio mode.
	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer a.Close()

	srv := scribemcp.NewServer(cfg.MCP.Name, version, a.registry, scribemcp.WithServerLogger(a.logger))
	if *addr == "" {
		a.logger.Info("serving mcp on stdio", slog.Any("tools", a.registry.Names()))
		if err := srv.ServeStdio(); err != nil {
			fatal(err)
		}
		return
	}

	httpSrv := &http.Server{Addr: *addr, Handler: srv.HTTPHandler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
	a.logger.Info("serving mcp over http", slog.String("addr", *addr))
	if err := httpSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		fatal(err)
	}
}

// runServeHTTP serves the task API and, under /mcp, the tool registry.
// Log level changes in the config file apply without a restart.
func runServeHTTP(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("serve-http", flag.ContinueOnError)
	addr := cmd.String("addr", "", "Listen address (default http.addr)")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	watcher, err := config.NewWatcher(flags.ConfigArgs)
	if err != nil {
		fatal(err)
	}
	cfg := watcher.Config()
	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer a.Close()

	watcher.OnChange(func(next *config.Config) {
		a.level.Set(telemetry.ParseLevel(next.Log.Level))
	})
	if err := watcher.Start(ctx); err != nil {
		a.logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
	} else {
		defer watcher.Stop()
	}

	api := httpapi.New(a.store, a.registry, cfg.HTTP.Mode,
		httpapi.WithLauncher(a.runner),
		httpapi.WithLogger(a.logger),
	)
	mcpSrv := scribemcp.NewServer(cfg.MCP.Name, version, a.registry, scribemcp.WithServerLogger(a.logger))
	api.Mount("/mcp", mcpSrv.HTTPHandler())

	listen := cfg.HTTP.Addr
	if *addr != "" {
		listen = *addr
	}
	if err := api.Serve(ctx, listen); err != nil {
		fatal(err)
	}
}
