// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi serves task snapshots, task event streams and the tool
// catalog over HTTP for rendering clients.
package httpapi

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/orchestrator"
	"github.com/jllopis/scribe/pkg/task"
	"github.com/jllopis/scribe/pkg/tool"
)

// Launcher starts task runs in the background.
type Launcher interface {
	Launch(ctx context.Context, req orchestrator.Request) (task.ID, <-chan orchestrator.Outcome, error)
}

// Server exposes the read side of the task store. Launching runs is only
// available when a Launcher is configured.
type Server struct {
	engine   *gin.Engine
	tasks    task.Observer
	tools    *tool.Registry
	launcher Launcher
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLauncher enables POST /v1/tasks/:kind/:subject/run.
func WithLauncher(l Launcher) Option {
	return func(s *Server) { s.launcher = l }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds the router. mode is a gin mode ("debug", "release", "test");
// empty keeps the current mode.
func New(tasks task.Observer, tools *tool.Registry, mode string, opts ...Option) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	s := &Server{
		engine: gin.New(),
		tasks:  tasks,
		tools:  tools,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine.Use(gin.Recovery(), s.logRequests())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/tools", s.listTools)
		v1.GET("/tasks", s.listTasks)
		v1.GET("/tasks/:kind/:subject", s.getTask)
		v1.GET("/tasks/:kind/:subject/events", s.streamTask)
		v1.POST("/tasks/:kind/:subject/run", s.runTask)
	}
}

// Mount serves h for every method at path, e.g. an MCP endpoint.
func (s *Server) Mount(path string, h http.Handler) {
	s.engine.Any(path, gin.WrapH(h))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.DebugContext(c.Request.Context(), "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

func writeError(c *gin.Context, err *errors.ScribeError) {
	status := err.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err})
}
