// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/knadh/koanf/providers/file"
)

// Watcher reloads the configuration when the config file or its profile
// overlay changes on disk. Flags and environment are re-applied on every
// reload, so they keep precedence over the files.
type Watcher struct {
	args     []string
	paths    []string
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)

	files   []*file.File
	changed chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce coalesces bursts of file events (editors often write a file
// in several steps) into one reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the logger for reload outcomes.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher loads the configuration described by args, as LoadWithCLI
// does, and records the files to watch.
func NewWatcher(args []string, opts ...WatcherOption) (*Watcher, error) {
	parsed, _, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadWithCLI(args)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		args:     append([]string(nil), args...),
		debounce: 200 * time.Millisecond,
		logger:   slog.Default(),
		current:  cfg,
		changed:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if parsed.path != "" {
		w.paths = append(w.paths, parsed.path)
		if overlay := profileConfigPath(parsed.path, parsed.profile); overlay != "" {
			w.paths = append(w.paths, overlay)
		}
	}
	return w, nil
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start watches the config files until ctx is done or Stop is called.
// Files that do not exist when Start runs are not watched.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		f := file.Provider(path)
		err := f.Watch(func(_ any, err error) {
			if err != nil {
				w.logger.Warn("config watch", slog.String("path", path), slog.String("error", err.Error()))
				return
			}
			select {
			case w.changed <- struct{}{}:
			default:
			}
		})
		if err != nil {
			w.unwatch()
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.files = append(w.files, f)
	}
	go w.loop(ctx)
	return nil
}

// Stop stops a started watcher and waits for it to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.unwatch()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-w.changed:
			pending = time.After(w.debounce)
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) unwatch() {
	for _, f := range w.files {
		_ = f.Unwatch()
	}
	w.files = nil
}

// reload keeps the previous configuration when the new one fails to load.
func (w *Watcher) reload() {
	cfg, err := LoadWithCLI(w.args)
	if err != nil {
		w.logger.Error("config reload failed", slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	w.current = cfg
	listeners := append(([]func(*Config))(nil), w.listeners...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", slog.Any("paths", w.paths))
	for _, fn := range listeners {
		fn(cfg)
	}
}
