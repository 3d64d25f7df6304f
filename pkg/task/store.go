// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package task keeps the observable state of AI tasks keyed by
// (subject, kind). One writer per task drives transitions into the Store;
// any number of observers read snapshots or subscribe to derived values.
package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/telemetry"
)

// Reader exposes read access to task states.
type Reader interface {
	// Get returns the state of id and whether the task was ever started.
	Get(id ID) (State, bool)
}

// Observer is the read side handed to rendering code: snapshots and change
// notifications, never mutation.
type Observer interface {
	Reader
	Watch(id ID, onChange func(State)) (unsubscribe func())
}

// Lister enumerates started tasks.
type Lister interface {
	IDs() []ID
}

// Writer drives a task through its lifecycle.
type Writer interface {
	Start(id ID) Generation
	Apply(id ID, gen Generation, tr Transition) bool
}

// Change describes one transition offered to the store, including dropped
// ones (Applied is false).
type Change struct {
	ID         ID
	Generation Generation
	Transition Transition
	Applied    bool
	State      State
	At         time.Time
}

// Store is a concurrency-safe map from task id to State.
//
// Mutations are serialized under a single lock. Subscription callbacks and
// observers run after the lock is released and in mutation order, possibly
// on the goroutine of an earlier writer that is still delivering.
type Store struct {
	mu    sync.Mutex
	tasks map[ID]State
	subs  []*subscription
	next  uint64

	queue    []func()
	draining bool

	logger    *slog.Logger
	metrics   *telemetry.Metrics
	observers []func(Change)
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics counts applied and dropped transitions.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithObserver registers fn to receive every Change. Audit recorders hook in
// here.
func WithObserver(fn func(Change)) Option {
	return func(s *Store) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tasks:  make(map[ID]State),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a snapshot of id. The boolean is false until the task is first
// started.
func (s *Store) Get(id ID) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[id]
	return st, ok
}

// IDs returns the ids of every task that has been started.
func (s *Store) IDs() []ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]ID, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	return ids
}

// Start resets id to a fresh running attempt and returns its generation.
// Transitions still in flight for earlier generations are dropped from now
// on.
func (s *Store) Start(id ID) Generation {
	s.mu.Lock()
	prev := s.tasks[id]
	now := s.now()
	next := State{
		Status:     StatusRunning,
		Generation: prev.Generation + 1,
		RunID:      uuid.NewString(),
		StartedAt:  now,
		UpdatedAt:  now,
	}
	s.tasks[id] = next
	s.commit(Change{ID: id, Generation: next.Generation, Transition: Start{}, Applied: true, State: next, At: now})
	return next.Generation
}

// Apply offers tr to the attempt gen of id. It reports whether the transition
// changed the state. Transitions are dropped when the task was never
// started, when gen is not the current generation, or when the task already
// reached a terminal status.
func (s *Store) Apply(id ID, gen Generation, tr Transition) bool {
	s.mu.Lock()
	cur, started := s.tasks[id]
	now := s.now()

	reason := ""
	switch {
	case tr == nil:
		reason = "nil transition"
	case !started:
		reason = "not started"
	case gen != cur.Generation:
		reason = "stale generation"
	case cur.Status.Terminal():
		reason = "terminal status"
	}
	if _, ok := tr.(Start); ok && reason == "" {
		reason = "start must go through Store.Start"
	}
	if reason != "" {
		s.logger.Debug("task transition dropped",
			slog.String("task_id", string(id)),
			slog.Uint64("generation", uint64(gen)),
			slog.Uint64("current_generation", uint64(cur.Generation)),
			slog.String("transition", transitionName(tr)),
			slog.String("reason", reason),
		)
		s.commit(Change{ID: id, Generation: gen, Transition: tr, Applied: false, State: cur, At: now})
		return false
	}

	next := reduce(cur, tr)
	next.UpdatedAt = now
	s.tasks[id] = next
	s.commit(Change{ID: id, Generation: gen, Transition: tr, Applied: true, State: next, At: now})
	return true
}

// reduce is the pure transition function for a running task.
func reduce(st State, tr Transition) State {
	switch t := tr.(type) {
	case AppendText:
		st.StreamedText += t.Delta
	case SetStep:
		if _, done := t.Step.(StepDone); done {
			return reduce(st, Complete{})
		}
		st.CurrentStep = t.Step
	case Complete:
		st.Status = StatusDone
		st.CurrentStep = StepDone{}
	case Fail:
		st.Status = StatusFailed
		st.Err = t.Err
		if st.Err == nil {
			st.Err = errors.New(errors.CodeTaskFailed, "task failed", nil)
		}
	}
	return st
}

// commit must be called with s.mu held and releases it. Subscriptions are
// evaluated against the new state under the lock; the resulting callbacks
// are queued and delivered outside it.
func (s *Store) commit(change Change) {
	var fires []func()
	if change.Applied {
		r := lockedReader{s}
		for _, sub := range s.subs {
			if fire := sub.check(r); fire != nil {
				fires = append(fires, fire)
			}
		}
	}
	observers := s.observers
	s.queue = append(s.queue, func() {
		s.metrics.RecordTransition(context.Background(), string(change.ID.Kind()), transitionName(change.Transition), change.Applied)
		for _, fn := range observers {
			fn(change)
		}
		for _, fire := range fires {
			fire()
		}
	})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()
	s.drain()
}

// drain delivers queued notifications until the queue is empty. Only one
// goroutine drains at a time, which keeps delivery in mutation order even
// when a callback writes to the store.
func (s *Store) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		deliver := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		deliver()
	}
}

// lockedReader reads the map while the store lock is already held.
type lockedReader struct{ s *Store }

func (r lockedReader) Get(id ID) (State, bool) {
	st, ok := r.s.tasks[id]
	return st, ok
}

func transitionName(tr Transition) string {
	if tr == nil {
		return "none"
	}
	return tr.Name()
}
