// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/orchestrator"
	"github.com/jllopis/scribe/pkg/schema"
	"github.com/jllopis/scribe/pkg/task"
)

const (
	eventState      = "state"
	keepAlivePeriod = 15 * time.Second
)

type toolView struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Fields      []schema.Field `json:"fields,omitempty"`
	Schema      any            `json:"schema,omitempty"`
}

type runRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (s *Server) listTools(c *gin.Context) {
	out := make([]toolView, 0)
	if s.tools != nil {
		for _, def := range s.tools.List() {
			v := toolView{Name: def.Name, Description: def.Description}
			if def.Schema != nil {
				v.Fields = def.Schema.Fields()
				v.Schema = def.Schema.JSON()
			}
			out = append(out, v)
		}
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func taskID(c *gin.Context) (task.ID, *errors.ScribeError) {
	kind := task.Kind(c.Param("kind"))
	if !kind.Valid() {
		return "", errors.New(errors.CodeInvalidArgument, fmt.Sprintf("unknown task kind %q", kind), nil)
	}
	subject := c.Param("subject")
	if subject == "" {
		return "", errors.New(errors.CodeInvalidArgument, "subject is required", nil)
	}
	return task.MakeID(subject, kind), nil
}

// listTasks returns a view of every started task, ordered by id. ?kind=
// narrows the list to one kind.
func (s *Server) listTasks(c *gin.Context) {
	lister, ok := s.tasks.(task.Lister)
	if !ok {
		writeError(c, errors.New(errors.CodeUnavailable, "task listing is not supported", nil))
		return
	}
	kind := task.Kind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		writeError(c, errors.New(errors.CodeInvalidArgument, fmt.Sprintf("unknown task kind %q", kind), nil))
		return
	}
	ids := lister.IDs()
	slices.Sort(ids)
	out := make([]task.View, 0, len(ids))
	for _, id := range ids {
		if kind != "" && id.Kind() != kind {
			continue
		}
		if st, ok := s.tasks.Get(id); ok {
			out = append(out, task.ViewOfState(id, st))
		}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

func (s *Server) getTask(c *gin.Context) {
	id, err := taskID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	st, ok := s.tasks.Get(id)
	if !ok {
		writeError(c, errors.New(errors.CodeNotFound, fmt.Sprintf("task %q has not started", id), nil))
		return
	}
	c.JSON(http.StatusOK, task.ViewOfState(id, st))
}

func (s *Server) runTask(c *gin.Context) {
	if s.launcher == nil {
		writeError(c, errors.New(errors.CodeUnavailable, "task runs are not enabled", nil))
		return
	}
	id, serr := taskID(c)
	if serr != nil {
		writeError(c, serr)
		return
	}
	var body runRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, "invalid run request", err))
		return
	}

	// The run outlives the request.
	ctx := context.WithoutCancel(c.Request.Context())
	launched, _, err := s.launcher.Launch(ctx, orchestrator.Request{
		Subject: id.Subject(),
		Kind:    id.Kind(),
		Prompt:  body.Prompt,
	})
	if err != nil {
		writeError(c, errors.AsScribeError(err))
		return
	}
	st, _ := s.tasks.Get(launched)
	c.JSON(http.StatusAccepted, task.ViewOfState(launched, st))
}

// streamTask sends a "state" event with the task view whenever the task
// changes. Intermediate states may be coalesced when the client is slower
// than the writer; the latest state is always delivered. With
// ?until=done the stream ends after the first terminal state.
func (s *Server) streamTask(c *gin.Context) {
	id, err := taskID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	untilDone := c.Query("until") == "done"

	latest := newLatest()
	unsubscribe := s.tasks.Watch(id, latest.set)
	defer unsubscribe()
	if st, ok := s.tasks.Get(id); ok {
		latest.set(st)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	keepAlive := time.NewTicker(keepAlivePeriod)
	defer keepAlive.Stop()

	var seq int
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-latest.ready:
			st := latest.take()
			seq++
			ev := sse.Event{
				Event: eventState,
				Id:    strconv.Itoa(seq),
				Data:  task.ViewOfState(id, st),
			}
			if err := sse.Encode(c.Writer, ev); err != nil {
				s.logger.DebugContext(ctx, "sse write failed", "task_id", string(id), "error", err.Error())
				return
			}
			c.Writer.Flush()
			if untilDone && st.Status.Terminal() {
				return
			}
		}
	}
}

// latest keeps only the newest state between deliveries. set never blocks,
// so it is safe to call from store callbacks.
type latest struct {
	mu    sync.Mutex
	state task.State
	ready chan struct{}
}

func newLatest() *latest {
	return &latest{ready: make(chan struct{}, 1)}
}

func (l *latest) set(st task.State) {
	l.mu.Lock()
	l.state = st
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latest) take() task.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
