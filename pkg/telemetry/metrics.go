// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks tool invocations and task transitions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// toolInvocations counts invocations by tool and error code ("" on success)
	toolInvocations metric.Int64Counter

	// toolDuration records invocation latency in milliseconds
	toolDuration metric.Float64Histogram

	// transitions counts applied task transitions by kind and transition
	transitions metric.Int64Counter

	// dropped counts transitions rejected as stale or post-terminal
	dropped metric.Int64Counter
}

// NewMetrics creates the meters on the global MeterProvider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("scribe")

	toolInvocations, err := meter.Int64Counter(
		"scribe.tool.invocations",
		metric.WithDescription("Tool invocations by tool and error code"),
	)
	if err != nil {
		return nil, err
	}

	toolDuration, err := meter.Float64Histogram(
		"scribe.tool.duration_ms",
		metric.WithDescription("Tool invocation latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"scribe.task.transitions",
		metric.WithDescription("Applied task transitions by kind and transition"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"scribe.task.transitions.dropped",
		metric.WithDescription("Task transitions dropped by the generation guard or a terminal state"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		toolInvocations: toolInvocations,
		toolDuration:    toolDuration,
		transitions:     transitions,
		dropped:         dropped,
	}, nil
}

// RecordToolInvocation counts one invocation. errorCode is empty on success.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool, errorCode string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrToolName, tool),
		attribute.String(AttrErrorCode, errorCode),
		attribute.Bool(AttrToolSuccess, errorCode == ""),
	)
	m.toolInvocations.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, float64(d.Microseconds())/1000, attrs)
}

// RecordTransition counts a task transition. applied=false records a drop.
func (m *Metrics) RecordTransition(ctx context.Context, kind, transition string, applied bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrTaskKind, kind),
		attribute.String(AttrTransition, transition),
	)
	if applied {
		m.transitions.Add(ctx, 1, attrs)
		return
	}
	m.dropped.Add(ctx, 1, attrs)
}
