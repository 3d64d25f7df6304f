// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails masks personal data before it leaves the process,
// e.g. into the audit log.
package guardrails

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
)

// Mode selects how a match is replaced.
type Mode int

const (
	// ModeMask replaces a match with its placeholder, e.g. "[EMAIL]".
	ModeMask Mode = iota
	// ModeRemove deletes the match.
	ModeRemove
	// ModeHash replaces a match with a placeholder carrying a short hash,
	// so equal values stay correlated.
	ModeHash
)

// PIIType names a category of personal data.
type PIIType string

const (
	PIIEmail      PIIType = "email"
	PIIPhone      PIIType = "phone"
	PIISSN        PIIType = "ssn"
	PIICreditCard PIIType = "credit_card"
	PIIIPAddress  PIIType = "ip_address"
	PIIDate       PIIType = "date"
)

type rule struct {
	kind        PIIType
	re          *regexp.Regexp
	placeholder string
}

// Order matters: card and SSN numbers would otherwise be taken for phones.
var defaultRules = []rule{
	{PIICreditCard, regexp.MustCompile(`\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`), "CREDIT_CARD"},
	{PIISSN, regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`), "SSN"},
	{PIIEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "EMAIL"},
	{PIIPhone, regexp.MustCompile(`(?:\+[0-9]{1,3}[-.\s]?)?\(?\b[0-9]{3}\)?[-.\s][0-9]{3}[-.\s][0-9]{4}\b`), "PHONE"},
	{PIIIPAddress, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`), "IP_ADDRESS"},
	{PIIDate, regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])/(?:0?[1-9]|[12][0-9]|3[01])/(?:19|20)[0-9]{2}\b`), "DATE"},
}

// PIIFilter finds and replaces personal data in text.
type PIIFilter struct {
	mode    Mode
	rules   []rule
	enabled map[PIIType]bool
}

// Option configures a PIIFilter.
type Option func(*PIIFilter)

// WithTypes restricts the filter to the given types.
func WithTypes(types ...PIIType) Option {
	return func(f *PIIFilter) {
		for k := range f.enabled {
			f.enabled[k] = false
		}
		for _, t := range types {
			f.enabled[t] = true
		}
	}
}

// WithPattern adds a custom rule. The pattern must compile.
func WithPattern(kind PIIType, pattern, placeholder string) Option {
	re := regexp.MustCompile(pattern)
	return func(f *PIIFilter) {
		f.rules = append(f.rules, rule{kind: kind, re: re, placeholder: placeholder})
		f.enabled[kind] = true
	}
}

// NewPIIFilter creates a filter with every built-in type enabled.
func NewPIIFilter(mode Mode, opts ...Option) *PIIFilter {
	f := &PIIFilter{
		mode:    mode,
		rules:   append([]rule(nil), defaultRules...),
		enabled: make(map[PIIType]bool, len(defaultRules)),
	}
	for _, r := range defaultRules {
		f.enabled[r.kind] = true
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Redaction describes one replaced match. The original value is never kept.
type Redaction struct {
	Type        PIIType
	Position    int
	Replacement string
}

// Filter returns s with every match replaced, and the replacements made in
// order of position.
func (f *PIIFilter) Filter(s string) (string, []Redaction) {
	if s == "" {
		return s, nil
	}
	var redactions []Redaction
	for _, r := range f.rules {
		if !f.enabled[r.kind] {
			continue
		}
		matches := r.re.FindAllStringIndex(s, -1)
		// Back to front keeps earlier offsets valid.
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			repl := f.replacement(r, s[m[0]:m[1]])
			s = s[:m[0]] + repl + s[m[1]:]
			redactions = append(redactions, Redaction{Type: r.kind, Position: m[0], Replacement: repl})
		}
	}
	sort.SliceStable(redactions, func(i, j int) bool { return redactions[i].Position < redactions[j].Position })
	return s, redactions
}

// Redact returns s with personal data replaced.
func (f *PIIFilter) Redact(s string) string {
	out, _ := f.Filter(s)
	return out
}

// RedactValue walks decoded JSON (maps, slices, strings) and redacts every
// string it holds. Other values are returned unchanged.
func (f *PIIFilter) RedactValue(v any) any {
	switch val := v.(type) {
	case string:
		return f.Redact(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = f.RedactValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = f.RedactValue(item)
		}
		return out
	default:
		return v
	}
}

func (f *PIIFilter) replacement(r rule, original string) string {
	switch f.mode {
	case ModeRemove:
		return ""
	case ModeHash:
		h := fnv.New64a()
		_, _ = h.Write([]byte(original))
		return fmt.Sprintf("[%s_%08X]", r.placeholder, uint32(h.Sum64()))
	default:
		return "[" + r.placeholder + "]"
	}
}
