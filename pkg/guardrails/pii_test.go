// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPIIFilterMask(t *testing.T) {
	filter := NewPIIFilter(ModeMask)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"email", "Contact john@example.com today", "Contact [EMAIL] today"},
		{"phone", "Call 555-123-4567 now", "Call [PHONE] now"},
		{"ssn", "SSN 123-45-6789", "SSN [SSN]"},
		{"credit card", "Card 4111 1111 1111 1111 on file", "Card [CREDIT_CARD] on file"},
		{"ip", "from 192.168.1.10", "from [IP_ADDRESS]"},
		{"date", "born 04/12/1985", "born [DATE]"},
		{"no pii", "Quarterly planning sync", "Quarterly planning sync"},
		{"multiple", "a@b.io and c@d.io", "[EMAIL] and [EMAIL]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.Redact(tt.input); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPIIFilterModes(t *testing.T) {
	input := "mail john@example.com"

	if got := NewPIIFilter(ModeRemove).Redact(input); got != "mail " {
		t.Errorf("remove mode: %q", got)
	}

	hash := NewPIIFilter(ModeHash)
	first := hash.Redact(input)
	if !strings.HasPrefix(first, "mail [EMAIL_") || strings.Contains(first, "john") {
		t.Errorf("hash mode: %q", first)
	}
	if again := hash.Redact(input); again != first {
		t.Errorf("hash mode not stable: %q vs %q", first, again)
	}
	if other := hash.Redact("mail jane@example.com"); other == first {
		t.Error("different values must hash differently")
	}
}

func TestPIIFilterTypesAndRedactions(t *testing.T) {
	filter := NewPIIFilter(ModeMask, WithTypes(PIIEmail), WithPattern("ticket", `TCK-[0-9]+`, "TICKET"))
	out, redactions := filter.Filter("x@y.com 555-123-4567 TCK-42")
	if out != "[EMAIL] 555-123-4567 [TICKET]" {
		t.Fatalf("unexpected output %q", out)
	}
	want := []Redaction{
		{Type: PIIEmail, Position: 0, Replacement: "[EMAIL]"},
		{Type: "ticket", Position: 21, Replacement: "[TICKET]"},
	}
	if diff := cmp.Diff(want, redactions); diff != "" {
		t.Errorf("redactions mismatch (-want +got):\n%s", diff)
	}
}

func TestRedactValue(t *testing.T) {
	filter := NewPIIFilter(ModeMask)
	in := map[string]any{
		"query": "notes from bob@corp.com",
		"limit": float64(3),
		"tags":  []any{"ok", "555-123-4567"},
	}
	want := map[string]any{
		"query": "notes from [EMAIL]",
		"limit": float64(3),
		"tags":  []any{"ok", "[PHONE]"},
	}
	if diff := cmp.Diff(want, filter.RedactValue(in)); diff != "" {
		t.Errorf("RedactValue mismatch (-want +got):\n%s", diff)
	}
	if in["query"] != "notes from bob@corp.com" {
		t.Error("input must not be modified")
	}
}
