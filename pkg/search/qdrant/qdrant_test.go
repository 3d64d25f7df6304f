// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package qdrant

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/scribe/pkg/search"
)

func TestPayloadRoundTrip(t *testing.T) {
	doc := search.Document{
		ID:        "note-42",
		Title:     "Quarterly planning",
		Content:   "Agreed on the roadmap.",
		CreatedAt: time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC),
	}
	payload := EncodePayload(doc)
	if got := payload[KeyCreatedUnix].GetIntegerValue(); got != doc.CreatedAt.Unix() {
		t.Fatalf("created_unix = %d", got)
	}
	if diff := cmp.Diff(doc, DecodePayload(payload)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPointIDStable(t *testing.T) {
	a, b := PointID("note-1"), PointID("note-1")
	if a.GetUuid() == "" || a.GetUuid() != b.GetUuid() {
		t.Fatalf("expected stable uuid, got %q and %q", a.GetUuid(), b.GetUuid())
	}
	if PointID("note-2").GetUuid() == a.GetUuid() {
		t.Fatal("distinct documents share a point id")
	}
}

func TestBuildFilter(t *testing.T) {
	after := time.Unix(1000, 0)
	before := time.Unix(2000, 0)

	if BuildFilter(nil) != nil || BuildFilter(&search.Filters{}) != nil {
		t.Fatal("expected nil filter when nothing is constrained")
	}

	f := BuildFilter(&search.Filters{CreatedAfter: &after, CreatedBefore: &before, IDs: []string{"a", "b"}})
	if len(f.GetMust()) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(f.GetMust()))
	}
	r := f.GetMust()[0].GetField()
	if r.GetKey() != KeyCreatedUnix || r.GetRange().GetGte() != 1000 || r.GetRange().GetLt() != 2000 {
		t.Fatalf("unexpected range condition: %v", r)
	}
	ids := f.GetMust()[1].GetField()
	if ids.GetKey() != KeyDocID {
		t.Fatalf("unexpected id condition key %q", ids.GetKey())
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids.GetMatch().GetKeywords().GetStrings()); diff != "" {
		t.Fatalf("keywords mismatch (-want +got):\n%s", diff)
	}
}
