// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

import "testing"

func TestMakeIDDeterministic(t *testing.T) {
	for _, kind := range Kinds() {
		if MakeID("note-1", kind) != MakeID("note-1", kind) {
			t.Fatalf("MakeID not deterministic for %s", kind)
		}
	}
}

func TestMakeIDDistinct(t *testing.T) {
	seen := map[ID][2]string{}
	subjects := []string{"a", "b", "a-enhance", "enhance", "x:y", ""}
	for _, subject := range subjects {
		for _, kind := range Kinds() {
			id := MakeID(subject, kind)
			if prev, dup := seen[id]; dup {
				t.Fatalf("collision: %v and (%s,%s) both map to %q", prev, subject, kind, id)
			}
			seen[id] = [2]string{subject, string(kind)}
		}
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name        string
		id          ID
		wantSubject string
		wantKind    Kind
		wantErr     bool
	}{
		{name: "simple", id: MakeID("note-7", KindEnhance), wantSubject: "note-7", wantKind: KindEnhance},
		{name: "subject with separator", id: MakeID("a:b", KindChat), wantSubject: "a:b", wantKind: KindChat},
		{name: "empty subject", id: MakeID("", KindTitle), wantSubject: "", wantKind: KindTitle},
		{name: "unknown kind", id: "summary:note-1", wantErr: true},
		{name: "no separator", id: "enhance", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, kind, err := ParseID(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if subject != tt.wantSubject || kind != tt.wantKind {
				t.Fatalf("got (%q,%q), want (%q,%q)", subject, kind, tt.wantSubject, tt.wantKind)
			}
			if tt.id.Kind() != tt.wantKind || tt.id.Subject() != tt.wantSubject {
				t.Fatalf("accessors disagree with ParseID for %q", tt.id)
			}
		})
	}
}
