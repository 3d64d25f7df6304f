// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"fmt"
	"strings"
)

// Kind enumerates the AI operations tracked per subject.
type Kind string

const (
	KindEnhance Kind = "enhance"
	KindTitle   Kind = "title"
	KindChat    Kind = "chat"
)

// Kinds lists every known task kind.
func Kinds() []Kind {
	return []Kind{KindEnhance, KindTitle, KindChat}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEnhance, KindTitle, KindChat:
		return true
	default:
		return false
	}
}

// ID identifies one logical task: a (subject, kind) pair.
type ID string

const idSeparator = ":"

// MakeID derives the task id for a subject and kind. It is pure: every caller
// computing the id for the same pair observes the same task. Kinds never
// contain the separator, so distinct pairs never collide.
func MakeID(subjectID string, kind Kind) ID {
	return ID(string(kind) + idSeparator + subjectID)
}

// ParseID splits an id produced by MakeID.
func ParseID(id ID) (subjectID string, kind Kind, err error) {
	k, subject, ok := strings.Cut(string(id), idSeparator)
	if !ok || !Kind(k).Valid() {
		return "", "", fmt.Errorf("task: malformed id %q", id)
	}
	return subject, Kind(k), nil
}

// Kind returns the kind encoded in the id, or "" when malformed.
func (id ID) Kind() Kind {
	_, kind, err := ParseID(id)
	if err != nil {
		return ""
	}
	return kind
}

// Subject returns the subject encoded in the id, or "" when malformed.
func (id ID) Subject() string {
	subject, _, err := ParseID(id)
	if err != nil {
		return ""
	}
	return subject
}
