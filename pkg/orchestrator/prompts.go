// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"github.com/jllopis/scribe/pkg/chattools"
	"github.com/jllopis/scribe/pkg/task"
)

func defaultPrompts() map[task.Kind]string {
	return map[task.Kind]string{
		task.KindEnhance: "You turn raw meeting notes into clear, well-structured notes. " +
			"Call analyze_structure on the raw notes first, then write the enhanced version in markdown. " +
			"Keep every decision and action item.",
		task.KindTitle: "Write a short title (at most eight words) for the meeting notes provided. " +
			"Reply with the title only.",
		task.KindChat: "You answer questions about the user's past meetings. " +
			"Use search_sessions to find relevant sessions and cite their titles.",
	}
}

func defaultToolsets() map[task.Kind][]string {
	return map[task.Kind][]string{
		task.KindEnhance: {chattools.AnalyzeStructureName, chattools.SearchSessionsName},
		task.KindChat:    {chattools.SearchSessionsName, chattools.AnalyzeStructureName},
	}
}
