// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package chattools defines the tools offered to the model during chat and
// note enhancement.
package chattools

import (
	"github.com/jllopis/scribe/pkg/search"
	"github.com/jllopis/scribe/pkg/task"
	"github.com/jllopis/scribe/pkg/tool"
)

// labels are the progress labels shown while a chat tool runs.
var labels = map[string]string{
	AnalyzeStructureName: "Analyzing structure...",
	SearchSessionsName:   "Searching sessions...",
}

// Deps are the collaborators the tools call into.
type Deps struct {
	Search search.Searcher
}

// Definitions returns every tool buildable from deps. search_sessions is
// omitted when no searcher is configured.
func Definitions(deps Deps) []tool.Definition {
	defs := []tool.Definition{NewAnalyzeStructure()}
	if deps.Search != nil {
		defs = append(defs, NewSearchSessions(deps.Search))
	}
	return defs
}

// Register adds the tools to r and their progress labels to task views.
func Register(r *tool.Registry, deps Deps) error {
	for _, def := range Definitions(deps) {
		if err := r.Register(def); err != nil {
			return err
		}
		if label, ok := labels[def.Name]; ok {
			task.RegisterToolLabel(def.Name, label)
		}
	}
	return nil
}

// Build returns a new registry holding the tools.
func Build(deps Deps, opts ...tool.Option) (*tool.Registry, error) {
	r := tool.NewRegistry(opts...)
	if err := Register(r, deps); err != nil {
		return nil, err
	}
	return r, nil
}
