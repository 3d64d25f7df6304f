// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jllopis/scribe/pkg/config"
	"github.com/jllopis/scribe/pkg/tool"
)

type toolRow struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Inputs      string `json:"inputs"`
}

func runTools(ctx context.Context, flags globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal(errors.New("usage: scribe tools <list|call>"))
	}
	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer a.Close()

	switch args[0] {
	case "list":
		ensureNoArgs(args[1:])
		listTools(flags, a.registry)
	case "call":
		if len(args) < 2 || len(args) > 3 {
			fatal(errors.New("usage: scribe tools call <name> [json input]"))
		}
		input := "{}"
		if len(args) == 3 {
			input = args[2]
		}
		res := a.registry.Invoke(ctx, args[1], input)
		if !res.OK() {
			if flags.JSON {
				printJSON(map[string]any{"error": res.Err})
			}
			fatal(res.Err)
		}
		printJSON(res.Output)
	default:
		fatal(fmt.Errorf("unknown tools command %q", args[0]))
	}
}

func listTools(flags globalFlags, registry *tool.Registry) {
	rows := toolRows(registry)
	if flags.JSON {
		printJSON(rows)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "TOOL", "INPUTS", "DESCRIPTION")
	for _, row := range rows {
		writeRow(writer, row.Name, row.Inputs, row.Description)
	}
	_ = writer.Flush()
}

// toolRows summarizes each tool's inputs as "name:type" pairs, required
// fields marked with "*".
func toolRows(registry *tool.Registry) []toolRow {
	defs := registry.List()
	rows := make([]toolRow, 0, len(defs))
	for _, def := range defs {
		var inputs []string
		if def.Schema != nil {
			for _, f := range def.Schema.Fields() {
				mark := ""
				if f.Required {
					mark = "*"
				}
				inputs = append(inputs, f.Name+mark+":"+f.Type)
			}
		}
		rows = append(rows, toolRow{
			Name:        def.Name,
			Description: def.Description,
			Inputs:      strings.Join(inputs, " "),
		})
	}
	return rows
}
