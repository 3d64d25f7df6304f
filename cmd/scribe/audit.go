// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"strconv"

	"github.com/jllopis/scribe/pkg/audit"
	"github.com/jllopis/scribe/pkg/config"
)

func runAudit(ctx context.Context, flags globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	var filter audit.Filter
	cmd.StringVar(&filter.TaskID, "task", "", "Task id (kind:subject)")
	cmd.StringVar(&filter.RunID, "run", "", "Run id")
	cmd.StringVar(&filter.Transition, "transition", "", "Transition name (start, set_step, complete, fail, ...)")
	cmd.IntVar(&filter.Limit, "limit", 50, "Maximum events")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	if cfg.Audit.Path == "" || cfg.Audit.Path == ":memory:" {
		fatal(errors.New("audit: set audit.path to a sqlite file to read events"))
	}
	store, err := audit.OpenSQLite(cfg.Audit.Path)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	events, err := store.List(ctx, filter)
	if err != nil {
		fatal(err)
	}
	if flags.JSON {
		printJSON(events)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "AT", "TASK", "GEN", "TRANSITION", "APPLIED", "STATUS", "STEP", "ERROR")
	for _, ev := range events {
		step := ""
		if ev.Step != nil {
			step = ev.Step.Type
			if ev.Step.ToolName != "" {
				step += ":" + ev.Step.ToolName
			}
		}
		writeRow(writer,
			formatTime(ev.At),
			ev.TaskID,
			strconv.FormatUint(ev.Generation, 10),
			ev.Transition,
			strconv.FormatBool(ev.Applied),
			ev.Status,
			step,
			ev.Error,
		)
	}
	_ = writer.Flush()
}
