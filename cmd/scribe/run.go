// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jllopis/scribe/pkg/config"
	"github.com/jllopis/scribe/pkg/orchestrator"
	"github.com/jllopis/scribe/pkg/task"
)

type runFlags struct {
	kind    string
	subject string
	prompt  string
	file    string
}

func parseRunFlags(args []string) (runFlags, error) {
	var rf runFlags
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(io.Discard)
	cmd.StringVar(&rf.kind, "kind", string(task.KindEnhance), "Task kind: enhance, title or chat")
	cmd.StringVar(&rf.subject, "subject", "", "Subject id (note or session)")
	cmd.StringVar(&rf.prompt, "prompt", "", "Prompt text")
	cmd.StringVar(&rf.file, "file", "", "Read the prompt from a file ('-' for stdin)")
	if err := cmd.Parse(args); err != nil {
		return rf, err
	}
	if cmd.NArg() > 0 {
		return rf, fmt.Errorf("unexpected args: %v", cmd.Args())
	}
	if !task.Kind(rf.kind).Valid() {
		return rf, fmt.Errorf("unknown kind %q", rf.kind)
	}
	if rf.subject == "" {
		return rf, errors.New("--subject is required")
	}
	if (rf.prompt == "") == (rf.file == "") {
		return rf, errors.New("exactly one of --prompt or --file is required")
	}
	return rf, nil
}

func readPrompt(rf runFlags, stdin io.Reader) (string, error) {
	if rf.prompt != "" {
		return rf.prompt, nil
	}
	if rf.file == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(rf.file)
	return string(data), err
}

func runTask(ctx context.Context, flags globalFlags, cfg *config.Config, args []string) {
	rf, err := parseRunFlags(args)
	if err != nil {
		fatal(err)
	}
	prompt, err := readPrompt(rf, os.Stdin)
	if err != nil {
		fatal(err)
	}

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer a.Close()

	id := task.MakeID(rf.subject, task.Kind(rf.kind))
	printer := newStreamPrinter(os.Stdout, os.Stderr, flags.JSON)
	unsubscribe := task.SubscribeID(a.store, id, printer.update)

	runCtx, cancel := context.WithTimeout(ctx, flags.Timeout)
	defer cancel()
	out, err := a.runner.Run(runCtx, orchestrator.Request{
		Subject: rf.subject,
		Kind:    task.Kind(rf.kind),
		Prompt:  prompt,
	})
	unsubscribe()
	if err != nil {
		fatal(err)
	}
	printer.finish(out)
	if flags.JSON {
		st, _ := a.store.Get(id)
		printJSON(task.ViewOfState(id, st))
	}
	if out.Err != nil {
		fatal(out.Err)
	}
}

// streamPrinter writes streamed text as it arrives and reports label
// changes on the status writer.
type streamPrinter struct {
	mu        sync.Mutex
	out       io.Writer
	status    io.Writer
	quiet     bool
	printed   int
	lastLabel string
}

func newStreamPrinter(out, status io.Writer, quiet bool) *streamPrinter {
	return &streamPrinter{out: out, status: status, quiet: quiet}
}

func (p *streamPrinter) update(st task.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	if label := task.Label(st.CurrentStep); label != p.lastLabel {
		p.lastLabel = label
		fmt.Fprintf(p.status, "[%s]\n", strings.TrimSuffix(label, "..."))
	}
	p.write(st.StreamedText)
}

func (p *streamPrinter) finish(out orchestrator.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	p.write(out.Text)
	if p.printed > 0 {
		fmt.Fprintln(p.out)
	}
}

func (p *streamPrinter) write(text string) {
	if len(text) < p.printed {
		// A new run restarted the text.
		p.printed = 0
	}
	if len(text) > p.printed {
		fmt.Fprint(p.out, text[p.printed:])
		p.printed = len(text)
	}
}
