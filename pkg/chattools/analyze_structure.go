// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package chattools

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/scribe/pkg/tool"
)

// AnalyzeStructureName is the registered name of the note outline tool.
const AnalyzeStructureName = "analyze_structure"

// AnalyzeStructureInput is the note to analyze.
type AnalyzeStructureInput struct {
	Content string `json:"content" jsonschema_description:"Markdown body of the note, optionally starting with YAML front matter"`
}

// Heading is one markdown heading.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Structure describes the outline of a note.
type Structure struct {
	FrontMatter map[string]any `json:"front_matter,omitempty"`
	Headings    []Heading      `json:"headings"`
	Bullets     int            `json:"bullets"`
	Tasks       int            `json:"tasks"`
	Paragraphs  int            `json:"paragraphs"`
	Words       int            `json:"words"`
}

// NewAnalyzeStructure builds the analyze_structure tool used by the enhance
// flow to plan a rewrite.
func NewAnalyzeStructure() tool.Definition {
	return tool.New(AnalyzeStructureName,
		"Analyze the outline of a note: headings, bullet and task counts, paragraphs and length.",
		func(_ context.Context, in AnalyzeStructureInput) (Structure, error) {
			return AnalyzeStructure(in.Content)
		})
}

// AnalyzeStructure parses content. Malformed front matter is an error.
func AnalyzeStructure(content string) (Structure, error) {
	s := Structure{Headings: []Heading{}}

	body, front, err := splitFrontMatter(content)
	if err != nil {
		return Structure{}, err
	}
	s.FrontMatter = front

	inParagraph := false
	inFence := false
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			inParagraph = false
			continue
		}
		if inFence {
			continue
		}

		switch {
		case line == "":
			inParagraph = false
		case strings.HasPrefix(line, "#"):
			level := len(line) - len(strings.TrimLeft(line, "#"))
			text := strings.TrimSpace(line[level:])
			if level <= 6 && text != "" {
				s.Headings = append(s.Headings, Heading{Level: level, Text: text})
			}
			s.Words += len(strings.Fields(text))
			inParagraph = false
		case isTask(line):
			s.Tasks++
			s.Bullets++
			s.Words += len(strings.Fields(line[len("- [ ] "):]))
			inParagraph = false
		case isBullet(line):
			s.Bullets++
			s.Words += len(strings.Fields(line)) - 1
			inParagraph = false
		default:
			s.Words += len(strings.Fields(line))
			if !inParagraph {
				s.Paragraphs++
				inParagraph = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Structure{}, fmt.Errorf("scan note: %w", err)
	}
	return s, nil
}

func splitFrontMatter(content string) (string, map[string]any, error) {
	if !strings.HasPrefix(content, "---\n") {
		return content, nil, nil
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content, nil, nil
	}
	var front map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &front); err != nil {
		return "", nil, fmt.Errorf("front matter: %w", err)
	}
	body := strings.TrimPrefix(rest[end+len("\n---"):], "\n")
	return body, front, nil
}

func isBullet(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
		return true
	}
	// Ordered list: "1. item" or "1) item".
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' '
}

func isTask(line string) bool {
	for _, prefix := range []string{"- [ ] ", "- [x] ", "- [X] ", "* [ ] ", "* [x] "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
