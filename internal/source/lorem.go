// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package source

import (
	"fmt"
	"strings"

	loremgen "github.com/bozaro/golorem"
)

// Lorem generates placeholder markdown documents.
type Lorem struct {
	generator *loremgen.Lorem
}

// NewLorem creates a lorem generator.
func NewLorem() *Lorem {
	return &Lorem{generator: loremgen.New()}
}

// Paragraph returns one paragraph of 3 to 5 sentences.
func (l *Lorem) Paragraph() string {
	return l.generator.Paragraph(3, 5)
}

// Document returns a markdown document with the given number of sections.
// Every section carries a heading and prose; the sections rotate through a
// reasoning block, a list, a code block and a table so a demo render shows
// each pacing mode.
func (l *Lorem) Document(sections int) string {
	if sections <= 0 {
		sections = 1
	}
	var sb strings.Builder
	for i := 0; i < sections; i++ {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "## %s\n\n", strings.TrimSuffix(l.generator.Sentence(2, 5), "."))
		sb.WriteString(l.Paragraph())
		sb.WriteString("\n\n")

		switch i % 4 {
		case 0:
			fmt.Fprintf(&sb, "<think>\n%s\n</think>\n", l.generator.Sentence(6, 12))
		case 1:
			for j := 0; j < 3; j++ {
				fmt.Fprintf(&sb, "- %s\n", l.generator.Sentence(3, 8))
			}
		case 2:
			fmt.Fprintf(&sb, "```go\nfunc %s() string {\n\treturn %q\n}\n```\n",
				l.generator.Word(4, 8), l.generator.Word(3, 10))
		case 3:
			sb.WriteString("| term | meaning |\n|---|---|\n")
			for j := 0; j < 2; j++ {
				fmt.Fprintf(&sb, "| %s | %s |\n", l.generator.Word(3, 8), l.generator.Word(3, 8))
			}
		}
	}
	return sb.String()
}
