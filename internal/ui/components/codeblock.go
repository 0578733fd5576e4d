// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/rigrun-stream/internal/ui/styles"
)

// Cursor is drawn after the last revealed character of an incomplete block.
const Cursor = "▌"

// =============================================================================
// ANIMATED CODE BLOCK
// =============================================================================

// AnimatedCodeBlock presents a code block whose lines arrive over time.
// Completed lines are syntax highlighted; the line still being revealed is
// shown plain with a cursor. Highlighting is cached per completed line count
// so a frame only re-highlights when a line is finished.
type AnimatedCodeBlock struct {
	Language string
	MaxWidth int

	code     strings.Builder
	complete bool

	highlightedLines int
	highlighted      []string
}

// NewAnimatedCodeBlock creates an empty code block.
func NewAnimatedCodeBlock(language string, maxWidth int) *AnimatedCodeBlock {
	return &AnimatedCodeBlock{
		Language: strings.TrimSpace(language),
		MaxWidth: maxWidth,
	}
}

// Append adds revealed code.
func (c *AnimatedCodeBlock) Append(text string) {
	c.code.WriteString(text)
}

// SetCode replaces the revealed code. Cached highlighting survives when the
// new code extends the old.
func (c *AnimatedCodeBlock) SetCode(code string) {
	if !strings.HasPrefix(code, c.code.String()) {
		c.highlightedLines = 0
		c.highlighted = nil
	}
	c.code.Reset()
	c.code.WriteString(code)
}

// Code returns the revealed code.
func (c *AnimatedCodeBlock) Code() string {
	return c.code.String()
}

// Finish marks the block fully revealed.
func (c *AnimatedCodeBlock) Finish() {
	c.complete = true
}

// Complete reports whether the block is fully revealed.
func (c *AnimatedCodeBlock) Complete() bool {
	return c.complete
}

// Render draws the block with line numbers inside a bordered container.
func (c *AnimatedCodeBlock) Render(theme *styles.Theme) string {
	code := c.code.String()
	lines := strings.Split(code, "\n")

	// The last element is the line in progress (empty after a newline).
	done := lines[:len(lines)-1]
	partial := lines[len(lines)-1]
	if c.complete && partial != "" {
		done = lines
		partial = ""
	}

	if len(done) != c.highlightedLines {
		c.highlighted = c.highlightLines(done)
		c.highlightedLines = len(done)
	}

	rendered := make([]string, 0, len(lines))
	for i, line := range c.highlighted {
		rendered = append(rendered, theme.LineNumber.Render(strconv.Itoa(i+1))+line)
	}
	if !c.complete {
		rendered = append(rendered,
			theme.LineNumber.Render(strconv.Itoa(len(done)+1))+partial+theme.Cursor.Render(Cursor))
	}

	var header string
	if c.Language != "" {
		header = theme.CodeBadge.Render(c.Language) + "\n"
	}

	maxWidth := c.MaxWidth - 4
	if maxWidth < 20 {
		maxWidth = 20
	}
	return theme.CodeBlock.MaxWidth(maxWidth).Render(header + strings.Join(rendered, "\n"))
}

func (c *AnimatedCodeBlock) highlightLines(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := strings.Split(Highlight(strings.Join(lines, "\n"), c.Language), "\n")
	// Formatters may add or drop a trailing newline.
	for len(out) > len(lines) && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	for len(out) < len(lines) {
		out = append(out, "")
	}
	return out
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// Highlight applies terminal syntax highlighting. It returns code unchanged
// when highlighting fails.
func Highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// DetectLanguage guesses the language of code, or returns "".
func DetectLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}

// SplitFence separates a fenced code segment into its language, body and
// whether the closing fence has been revealed.
func SplitFence(segment string) (language, body string, closed bool) {
	first, rest, ok := strings.Cut(segment, "\n")
	trimmed := strings.TrimSpace(first)
	if !strings.HasPrefix(trimmed, "```") {
		return "", segment, false
	}
	language = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	if !ok {
		return language, "", false
	}

	body = rest
	trimmedBody := strings.TrimRight(body, "\n")
	lastNL := strings.LastIndex(trimmedBody, "\n")
	lastLine := trimmedBody[lastNL+1:]
	if strings.TrimSpace(lastLine) == "```" {
		closed = true
		body = trimmedBody[:lastNL+1]
	}
	return language, body, closed
}
