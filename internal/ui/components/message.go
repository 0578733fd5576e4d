// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/ui/styles"
)

// =============================================================================
// TOKENIZED MESSAGE
// =============================================================================

// TokenizedMessage presents revealed content. While content is streaming
// each segment is styled by type and code blocks are drawn as
// AnimatedCodeBlocks. Once complete, content is rendered as markdown when
// enabled.
type TokenizedMessage struct {
	Width    int
	Markdown bool

	theme    *styles.Theme
	renderer *glamour.TermRenderer
	blocks   []*AnimatedCodeBlock

	// final caches the markdown rendering of completed content.
	final        string
	finalContent string
}

// NewTokenizedMessage creates a message presenter.
func NewTokenizedMessage(theme *styles.Theme, width int, markdown bool) *TokenizedMessage {
	if theme == nil {
		theme = styles.DefaultTheme()
	}
	return &TokenizedMessage{
		Width:    width,
		Markdown: markdown,
		theme:    theme,
	}
}

// SetWidth changes the wrap width.
func (m *TokenizedMessage) SetWidth(width int) {
	if width == m.Width {
		return
	}
	m.Width = width
	m.renderer = nil
	m.finalContent = ""
	for _, b := range m.blocks {
		b.MaxWidth = width
	}
}

// Render presents content. complete selects the final markdown rendering.
func (m *TokenizedMessage) Render(content string, complete bool) string {
	if complete && m.Markdown {
		if out, ok := m.renderMarkdown(content); ok {
			return out
		}
	}
	return m.renderSegments(content, complete)
}

func (m *TokenizedMessage) renderSegments(content string, complete bool) string {
	segments := render.Analyze(content)

	var sb strings.Builder
	code := 0
	for _, seg := range segments {
		if seg.Type == render.SegmentCode {
			sb.WriteString(m.renderCode(code, seg, complete))
			code++
			continue
		}
		sb.WriteString(styleLines(m.theme.Segment(seg.Type), seg.Content))
	}
	m.blocks = m.blocks[:code]
	return sb.String()
}

func (m *TokenizedMessage) renderCode(i int, seg render.Segment, complete bool) string {
	language, body, closed := SplitFence(seg.Content)
	if seg.Language != "" {
		language = seg.Language
	}
	if i == len(m.blocks) {
		m.blocks = append(m.blocks, NewAnimatedCodeBlock(language, m.Width))
	}
	block := m.blocks[i]
	if block.Language != language {
		block = NewAnimatedCodeBlock(language, m.Width)
		m.blocks[i] = block
	}
	block.SetCode(body)
	if closed || complete {
		block.Finish()
	}

	out := block.Render(m.theme)
	if strings.HasSuffix(seg.Content, "\n") {
		out += "\n"
	}
	return out
}

func (m *TokenizedMessage) renderMarkdown(content string) (string, bool) {
	if m.finalContent == content && m.final != "" {
		return m.final, true
	}
	if m.renderer == nil {
		style := "light"
		if m.theme.IsDark {
			style = "dark"
		}
		width := m.Width
		if width <= 0 {
			width = 80
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", false
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return "", false
	}
	m.final = out
	m.finalContent = content
	return out, true
}

// styleLines styles each line separately so newlines pass through untouched.
func styleLines(style lipgloss.Style, content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
