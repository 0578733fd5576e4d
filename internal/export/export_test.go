// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigrun-stream/internal/model"
)

func testConversation() *model.Conversation {
	conv := model.NewConversation("Go <tips> & tricks")
	msg := model.NewMessage(model.RoleAssistant,
		"# Intro\n\nUse **bold** and `code`.\n\n- one\n- two\n\n```go\nfmt.Println(\"<hi>\")\n```\n")
	msg.Complete(42, 1500*time.Millisecond)
	conv.AddMessage(msg)
	return conv
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"markdown", ".md"},
		{"MD", ".md"},
		{"html", ".html"},
		{"htm", ".html"},
		{"json", ".json"},
	}
	for _, tt := range tests {
		exporter, err := ForFormat(tt.format, nil)
		require.NoError(t, err, tt.format)
		require.Equal(t, tt.ext, exporter.FileExtension())
	}

	_, err := ForFormat("pdf", nil)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExport_EmptyConversation(t *testing.T) {
	conv := model.NewConversation("empty")
	for _, format := range Formats() {
		exporter, err := ForFormat(format, nil)
		require.NoError(t, err)
		_, err = exporter.Export(conv)
		require.ErrorIs(t, err, ErrEmptyConversation, format)
	}
}

func TestMarkdownExporter(t *testing.T) {
	conv := testConversation()
	out, err := NewMarkdownExporter(nil).Export(conv)
	require.NoError(t, err)
	doc := string(out)

	require.True(t, strings.HasPrefix(doc, "---\n"))
	end := strings.Index(doc[4:], "---\n")
	require.Positive(t, end)

	var fm frontmatter
	require.NoError(t, yaml.Unmarshal([]byte(doc[4:4+end]), &fm))
	require.Equal(t, conv.Title, fm.Title)
	require.Equal(t, 1, fm.Messages)
	require.Equal(t, 42, fm.Tokens)

	require.Contains(t, doc, "### [Assistant]")
	require.Contains(t, doc, "```go\nfmt.Println(\"<hi>\")\n```")
	require.Contains(t, doc, "Tokens: 42")
}

func TestMarkdownExporter_InterruptedClosesFence(t *testing.T) {
	conv := model.NewConversation("cut")
	msg := conv.AddMessage(model.NewMessage(model.RoleAssistant, "```py\nprint(1)"))
	msg.Status = model.StatusInterrupted

	opts := DefaultOptions()
	opts.IncludeMetadata = false
	out, err := NewMarkdownExporter(opts).Export(conv)
	require.NoError(t, err)
	require.Contains(t, string(out), "print(1)\n```")
	require.Contains(t, string(out), "*[interrupted]*")
	require.False(t, strings.HasPrefix(string(out), "---"))
}

func TestHTMLExporter(t *testing.T) {
	out, err := NewHTMLExporter(nil).Export(testConversation())
	require.NoError(t, err)
	doc := string(out)

	require.Contains(t, doc, "<title>Go &lt;tips&gt; &amp; tricks</title>")
	require.Contains(t, doc, "<h1>Intro</h1>")
	require.Contains(t, doc, "<strong>bold</strong>")
	require.Contains(t, doc, "<code class=\"inline-code\">code</code>")
	require.Contains(t, doc, "<li>one</li>")
	require.Contains(t, doc, "<div class=\"code-lang\">go</div>")
	require.Contains(t, doc, "&lt;hi&gt;")
	require.NotContains(t, doc, "<hi>")
	require.Contains(t, doc, "dark-theme")
}

func TestHTMLExporter_LightTheme(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = "light"
	out, err := NewHTMLExporter(opts).Export(testConversation())
	require.NoError(t, err)
	require.Contains(t, string(out), "<body class=\"light-theme\">")
}

func TestCodeBody(t *testing.T) {
	require.Equal(t, "a\nb", codeBody("```go\na\nb\n```\n"))
	require.Equal(t, "a", codeBody("```\na"))
	require.Equal(t, "", codeBody("```go\n```"))
	require.Equal(t, "", codeBody("```go"))
}

func TestJSONExporter(t *testing.T) {
	conv := testConversation()
	out, err := NewJSONExporter(nil).Export(conv)
	require.NoError(t, err)

	var decoded model.Conversation
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, conv.ID, decoded.ID)
	require.Len(t, decoded.Messages, 1)
}

func TestExportToFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "out")

	path, err := ExportToFile(testConversation(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	require.Equal(t, ".md", filepath.Ext(path))
	require.True(t, strings.HasPrefix(filepath.Base(path), "render_Go_-tips-_&_tricks_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Go")
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	require.Equal(t, "conversation", sanitizeFilename(""))
	require.Len(t, []rune(sanitizeFilename(strings.Repeat("x", 80))), 50)
}
