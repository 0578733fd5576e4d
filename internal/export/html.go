// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/rigrun-stream/internal/model"
	"github.com/jeranaias/rigrun-stream/internal/render"
)

var (
	headingMarker = regexp.MustCompile(`^[ \t]*#{1,6}[ \t]*`)
	listMarker    = regexp.MustCompile(`^[ \t]*(?:[-*+]|[0-9]+[.)])[ \t]+`)
	reasoningTag  = regexp.MustCompile(`(?i)</?(?:think|thinking|thought|reasoning)>`)

	inlineCode = regexp.MustCompile("`([^`]+)`")
	boldText   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicText = regexp.MustCompile(`\*([^*]+)\*`)
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page. Message
// content is split with the same analyzer the renderer uses, so headings,
// lists, tables and code blocks keep their structure; code is highlighted
// with chroma.
type HTMLExporter struct {
	options *Options
	now     func() time.Time
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts, now: time.Now}
}

// Export converts a conversation to HTML.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(conv.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"rigrun-stream\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", conv.CreatedAt.Format(time.RFC3339))
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		e.writeHeader(&sb, conv)
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range conv.Messages {
		e.writeMessage(&sb, msg, theme)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>rigrun-stream</strong> on %s</p>\n",
		e.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) writeHeader(sb *strings.Builder, conv *model.Conversation) {
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(sb, "            <h1>%s</h1>\n", html.EscapeString(conv.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(conv.CreatedAt))
	fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(conv.Messages))
	if tokens := totalTokens(conv); tokens > 0 {
		fmt.Fprintf(sb, "                <span class=\"meta-item\"><strong>Tokens:</strong> %d</span>\n", tokens)
	}
	sb.WriteString("            </div>\n        </header>\n")
}

func (e *HTMLExporter) writeMessage(sb *strings.Builder, msg *model.Message, theme string) {
	fmt.Fprintf(sb, "            <div class=\"message %s-message\">\n", html.EscapeString(strings.ToLower(string(msg.Role))))

	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(sb, "                    <span class=\"role-label\">%s</span>\n", html.EscapeString(roleLabel(msg.Role)))
	if e.options.IncludeTimestamps {
		fmt.Fprintf(sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp))
	}
	if msg.Status == model.StatusInterrupted {
		sb.WriteString("                    <span class=\"interrupted\">interrupted</span>\n")
	}
	sb.WriteString("                </div>\n")

	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(formatContent(msg.Content, theme))
	sb.WriteString("                </div>\n")

	if e.options.IncludeMetadata {
		if stats := formatStats(msg); len(stats) > 0 {
			sb.WriteString("                <div class=\"message-stats\">\n")
			for _, s := range stats {
				fmt.Fprintf(sb, "                    <span class=\"stat\">%s</span>\n", html.EscapeString(s))
			}
			sb.WriteString("                </div>\n")
		}
	}

	sb.WriteString("            </div>\n")
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// formatContent converts markdown content to HTML one analyzed segment at a time.
func formatContent(content, theme string) string {
	var sb strings.Builder
	for _, seg := range render.Analyze(content) {
		switch seg.Type {
		case render.SegmentCode:
			sb.WriteString(formatCode(seg, theme))
		case render.SegmentHeading:
			level := max(1, min(seg.Depth, 6))
			text := headingMarker.ReplaceAllString(strings.TrimSpace(seg.Content), "")
			fmt.Fprintf(&sb, "<h%d>%s</h%d>\n", level, formatInline(text), level)
		case render.SegmentList:
			sb.WriteString("<ul>\n")
			for _, line := range nonEmptyLines(seg.Content) {
				fmt.Fprintf(&sb, "<li>%s</li>\n", formatInline(listMarker.ReplaceAllString(line, "")))
			}
			sb.WriteString("</ul>\n")
		case render.SegmentTable:
			fmt.Fprintf(&sb, "<pre class=\"table\">%s</pre>\n", html.EscapeString(strings.TrimRight(seg.Content, "\n")))
		case render.SegmentReasoning:
			body := strings.TrimSpace(reasoningTag.ReplaceAllString(seg.Content, ""))
			fmt.Fprintf(&sb, "<details class=\"reasoning\"><summary>Reasoning</summary><p>%s</p></details>\n",
				strings.ReplaceAll(html.EscapeString(body), "\n", "<br>\n"))
		case render.SegmentNewline:
		default:
			text := strings.TrimSpace(seg.Content)
			if text == "" {
				continue
			}
			lines := strings.Split(text, "\n")
			for i := range lines {
				lines[i] = formatInline(lines[i])
			}
			fmt.Fprintf(&sb, "<p>%s</p>\n", strings.Join(lines, "<br>\n"))
		}
	}
	return sb.String()
}

// formatInline escapes text and converts inline code and emphasis.
func formatInline(text string) string {
	text = html.EscapeString(strings.TrimSpace(text))
	text = inlineCode.ReplaceAllString(text, "<code class=\"inline-code\">$1</code>")
	text = boldText.ReplaceAllString(text, "<strong>$1</strong>")
	text = italicText.ReplaceAllString(text, "<em>$1</em>")
	return text
}

// formatCode highlights a fenced code segment. An unclosed fence is
// rendered up to the end of the content.
func formatCode(seg render.Segment, theme string) string {
	body := codeBody(seg.Content)

	label := ""
	if seg.Language != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(seg.Language))
	}
	return fmt.Sprintf("<div class=\"code-block\">%s%s</div>\n", label, highlightHTML(body, seg.Language, theme))
}

// codeBody strips the opening and closing fence lines.
func codeBody(content string) string {
	_, body, ok := strings.Cut(content, "\n")
	if !ok {
		return ""
	}
	trimmed := strings.TrimRight(body, "\n")
	if i := strings.LastIndex(trimmed, "\n"); strings.HasPrefix(strings.TrimSpace(trimmed[i+1:]), "```") {
		if i < 0 {
			return ""
		}
		return trimmed[:i]
	}
	return trimmed
}

// highlightHTML renders code as a <pre> block with inline chroma styles,
// falling back to escaped plain text.
func highlightHTML(code, language, theme string) string {
	plain := fmt.Sprintf("<pre><code>%s</code></pre>", html.EscapeString(code))

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if theme == "light" {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plain
	}

	var buf strings.Builder
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return plain
	}
	return buf.String()
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --accent-blue: #7aa2f7;
            --accent-green: #9ece6a;
            --accent-purple: #bb9af7;
            --accent-red: #f7768e;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --accent-blue: #0366d6;
            --accent-green: #22863a;
            --accent-purple: #6f42c1;
            --accent-red: #d73a49;
        }

        body {
            font-family: var(--font-sans);
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 32px; background: var(--bg-tertiary); border-bottom: 2px solid var(--border-color); }
        .header h1 { font-size: 28px; margin-bottom: 16px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-muted); }
        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 24px; padding: 20px; border-radius: 8px; border-left: 4px solid transparent; }
        .user-message { border-left-color: var(--accent-blue); }
        .assistant-message { border-left-color: var(--accent-green); }
        .system-message { border-left-color: var(--accent-purple); }
        .message-header { display: flex; gap: 12px; margin-bottom: 12px; font-size: 14px; }
        .role-label { font-weight: 600; }
        .timestamp { color: var(--text-muted); }
        .interrupted { color: var(--accent-red); }
        .message-content p, .message-content ul, .message-content h1, .message-content h2,
        .message-content h3, .message-content h4, .message-content h5, .message-content h6 { margin-bottom: 12px; }
        .message-content ul { padding-left: 24px; }
        .message-stats { display: flex; gap: 16px; margin-top: 12px; font-size: 12px; color: var(--text-muted); }
        .code-block { margin: 12px 0; border-radius: 6px; overflow: hidden; border: 1px solid var(--border-color); }
        .code-lang { padding: 4px 12px; font-size: 12px; color: var(--text-muted); background: var(--bg-tertiary); }
        pre { font-family: var(--font-mono); font-size: 14px; padding: 12px; overflow-x: auto; }
        pre.table { border: 1px solid var(--border-color); border-radius: 6px; margin-bottom: 12px; }
        .inline-code { font-family: var(--font-mono); padding: 2px 4px; border-radius: 4px; background: var(--bg-tertiary); }
        .reasoning { margin-bottom: 12px; color: var(--text-muted); font-style: italic; }
        .reasoning summary { cursor: pointer; }
        .footer { padding: 16px 32px; text-align: center; font-size: 12px; color: var(--text-muted); border-top: 1px solid var(--border-color); }
    </style>
`
