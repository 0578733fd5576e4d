// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strings"
)

// =============================================================================
// LINE PATTERNS
// =============================================================================

// The analyzer is a line-prefix heuristic, not a CommonMark parser. Nested
// constructs (a table inside a list item) can misclassify.

var (
	headingPattern  = regexp.MustCompile(`^[ ]{0,3}(#{1,6})[ \t]`)
	listItemPattern = regexp.MustCompile(`^([ \t]*)([-*+]|[0-9]+[.)])[ \t]+`)

	reasoningPrefixPattern = regexp.MustCompile(`(?i)^[ \t]*(?:>[ \t]*)?(?:thinking|reasoning|analysis):`)
	reasoningTagPattern    = regexp.MustCompile(`(?i)^[ \t]*<(think|thinking|thought|reasoning)>`)
)

// indentUnit is the number of columns per list nesting level.
const indentUnit = 2

// markdownFormatting holds characters that make a text run carry inline markdown.
const markdownFormatting = "*_~`[]!"

// =============================================================================
// ANALYZE
// =============================================================================

// Analyze classifies content into ordered, non-overlapping segments.
//
// Each segment covers whole lines including their terminators, so the
// concatenated Content of the result is exactly the input. Unterminated
// constructs (an open code fence, an unclosed reasoning tag) are not errors:
// they extend to the end of the input. Empty input yields no segments.
func Analyze(content string) []Segment {
	if content == "" {
		return []Segment{}
	}

	lines := splitLines(content)
	segments := make([]Segment, 0, 8)

	for i := 0; i < len(lines); {
		body := lineBody(lines[i])

		var seg Segment
		var end int

		switch {
		case isFence(body):
			end = scanFence(lines, i)
			seg = newSegment(SegmentCode, joinLines(lines[i:end]))
			seg.Language = fenceLanguage(body)

		case reasoningTagPattern.MatchString(body):
			end = scanReasoningTag(lines, i)
			seg = newSegment(SegmentReasoning, joinLines(lines[i:end]))

		case reasoningPrefixPattern.MatchString(body):
			end = scanReasoningPrefix(lines, i)
			seg = newSegment(SegmentReasoning, joinLines(lines[i:end]))

		case isTableRow(body):
			end = i + 1
			for end < len(lines) && isTableRow(lineBody(lines[end])) {
				end++
			}
			seg = newSegment(SegmentTable, joinLines(lines[i:end]))

		case headingPattern.MatchString(body):
			end = i + 1
			seg = newSegment(SegmentHeading, lines[i])
			seg.Depth = len(headingPattern.FindStringSubmatch(body)[1])

		case listItemPattern.MatchString(body):
			var depth int
			end, depth = scanList(lines, i)
			seg = newSegment(SegmentList, joinLines(lines[i:end]))
			seg.Depth = depth

		case isBlank(body):
			end = i + 1
			seg = newSegment(SegmentNewline, lines[i])

		default:
			end = i + 1
			for end < len(lines) {
				next := lineBody(lines[end])
				if isBlank(next) || startsSpecial(next) {
					break
				}
				end++
			}
			seg = newSegment(SegmentText, joinLines(lines[i:end]))
			seg.HasFormatting = strings.ContainsAny(seg.Content, markdownFormatting)
		}

		segments = append(segments, seg)
		i = end
	}

	return mergeText(segments)
}

// mergeText joins adjacent plain text segments. Segments carrying inline
// formatting never merge so they keep their own re-render granularity.
func mergeText(segments []Segment) []Segment {
	if len(segments) < 2 {
		return segments
	}
	merged := segments[:1]
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		if mergeable(*last) && mergeable(seg) {
			last.Content += seg.Content
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

func mergeable(s Segment) bool {
	return s.Type == SegmentText && s.Mode == ModeCharacter && !s.HasFormatting
}

// =============================================================================
// MULTI-LINE SCANNERS
// =============================================================================

// scanFence returns the index one past the closing fence, or len(lines)
// when the fence is never closed.
func scanFence(lines []string, start int) int {
	for j := start + 1; j < len(lines); j++ {
		if isFence(lineBody(lines[j])) {
			return j + 1
		}
	}
	return len(lines)
}

func scanReasoningTag(lines []string, start int) int {
	tag := strings.ToLower(reasoningTagPattern.FindStringSubmatch(lineBody(lines[start]))[1])
	closing := "</" + tag + ">"
	for j := start; j < len(lines); j++ {
		if strings.Contains(strings.ToLower(lines[j]), closing) {
			return j + 1
		}
	}
	return len(lines)
}

// scanReasoningPrefix extends a "Thinking:" block over blockquote or indented
// lines. Blank lines are absorbed only when a continuation line follows them.
func scanReasoningPrefix(lines []string, start int) int {
	end := start + 1
	for end < len(lines) {
		body := lineBody(lines[end])
		if isReasoningContinuation(body) {
			end++
			continue
		}
		if !isBlank(body) {
			break
		}
		next := nextNonBlank(lines, end)
		if next < 0 || !isReasoningContinuation(lineBody(lines[next])) {
			break
		}
		end = next
	}
	return end
}

func isReasoningContinuation(body string) bool {
	if isBlank(body) {
		return false
	}
	if strings.HasPrefix(strings.TrimLeft(body, " \t"), ">") {
		return true
	}
	return indentWidth(body) >= 2
}

// scanList extends a list over further items and lines indented past the
// first item, absorbing interior blank lines. It returns the end index and
// the nesting depth derived from the deepest item indentation.
func scanList(lines []string, start int) (int, int) {
	base := indentWidth(lineBody(lines[start]))
	maxExtra := 0

	continues := func(body string) bool {
		return listItemPattern.MatchString(body) || indentWidth(body) > base
	}

	end := start + 1
	for end < len(lines) {
		body := lineBody(lines[end])
		if isBlank(body) {
			next := nextNonBlank(lines, end)
			if next < 0 || !continues(lineBody(lines[next])) {
				break
			}
			end = next
			continue
		}
		if !continues(body) {
			break
		}
		if listItemPattern.MatchString(body) {
			if extra := indentWidth(body) - base; extra > maxExtra {
				maxExtra = extra
			}
		}
		end++
	}
	return end, maxExtra / indentUnit
}

// =============================================================================
// LINE HELPERS
// =============================================================================

// splitLines splits content after each newline. The final line may lack a
// terminator; no empty trailing element is produced.
func splitLines(content string) []string {
	lines := strings.SplitAfter(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func joinLines(lines []string) string {
	if len(lines) == 1 {
		return lines[0]
	}
	return strings.Join(lines, "")
}

// lineBody strips the line terminator.
func lineBody(line string) string {
	return strings.TrimRight(line, "\r\n")
}

func isBlank(body string) bool {
	return strings.TrimSpace(body) == ""
}

func nextNonBlank(lines []string, from int) int {
	for j := from; j < len(lines); j++ {
		if !isBlank(lineBody(lines[j])) {
			return j
		}
	}
	return -1
}

func isFence(body string) bool {
	return strings.HasPrefix(strings.TrimLeft(body, " \t"), "```")
}

func fenceLanguage(body string) string {
	info := strings.TrimSpace(strings.TrimLeft(strings.TrimLeft(body, " \t"), "`"))
	if fields := strings.Fields(info); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func isTableRow(body string) bool {
	t := strings.TrimSpace(body)
	if len(t) < 2 || t[0] != '|' || t[len(t)-1] != '|' {
		return false
	}
	return strings.TrimSpace(strings.Trim(t, "|")) != ""
}

// startsSpecial reports whether a line opens a non-text segment.
func startsSpecial(body string) bool {
	return isFence(body) ||
		reasoningTagPattern.MatchString(body) ||
		reasoningPrefixPattern.MatchString(body) ||
		isTableRow(body) ||
		headingPattern.MatchString(body) ||
		listItemPattern.MatchString(body)
}

// indentWidth counts leading columns; a tab counts as one indent unit pair.
func indentWidth(body string) int {
	width := 0
	for _, r := range body {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 2 * indentUnit
		default:
			return width
		}
	}
	return width
}
