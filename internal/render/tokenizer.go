// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// TOKEN
// =============================================================================

// TokenKind distinguishes hard line breaks from ordinary text so sinks can
// represent a break natively instead of as literal text.
type TokenKind int

const (
	KindText TokenKind = iota
	KindBreak
)

// Token is one atomic unit of revelation.
type Token struct {
	Text    string
	Kind    TokenKind
	Segment SegmentType
	Mode    RenderMode
}

// IsBreak reports whether the token is a hard line break.
func (t Token) IsBreak() bool {
	return t.Kind == KindBreak
}

// Join concatenates token text in order.
func Join(tokens []Token) string {
	var sb strings.Builder
	n := 0
	for _, t := range tokens {
		n += len(t.Text)
	}
	sb.Grow(n)
	for _, t := range tokens {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// =============================================================================
// TOKENIZE
// =============================================================================

// Tokenize converts segments into a flat token sequence in document order.
func Tokenize(segments []Segment) []Token {
	tokens := make([]Token, 0, len(segments)*8)
	for _, seg := range segments {
		tokens = appendSegmentTokens(tokens, seg)
	}
	return tokens
}

// TokenizeSegment converts a single segment into tokens.
func TokenizeSegment(seg Segment) []Token {
	return appendSegmentTokens(nil, seg)
}

// TokenizeString analyzes and tokenizes content in one step.
func TokenizeString(content string) []Token {
	return Tokenize(Analyze(content))
}

func appendSegmentTokens(tokens []Token, seg Segment) []Token {
	if seg.Content == "" {
		return tokens
	}

	var parts []string
	switch seg.Mode {
	case ModeCharacter:
		parts = splitRunes(seg.Content)
	case ModeToken:
		parts = splitWords(seg.Content)
	case ModeLine:
		parts = splitLines(seg.Content)
	default:
		parts = []string{seg.Content}
	}

	for _, p := range parts {
		// A blank line holding whitespace stays text so its spaces survive.
		kind := KindText
		if isLineBreak(p) {
			kind = KindBreak
		}
		tokens = append(tokens, Token{
			Text:    p,
			Kind:    kind,
			Segment: seg.Type,
			Mode:    seg.Mode,
		})
	}
	return tokens
}

// splitRunes yields one part per code point. Invalid bytes become one part
// each so the original bytes are preserved.
func splitRunes(s string) []string {
	parts := make([]string, 0, utf8.RuneCountInString(s))
	for i := 0; i < len(s); {
		_, size := utf8.DecodeRuneInString(s[i:])
		parts = append(parts, s[i:i+size])
		i += size
	}
	return parts
}

// splitWords yields whitespace-prefixed words: leading whitespace attaches
// to the following word. A trailing whitespace run stands alone.
func splitWords(s string) []string {
	parts := make([]string, 0, 16)
	start := 0
	i := 0
	for i < len(s) {
		for i < len(s) {
			r, size := utf8.DecodeRuneInString(s[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		for i < len(s) {
			r, size := utf8.DecodeRuneInString(s[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
		parts = append(parts, s[start:i])
		start = i
	}
	return parts
}

func isLineBreak(s string) bool {
	return s == "\n" || s == "\r\n"
}
