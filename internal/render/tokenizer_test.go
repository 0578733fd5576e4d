// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func TestTokenize_CharacterModeKeepsEmojiWhole(t *testing.T) {
	seg := newSegment(SegmentText, "hi 😀!")
	tokens := TokenizeSegment(seg)

	require.Equal(t, []string{"h", "i", " ", "😀", "!"}, texts(tokens))
	for _, tok := range tokens {
		require.Equal(t, ModeCharacter, tok.Mode)
	}
}

func TestTokenize_CharacterModePreservesInvalidBytes(t *testing.T) {
	seg := newSegment(SegmentText, "a\xffb")
	tokens := TokenizeSegment(seg)
	require.Equal(t, []string{"a", "\xff", "b"}, texts(tokens))
}

func TestTokenize_TokenMode(t *testing.T) {
	seg := newSegment(SegmentList, "hello world  foo ")
	require.Equal(t, []string{"hello", " world", "  foo", " "}, texts(TokenizeSegment(seg)))

	seg = newSegment(SegmentList, "  - a b\n")
	require.Equal(t, []string{"  -", " a", " b", "\n"}, texts(TokenizeSegment(seg)))
}

func TestTokenize_LineMode(t *testing.T) {
	seg := newSegment(SegmentCode, "```\na\nb")
	require.Equal(t, []string{"```\n", "a\n", "b"}, texts(TokenizeSegment(seg)))
}

func TestTokenize_InstantMode(t *testing.T) {
	content := "| A | B |\n|---|---|\n"
	tokens := TokenizeSegment(newSegment(SegmentTable, content))
	require.Len(t, tokens, 1)
	require.Equal(t, content, tokens[0].Text)
	require.False(t, tokens[0].IsBreak())
}

func TestTokenize_BreakTokens(t *testing.T) {
	tokens := TokenizeString("a\n\nb")

	require.Equal(t, []string{"a", "\n", "\n", "b"}, texts(tokens))
	require.False(t, tokens[0].IsBreak())
	require.True(t, tokens[1].IsBreak())
	require.True(t, tokens[2].IsBreak())
	require.Equal(t, SegmentNewline, tokens[2].Segment)
}

func TestTokenize_WhitespaceBlankLineIsText(t *testing.T) {
	tokens := TokenizeString("a\n   \nb")

	require.Equal(t, []string{"a", "\n", "   \n", "b"}, texts(tokens))
	require.True(t, tokens[1].IsBreak())
	require.False(t, tokens[2].IsBreak())
	require.Equal(t, SegmentNewline, tokens[2].Segment)
}

func TestTokenize_PreservesDocumentOrder(t *testing.T) {
	tokens := TokenizeString("# Hi\n```\nx\n```\n")
	require.Equal(t, []string{"#", " Hi", "\n", "```\n", "x\n", "```\n"}, texts(tokens))
	require.Equal(t, SegmentHeading, tokens[0].Segment)
	require.Equal(t, SegmentCode, tokens[3].Segment)
}

func TestTokenize_RoundTrip(t *testing.T) {
	for _, input := range analyzerCorpus {
		segs := Analyze(input)
		for _, seg := range segs {
			require.Equal(t, seg.Content, Join(TokenizeSegment(seg)))
		}
		require.Equal(t, input, Join(Tokenize(segs)))
	}
}

func TestTokenize_Empty(t *testing.T) {
	require.Empty(t, TokenizeString(""))
	require.Empty(t, TokenizeSegment(Segment{Mode: ModeCharacter}))
}
