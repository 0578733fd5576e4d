// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

func TestNormalize_ComposesAndStripsBOM(t *testing.T) {
	decomposed := "\ufeffcafe\u0301"
	require.Equal(t, "café", Normalize(decomposed))
	require.Len(t, render.TokenizeString(Normalize(decomposed)), 4)
}

func TestOpen_FileAndStdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n"), 0600))

	content, err := Open(path, nil)
	require.NoError(t, err)
	require.Equal(t, "# Title\n", content)

	content, err = Open("-", strings.NewReader("from stdin"))
	require.NoError(t, err)
	require.Equal(t, "from stdin", content)

	_, err = Open(filepath.Join(t.TempDir(), "missing.md"), nil)
	require.Error(t, err)
}

func TestChunk_RoundTrips(t *testing.T) {
	content := "one two  three\nfour\tfive six"
	chunks := Chunk(content, 2)
	require.Equal(t, []string{"one two  ", "three\nfour\t", "five six"}, chunks)
	require.Equal(t, content, strings.Join(chunks, ""))

	require.Nil(t, Chunk("", 3))
	require.Equal(t, []string{"  lead"}, Chunk("  lead", 5))
}

func TestStream_DeliversInOrder(t *testing.T) {
	var got []string
	for chunk := range Stream(context.Background(), []string{"a", "b", "c"}, time.Millisecond) {
		got = append(got, chunk)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestStream_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Stream(ctx, []string{"a", "b", "c"}, time.Hour)
	require.Equal(t, "a", <-ch)
	cancel()
	_, ok := <-ch
	require.False(t, ok)
}

func TestLorem_DocumentCoversSegmentTypes(t *testing.T) {
	doc := NewLorem().Document(4)
	seen := map[render.SegmentType]bool{}
	for _, seg := range render.Analyze(doc) {
		seen[seg.Type] = true
	}
	for _, want := range []render.SegmentType{
		render.SegmentHeading, render.SegmentText, render.SegmentReasoning,
		render.SegmentList, render.SegmentCode, render.SegmentTable, render.SegmentNewline,
	} {
		require.True(t, seen[want], "missing %s in:\n%s", want, doc)
	}
}
