// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile_CreatesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.toml")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0600))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
}

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"日本語テキスト", 7, "日本..."},
		{"abcdef", 2, "ab"},
		{"abc", 0, ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, TruncateWidth(tc.in, tc.width), tc.in)
		require.LessOrEqual(t, StringWidth(TruncateWidth(tc.in, tc.width)), tc.width)
	}
}

func TestPadRight(t *testing.T) {
	require.Equal(t, "日本  ", PadRight("日本", 6))
	require.Equal(t, 6, StringWidth(PadRight("ab", 6)))
}

func TestFirstLine(t *testing.T) {
	require.Equal(t, "title", FirstLine("\n  \n  title  \nbody"))
	require.Empty(t, FirstLine(" \n"))
}
