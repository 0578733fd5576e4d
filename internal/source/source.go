// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// MaxInputSize bounds how much content Read accepts.
const MaxInputSize = 16 << 20

// ErrTooLarge is returned for input over MaxInputSize.
var ErrTooLarge = errors.New("input exceeds maximum size")

// Normalize returns s in Unicode normalization form C with any leading
// byte order mark removed.
func Normalize(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return norm.NFC.String(s)
}

// Read reads all of r and normalizes it.
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) > MaxInputSize {
		return "", ErrTooLarge
	}
	return Normalize(string(data)), nil
}

// Open reads the named file, or stdin when name is "-" or empty.
func Open(name string, stdin io.Reader) (string, error) {
	if name == "" || name == "-" {
		return Read(stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()
	return Read(f)
}

// Chunk splits content into pieces of about wordsPerChunk words, the way a
// model streams its reply. Concatenating the chunks yields content exactly.
func Chunk(content string, wordsPerChunk int) []string {
	if content == "" {
		return nil
	}
	if wordsPerChunk <= 0 {
		wordsPerChunk = 1
	}

	var chunks []string
	start, words := 0, 0
	inWord := false
	for i, r := range content {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord {
			if words == wordsPerChunk {
				chunks = append(chunks, content[start:i])
				start, words = i, 0
			}
			words++
		}
		inWord = !space
	}
	return append(chunks, content[start:])
}

// Stream emits chunks on the returned channel, one per interval, and closes
// it after the last chunk or when ctx is done.
func Stream(ctx context.Context, chunks []string, interval time.Duration) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for i, chunk := range chunks {
			if i > 0 && interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(interval):
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
		}
	}()
	return out
}
