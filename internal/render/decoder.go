// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "unicode/utf8"

// SuffixDecoder buffers upstream chunks so that text handed to the
// tokenizer never ends inside a multi-byte sequence. Upstream providers
// may split a code point across two chunks.
type SuffixDecoder struct {
	pending []byte
}

// Write adds a chunk and returns the longest prefix of buffered bytes that
// does not end in an incomplete UTF-8 sequence.
func (d *SuffixDecoder) Write(chunk string) string {
	d.pending = append(d.pending, chunk...)

	cut := len(d.pending)
	// An incomplete sequence can only occupy the last utf8.UTFMax-1 bytes.
	for i := len(d.pending) - 1; i >= 0 && i >= len(d.pending)-(utf8.UTFMax-1); i-- {
		b := d.pending[i]
		if b < utf8.RuneSelf {
			break
		}
		if utf8.RuneStart(b) {
			if !utf8.FullRune(d.pending[i:]) {
				cut = i
			}
			break
		}
	}

	out := string(d.pending[:cut])
	d.pending = append(d.pending[:0], d.pending[cut:]...)
	return out
}

// Flush returns whatever is still buffered, complete or not.
func (d *SuffixDecoder) Flush() string {
	out := string(d.pending)
	d.pending = d.pending[:0]
	return out
}

// Pending returns the number of buffered bytes.
func (d *SuffixDecoder) Pending() int {
	return len(d.pending)
}
