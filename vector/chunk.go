// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"strings"
	"unicode"
)

// Chunk splits text into windows of at most size runes where consecutive windows share
// overlap runes. A window end is pulled back to the last whitespace in its second half so
// words are not cut. Blank chunks are dropped.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			for i := end; i > start+size/2; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end == len(runes) {
			break
		}
		start = max(end-overlap, start+1)
	}
	return chunks
}
