// Package chunker splits document text into overlapping chunks sized for
// embedding. Paragraphs are kept whole when they fit; oversized paragraphs
// are re-split on a sliding word window.
package chunker

import (
	"strings"
	"unicode/utf8"
)

type Options struct {
	MaxChunkChars int
	OverlapChars  int
}

func DefaultOptions() Options {
	return Options{MaxChunkChars: 512, OverlapChars: 50}
}

// Split breaks text into chunks of at most MaxChunkChars characters.
// Paragraph boundaries (blank lines) are preferred split points; a paragraph
// longer than the limit is windowed over its words with an overlap of
// roughly OverlapChars characters. Empty or whitespace-only input yields nil.
func Split(text string, opts Options) []string {
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = 512
	}
	if opts.OverlapChars < 0 {
		opts.OverlapChars = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= opts.MaxChunkChars {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, splitWords(para, opts)...)
	}

	// Text with no blank-line separators and no splittable words still
	// produces one chunk.
	if len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

// splitWords windows an oversized paragraph over its words. Word counts are
// derived from the character budgets with an average word length of five.
func splitWords(para string, opts Options) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return nil
	}

	window := opts.MaxChunkChars / 5
	if window < 1 {
		window = 1
	}
	overlap := opts.OverlapChars / 5
	if overlap < 1 {
		overlap = 1
	}
	step := window - overlap
	if step < 1 {
		step = 1
	}

	var out []string
	for start := 0; start < len(words); start += step {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}
