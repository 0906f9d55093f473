package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, Split("", DefaultOptions()))
	assert.Nil(t, Split("   \n\n  \t ", DefaultOptions()))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks := Split("  a note that fits in one chunk \n", DefaultOptions())
	assert.Equal(t, []string{"a note that fits in one chunk"}, chunks)
}

func TestSplitShortParagraphsKeptWhole(t *testing.T) {
	text := "First paragraph about cats.\n\nSecond paragraph about dogs.\n\nThird one."
	chunks := Split(text, DefaultOptions())

	assert.Equal(t, []string{
		"First paragraph about cats.",
		"Second paragraph about dogs.",
		"Third one.",
	}, chunks)
}

func TestSplitSkipsBlankParagraphs(t *testing.T) {
	text := "alpha\n\n\n\n   \n\nbeta"
	chunks := Split(text, DefaultOptions())
	assert.Equal(t, []string{"alpha", "beta"}, chunks)
}

func TestSplitMultibyteCountedAsRunes(t *testing.T) {
	// 60 runes but 120 bytes: within the 100-character limit, so the
	// paragraph must stay whole.
	para := strings.Repeat("é", 60)
	chunks := Split(para, Options{MaxChunkChars: 100, OverlapChars: 20})
	assert.Equal(t, []string{para}, chunks)
}

func TestSplitOversizedParagraphWindowed(t *testing.T) {
	// 300 words of 4 chars + space each, well over the 100-char limit.
	words := make([]string, 300)
	for i := range words {
		words[i] = "word"
	}
	para := strings.Join(words, " ")

	opts := Options{MaxChunkChars: 100, OverlapChars: 25}
	chunks := Split(para, opts)

	// window = 100/5 = 20 words, step = 20 - 25/5 = 15 words
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, 20, len(strings.Fields(chunks[0])))

	// Every chunk fits the character budget.
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), opts.MaxChunkChars)
	}

	// Consecutive chunks overlap by 5 words.
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	assert.Equal(t, first[15:], second[:5])
}

func TestSplitWindowCoversAllWords(t *testing.T) {
	words := []string{"one", "two", "three", "four", "five", "six", "seven"}
	para := strings.Join(words, " ")

	chunks := Split(para, Options{MaxChunkChars: 15, OverlapChars: 5})
	joined := strings.Join(chunks, " ")
	for _, w := range words {
		assert.Contains(t, joined, w)
	}
}

func TestSplitMixedParagraphSizes(t *testing.T) {
	long := strings.Repeat("data ", 200)
	text := "short intro\n\n" + long + "\n\nshort outro"

	chunks := Split(text, Options{MaxChunkChars: 100, OverlapChars: 20})
	assert.Equal(t, "short intro", chunks[0])
	assert.Equal(t, "short outro", chunks[len(chunks)-1])
	assert.Greater(t, len(chunks), 3)
}
