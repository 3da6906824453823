package internal

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer treats every whitespace-separated word as one token, which
// keeps chunk boundaries easy to reason about in tests.
type wordTokenizer struct {
	words []string
}

func (w *wordTokenizer) Encode(text string, _ []string, _ []string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i, f := range fields {
		tokens[i] = len(w.words)
		w.words = append(w.words, f)
	}
	return tokens
}

func (w *wordTokenizer) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = w.words[tok]
	}
	return strings.Join(parts, " ")
}

func numberedText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word" + strconv.Itoa(i)
	}
	return strings.Join(words, " ")
}

func TestSplit(t *testing.T) {
	t.Run("Should keep short text as a single chunk", func(t *testing.T) {
		s := newSplitterWith(&wordTokenizer{}, 10, 2)
		chunks := s.Split("one two three")
		require.Len(t, chunks, 1)
		assert.Equal(t, "one two three", chunks[0])
	})

	t.Run("Should bound every chunk by the chunk size", func(t *testing.T) {
		s := newSplitterWith(&wordTokenizer{}, 10, 2)
		chunks := s.Split(numberedText(45))
		require.NotEmpty(t, chunks)
		for i, c := range chunks {
			assert.LessOrEqual(t, len(strings.Fields(c)), 10, "chunk %d too large", i)
		}
	})

	t.Run("Should overlap consecutive chunks", func(t *testing.T) {
		s := newSplitterWith(&wordTokenizer{}, 10, 2)
		chunks := s.Split(numberedText(30))
		require.GreaterOrEqual(t, len(chunks), 2)

		for i := 1; i < len(chunks); i++ {
			prev := strings.Fields(chunks[i-1])
			cur := strings.Fields(chunks[i])
			assert.Equal(t, prev[len(prev)-2:], cur[:2],
				"chunk %d must start with the last two tokens of chunk %d", i, i-1)
		}
	})

	t.Run("Should cover every token exactly", func(t *testing.T) {
		s := newSplitterWith(&wordTokenizer{}, 10, 0)
		text := numberedText(25)
		chunks := s.Split(text)

		var joined []string
		for _, c := range chunks {
			joined = append(joined, strings.Fields(c)...)
		}
		assert.Equal(t, strings.Fields(text), joined)
	})

	t.Run("Should return nothing for empty text", func(t *testing.T) {
		s := newSplitterWith(&wordTokenizer{}, 10, 2)
		assert.Empty(t, s.Split(""))
	})

	t.Run("Should fall back to defaults on bad parameters", func(t *testing.T) {
		s := newSplitterWith(&wordTokenizer{}, 0, -1)
		assert.Equal(t, 400, s.chunkSize)
		assert.Equal(t, 0, s.overlap)

		s = newSplitterWith(&wordTokenizer{}, 10, 10)
		assert.Equal(t, 0, s.overlap, "overlap must stay below the chunk size")
	})
}
