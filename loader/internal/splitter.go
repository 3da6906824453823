package internal

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

type tokenizer interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// Splitter cuts document text into token-bounded chunks with overlap, so
// every chunk fits comfortably into one generation prompt.
type Splitter struct {
	enc       tokenizer
	chunkSize int
	overlap   int
}

func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return newSplitterWith(enc, chunkSize, overlap), nil
}

func newSplitterWith(enc tokenizer, chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 400
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{
		enc:       enc,
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	tokens := s.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []string
	step := s.chunkSize - s.overlap
	for i := 0; i < len(tokens); i += step {
		end := i + s.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		content := strings.TrimSpace(s.enc.Decode(tokens[i:end]))
		if content != "" {
			chunks = append(chunks, content)
		}

		if end == len(tokens) {
			break
		}
	}
	return chunks
}
