package components

import (
	"bytes"
	"fmt"

	"github.com/clipperhouse/uax29/sentences"
	"github.com/clipperhouse/uax29/words"
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter defines the interface for counting tokens in a string.
// This abstraction allows for different tokenization strategies (e.g., words, subwords).
type TokenCounter interface {
	// Count returns the number of tokens in the given text according to the
	// implementation's tokenization strategy.
	Count(p []byte) int
}

type WordsTokenCounter struct{}

func (c WordsTokenCounter) Count(p []byte) int {
	return len(words.SegmentAll(p))
}

// TikTokenCounter provides accurate token counting using the tiktoken library,
// which implements the tokenization schemes used by OpenAI models.
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter creates a new TikTokenCounter using the specified encoding.
// Common encodings include:
// - "cl100k_base" (GPT-4, ChatGPT)
// - "p50k_base" (GPT-3)
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

func (c *TikTokenCounter) Count(p []byte) int {
	return len(c.tke.Encode(string(p), nil, nil))
}

// TruncateSentences trims text to fit within a token budget, cutting at
// sentence boundaries. Returns the text unchanged when it already fits.
func TruncateSentences(counter TokenCounter, text string, budget int) string {
	if budget <= 0 || counter.Count([]byte(text)) <= budget {
		return text
	}
	var (
		buf  bytes.Buffer
		used int
	)
	for _, segment := range sentences.SegmentAll([]byte(text)) {
		n := counter.Count(segment)
		if used+n > budget {
			break
		}
		used += n
		buf.Write(segment)
	}
	return buf.String()
}
