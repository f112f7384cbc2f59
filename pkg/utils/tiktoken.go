// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates token counts. Gemini has no public offline tokenizer, so the
// GPT-4 encoding is used as an approximation when the API does not report usage.
type TokenCounter struct {
	codec tokenizer.Codec
}

//nolint:gochecknoglobals // codec tables are large; load them once per process
var (
	sharedCounter     *TokenCounter
	sharedCounterOnce sync.Once
)

// NewTokenCounter creates a new token counter using the GPT-4 encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// CountTokensSimple counts tokens with a process-wide counter.
func CountTokensSimple(text string) int {
	sharedCounterOnce.Do(func() {
		counter, err := NewTokenCounter()
		if err == nil {
			sharedCounter = counter
		}
	})
	return sharedCounter.CountTokens(text)
}
