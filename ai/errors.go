package ai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmbedding indicates the embedding provider could not produce a vector,
	// either because the input was unusable or the provider is unavailable.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmptyInput indicates blank text was passed to an embedder.
	ErrEmptyInput = errors.New("input text is empty")
)

// CheckInput returns an ErrEmbedding error if text is blank.
func CheckInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %w", ErrEmbedding, ErrEmptyInput)
	}
	return nil
}
