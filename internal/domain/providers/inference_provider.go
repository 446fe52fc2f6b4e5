package providers

import (
	"context"
	"errors"
)

// ErrModelUnavailable is returned when the language model is not loaded or
// cannot be reached.
var ErrModelUnavailable = errors.New("language model unavailable")

// InferenceProvider generates text from a prompt. Implementations are expected
// to answer within a few hundred milliseconds; callers bound each call with a
// context deadline.
type InferenceProvider interface {
	// Predict returns the model's completion for prompt, limited to maxTokens
	// output tokens.
	Predict(ctx context.Context, prompt string, maxTokens int) (string, error)
}
