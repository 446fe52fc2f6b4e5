package inference

import (
	"context"
	"errors"

	"github.com/zatekoja/poidiscovery/internal/infrastructure/clients/openai"
)

type completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// OpenAIProvider serves predictions from an OpenAI-compatible endpoint,
// hosted or local.
type OpenAIProvider struct {
	client completer
}

// NewOpenAIProvider creates a provider backed by client
func NewOpenAIProvider(client *openai.Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

// Predict implements providers.InferenceProvider
func (p *OpenAIProvider) Predict(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := contextDone(ctx); err != nil {
		return "", err
	}

	text, err := p.client.Complete(ctx, systemPrompt, prompt, maxTokens)
	if err == nil {
		return text, nil
	}

	var statusErr *openai.StatusError
	if (errors.As(err, &statusErr) && unavailableStatus(statusErr.StatusCode)) || unavailable(err) {
		return "", markUnavailable(err)
	}
	return "", err
}
