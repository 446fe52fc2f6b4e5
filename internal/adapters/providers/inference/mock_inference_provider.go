package inference

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	countPattern     = regexp.MustCompile(`Suggest (\d+) (.+?) places near`)
	mockNamePrefixes = []string{"Hidden", "Scenic", "Local", "Historic", "Family", "Roadside", "Hilltop", "Valley"}
)

// MockInferenceProvider answers discovery prompts with canned POI blocks in
// the expected format. Output depends only on the prompt.
type MockInferenceProvider struct{}

// NewMockInferenceProvider creates a new mock inference provider
func NewMockInferenceProvider() *MockInferenceProvider {
	return &MockInferenceProvider{}
}

// Predict implements providers.InferenceProvider
func (m *MockInferenceProvider) Predict(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := contextDone(ctx); err != nil {
		return "", err
	}

	count, category := 3, "interesting"
	if match := countPattern.FindStringSubmatch(prompt); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil && n > 0 {
			count = n
		}
		category = match[2]
	}
	count = min(count, len(mockNamePrefixes))

	var b strings.Builder
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "NAME: %s %s\n", mockNamePrefixes[i], titleCase(category))
		fmt.Fprintf(&b, "DESCRIPTION: A well-reviewed %s a short drive away.\n", category)
		fmt.Fprintf(&b, "RATING: %.1f\n", 4.8-float64(i)*0.3)
		fmt.Fprintf(&b, "DISTANCE: %.1f km\n", 0.8+float64(i)*1.1)
		fmt.Fprintf(&b, "REASON: Good place for a break.\n---\n")
	}
	return b.String(), nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
