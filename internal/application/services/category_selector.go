package services

import (
	"context"
	"strings"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
)

// EssentialCategories is the prioritized list consulted when a request names
// no category.
var EssentialCategories = []string{"restaurant", "gas_station", "attraction", "lodging", "cafe"}

// CategorySelector picks a category for requests that do not specify one.
type CategorySelector interface {
	SelectCategory(ctx context.Context, location entities.Coordinates) string
}

// PriorityCategorySelector always answers with the first category of its list.
type PriorityCategorySelector struct {
	categories []string
}

// NewPriorityCategorySelector creates a selector over categories, or over
// EssentialCategories when none are given.
func NewPriorityCategorySelector(categories ...string) *PriorityCategorySelector {
	cleaned := make([]string, 0, len(categories))
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		cleaned = EssentialCategories
	}
	return &PriorityCategorySelector{categories: cleaned}
}

func (s *PriorityCategorySelector) SelectCategory(_ context.Context, _ entities.Coordinates) string {
	return s.categories[0]
}

// Categories returns the selector's list in priority order.
func (s *PriorityCategorySelector) Categories() []string {
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}
