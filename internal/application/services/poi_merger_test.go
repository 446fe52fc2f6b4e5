package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/poidiscovery/internal/domain/entities"
)

func poi(name string, rating, distance float64, source entities.POISource) *entities.POI {
	return entities.NewPOI("", entities.POI{Name: name, Rating: rating, DistanceKm: distance, Source: source})
}

func names(pois []*entities.POI) []string {
	out := make([]string, len(pois))
	for i, p := range pois {
		out[i] = p.Name
	}
	return out
}

func TestMergePOIs_SortsByRatingWhenNoDuplicates(t *testing.T) {
	llm := []*entities.POI{poi("A", 4.5, 1, entities.POISourceLLM), poi("B", 3.0, 1, entities.POISourceLLM)}
	api := []*entities.POI{poi("C", 5.0, 1, entities.POISourcePlaces)}

	merged := MergePOIs(llm, api, 10)

	assert.Equal(t, []string{"C", "A", "B"}, names(merged))
}

func TestMergePOIs_LLMWinsOnDuplicateName(t *testing.T) {
	llm := []*entities.POI{poi("A", 4.5, 1, entities.POISourceLLM), poi("B", 3.0, 1, entities.POISourceLLM)}
	api := []*entities.POI{poi("  a ", 5.0, 1, entities.POISourcePlaces)}

	merged := MergePOIs(llm, api, 10)

	require.Len(t, merged, 2)
	assert.Equal(t, []string{"A", "B"}, names(merged))
	assert.Equal(t, entities.POISourceLLM, merged[0].Source)
	assert.Equal(t, 4.5, merged[0].Rating)
}

func TestMergePOIs_DistanceBreaksRatingTies(t *testing.T) {
	llm := []*entities.POI{poi("Far", 4.0, 9, entities.POISourceLLM)}
	api := []*entities.POI{poi("Near", 4.0, 0.5, entities.POISourcePlaces), poi("Mid", 4.0, 3, entities.POISourcePlaces)}

	merged := MergePOIs(llm, api, 10)

	assert.Equal(t, []string{"Near", "Mid", "Far"}, names(merged))
}

func TestMergePOIs_TruncatesToMaxResults(t *testing.T) {
	llm := []*entities.POI{poi("A", 1, 1, entities.POISourceLLM), poi("B", 2, 1, entities.POISourceLLM)}
	api := []*entities.POI{poi("C", 3, 1, entities.POISourcePlaces), poi("D", 4, 1, entities.POISourcePlaces)}

	merged := MergePOIs(llm, api, 2)

	assert.Equal(t, []string{"D", "C"}, names(merged))
	assert.Empty(t, MergePOIs(llm, api, 0))
}

func TestMergePOIs_NoDuplicateNormalizedNames(t *testing.T) {
	llm := []*entities.POI{
		poi("Crater Rock", 4, 1, entities.POISourceLLM),
		poi("crater rock", 5, 2, entities.POISourceLLM),
		poi("Lost Lake", 3, 2, entities.POISourceLLM),
	}
	api := []*entities.POI{
		poi("CRATER  ROCK", 5, 1, entities.POISourcePlaces),
		poi("Lost lake ", 4, 1, entities.POISourcePlaces),
		poi("Mirror Lake", 4.2, 4, entities.POISourcePlaces),
		nil,
	}

	merged := MergePOIs(llm, api, 10)

	seen := map[string]bool{}
	for _, p := range merged {
		key := p.NormalizedName()
		assert.False(t, seen[key], "duplicate %q", key)
		seen[key] = true
	}
	assert.Len(t, merged, 3)
}
