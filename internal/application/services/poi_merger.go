package services

import (
	"sort"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
)

// MergePOIs combines language model and places results into one ranked list.
//
// Names are deduplicated after normalization. LLM entries are inserted first,
// so on a name clash the LLM's pick wins over the places entry. The survivors
// are ordered by rating descending, then distance ascending, and truncated to
// maxResults.
func MergePOIs(llmPOIs, apiPOIs []*entities.POI, maxResults int) []*entities.POI {
	if maxResults <= 0 {
		return []*entities.POI{}
	}

	seen := make(map[string]struct{}, len(llmPOIs)+len(apiPOIs))
	merged := make([]*entities.POI, 0, len(llmPOIs)+len(apiPOIs))

	add := func(list []*entities.POI) {
		for _, poi := range list {
			if poi == nil {
				continue
			}
			key := poi.NormalizedName()
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, poi)
		}
	}
	add(llmPOIs)
	add(apiPOIs)

	RankPOIs(merged)

	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

// RankPOIs sorts in place by rating descending, then distance ascending.
// Equal keys keep their input order.
func RankPOIs(pois []*entities.POI) {
	sort.SliceStable(pois, func(i, j int) bool {
		if pois[i].Rating != pois[j].Rating {
			return pois[i].Rating > pois[j].Rating
		}
		return pois[i].DistanceKm < pois[j].DistanceKm
	})
}
