package services

import (
	"fmt"
	"strings"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
)

// genericPlaceType is used for categories with no provider mapping
const genericPlaceType = "point_of_interest"

// llmBlockDelimiter separates POI blocks in the model's answer
const llmBlockDelimiter = "---"

var placeTypeByCategory = map[string]string{
	"restaurant":         "restaurant",
	"food":               "restaurant",
	"dining":             "restaurant",
	"cafe":               "cafe",
	"coffee":             "cafe",
	"lodging":            "lodging",
	"hotel":              "lodging",
	"attraction":         "tourist_attraction",
	"tourist_attraction": "tourist_attraction",
	"gas":                "gas_station",
	"gas_station":        "gas_station",
	"fuel":               "gas_station",
	"ev_charging":        "electric_vehicle_charging_station",
	"charging":           "electric_vehicle_charging_station",
	"parking":            "parking",
	"park":               "park",
	"museum":             "museum",
	"shopping":           "shopping_mall",
	"rest_stop":          "rest_stop",
}

// MapCategory translates a generic category into the places provider's type
// vocabulary. Unknown categories map to "point_of_interest".
func MapCategory(category string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(category)), " ", "_")
	if t, ok := placeTypeByCategory[key]; ok {
		return t
	}
	return genericPlaceType
}

// BuildDiscoveryPrompt builds the language model instructions for finding
// count POIs of category around location. The answer format is what
// LLMPOIParser expects.
func BuildDiscoveryPrompt(location entities.Coordinates, category string, count int) string {
	if count < 1 {
		count = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a travel assistant for a driver. Suggest %d %s places near latitude %.4f, longitude %.4f.\n",
		count, humanCategory(category), location.Latitude, location.Longitude)
	b.WriteString("Only suggest real places that are reachable by car. Keep each description to one sentence.\n")
	b.WriteString("Answer with one block per place, exactly in this format, and separate blocks with a line containing only ---\n\n")
	b.WriteString("NAME: <place name>\n")
	b.WriteString("DESCRIPTION: <one sentence>\n")
	b.WriteString("RATING: <number from 0.0 to 5.0>\n")
	b.WriteString("DISTANCE: <distance from the coordinates in km>\n")
	b.WriteString("REASON: <why a driver would stop here>\n")
	b.WriteString(llmBlockDelimiter + "\n")
	return b.String()
}

// BuildPlacesQuery builds the nearby-search query for the places provider,
// with the safety clamps applied.
func BuildPlacesQuery(location entities.Coordinates, category string, radiusMeters, maxResults int) providers.PlacesQuery {
	return providers.ClampPlacesQuery(providers.PlacesQuery{
		Center:       location,
		Category:     category,
		ProviderType: MapCategory(category),
		RadiusMeters: radiusMeters,
		MaxResults:   maxResults,
	})
}

func humanCategory(category string) string {
	c := strings.TrimSpace(strings.ReplaceAll(category, "_", " "))
	if c == "" {
		return "interesting"
	}
	return c
}
