package places

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	"github.com/zatekoja/poidiscovery/pkg/geo"
)

// MockPlacesProvider returns synthetic POIs around the search center. Results
// depend only on the query, so repeated searches agree.
type MockPlacesProvider struct{}

// NewMockPlacesProvider creates a new mock places provider
func NewMockPlacesProvider() *MockPlacesProvider {
	return &MockPlacesProvider{}
}

var mockPlaceNames = []string{
	"Summit View", "Riverside", "Old Town", "Pine Hollow", "Lakeshore",
	"Crossroads", "Harbor Point", "Cedar Ridge", "Mill Creek", "Granite Pass",
}

// SearchPOIs returns up to query.MaxResults places inside the search radius
func (m *MockPlacesProvider) SearchPOIs(ctx context.Context, query providers.PlacesQuery) ([]*entities.POI, error) {
	query = providers.ClampPlacesQuery(query)

	h := fnv.New64a()
	fmt.Fprintf(h, "%.3f|%.3f|%s", query.Center.Latitude, query.Center.Longitude, query.ProviderType)
	seed := h.Sum64()

	count := min(query.MaxResults, len(mockPlaceNames))
	radiusKm := float64(query.RadiusMeters) / 1000
	pois := make([]*entities.POI, 0, count)
	for i := 0; i < count; i++ {
		n := seed>>(i%8*8) + uint64(i)*2654435761
		bearing := float64(n%360000) / 1000
		distance := geo.Round(radiusKm*float64(n%1000+1)/1001, 2)
		rating := geo.Round(3.0+float64(n%21)/10, 1)

		lat, lng := geo.Destination(query.Center.Latitude, query.Center.Longitude, distance, bearing)
		name := fmt.Sprintf("%s %s", mockPlaceNames[(int(seed%uint64(len(mockPlaceNames)))+i)%len(mockPlaceNames)], humanType(query.ProviderType))
		pois = append(pois, entities.NewPOI(fmt.Sprintf("mock-%x-%d", seed, i), entities.POI{
			Name:       name,
			Location:   entities.Coordinates{Latitude: lat, Longitude: lng},
			Category:   query.Category,
			Rating:     rating,
			DistanceKm: distance,
			Source:     entities.POISourcePlaces,
		}))
	}
	return pois, nil
}

func humanType(providerType string) string {
	switch providerType {
	case "restaurant":
		return "Diner"
	case "cafe":
		return "Coffee"
	case "lodging":
		return "Inn"
	case "gas_station":
		return "Fuel"
	case "tourist_attraction":
		return "Overlook"
	case "electric_vehicle_charging_station":
		return "Chargers"
	case "parking":
		return "Parking"
	}
	return "Stop"
}
