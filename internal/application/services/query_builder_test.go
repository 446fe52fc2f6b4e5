package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
)

func TestMapCategory(t *testing.T) {
	cases := map[string]string{
		"restaurant":  "restaurant",
		"Attraction":  "tourist_attraction",
		" hotel ":     "lodging",
		"EV Charging": "electric_vehicle_charging_station",
		"volcano":     "point_of_interest",
		"":            "point_of_interest",
	}
	for in, want := range cases {
		assert.Equal(t, want, MapCategory(in), "category %q", in)
	}
}

func TestBuildPlacesQuery_ClampsToSafetyLimits(t *testing.T) {
	loc := entities.Coordinates{Latitude: 45.4979, Longitude: -121.8209}

	q := BuildPlacesQuery(loc, "attraction", 120000, 60)

	assert.Equal(t, loc, q.Center)
	assert.Equal(t, "attraction", q.Category)
	assert.Equal(t, "tourist_attraction", q.ProviderType)
	assert.Equal(t, providers.MaxSearchRadiusMeters, q.RadiusMeters)
	assert.Equal(t, providers.MaxResultsPerCall, q.MaxResults)
}

func TestBuildPlacesQuery_KeepsValuesWithinLimits(t *testing.T) {
	q := BuildPlacesQuery(entities.Coordinates{}, "cafe", 5000, 5)

	assert.Equal(t, 5000, q.RadiusMeters)
	assert.Equal(t, 5, q.MaxResults)
}

func TestBuildDiscoveryPrompt_DescribesParsableFormat(t *testing.T) {
	prompt := BuildDiscoveryPrompt(entities.Coordinates{Latitude: 45.4979, Longitude: -121.8209}, "gas_station", 5)

	assert.Contains(t, prompt, "Suggest 5 gas station places")
	assert.Contains(t, prompt, "latitude 45.4979, longitude -121.8209")
	for _, field := range []string{"NAME:", "DESCRIPTION:", "RATING:", "DISTANCE:", "REASON:", "---"} {
		assert.Contains(t, prompt, field)
	}
}
