package services

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/pkg/geo"
)

var mtHood = entities.Coordinates{Latitude: 45.4979, Longitude: -121.8209}

func newSeededParser() *LLMPOIParser {
	return NewLLMPOIParser(rand.New(rand.NewPCG(7, 11)))
}

const wellFormedResponse = `NAME: Timberline Lodge
DESCRIPTION: Historic mountain lodge with views of the summit.
RATING: 4.7
DISTANCE: 9.5 km
REASON: Warm food and restrooms.
---
NAME: Trillium Lake
DESCRIPTION: Alpine lake with a flat loop trail.
RATING: 4.5
DISTANCE: 3 mi
REASON: Short leg stretch.
---`

func TestParse_WellFormedResponse(t *testing.T) {
	pois := newSeededParser().Parse(context.Background(), wellFormedResponse, mtHood, "attraction")

	require.Len(t, pois, 2)

	assert.Equal(t, "Timberline Lodge", pois[0].Name)
	assert.Equal(t, 4.7, pois[0].Rating)
	assert.InDelta(t, 9.5, pois[0].DistanceKm, 1e-9)
	assert.Equal(t, "Historic mountain lodge with views of the summit. Warm food and restrooms.", pois[0].ReviewSummary)
	assert.Equal(t, "attraction", pois[0].Category)
	assert.Equal(t, entities.POISourceLLM, pois[0].Source)
	assert.True(t, pois[0].LocationApproximate)
	assert.True(t, pois[0].CouldEarnRevenue)
	assert.NotEmpty(t, pois[0].ID)

	assert.Equal(t, "Trillium Lake", pois[1].Name)
	assert.InDelta(t, 3*geo.KmPerMile, pois[1].DistanceKm, 1e-9)
}

func TestParse_BlockWithoutNameIsDroppedSiblingsKept(t *testing.T) {
	text := `DESCRIPTION: orphan block with no name
RATING: 5
---
NAME: Mirror Lake
RATING: 4.1
DISTANCE: 2 km
---
NAME:
DESCRIPTION: empty name
---
NAME: Ramona Falls
RATING: 4.8
DISTANCE: 6 km`

	pois := newSeededParser().Parse(context.Background(), text, mtHood, "attraction")

	require.Len(t, pois, 2)
	assert.Equal(t, "Mirror Lake", pois[0].Name)
	assert.Equal(t, 4.1, pois[0].Rating)
	assert.Equal(t, "Ramona Falls", pois[1].Name)
	assert.Equal(t, 4.8, pois[1].Rating)
}

func TestParse_MissingOrBadNumbersUseDefaults(t *testing.T) {
	text := `NAME: Government Camp
RATING: unknown
---
NAME: Zigzag Store
DISTANCE: a short drive`

	pois := newSeededParser().Parse(context.Background(), text, mtHood, "restaurant")

	require.Len(t, pois, 2)
	for _, p := range pois {
		assert.Equal(t, DefaultLLMRating, p.Rating)
		assert.Equal(t, DefaultLLMDistanceKm, p.DistanceKm)
	}
}

func TestParse_ToleratesMarkdownAndMissingDelimiters(t *testing.T) {
	text := `Here are some ideas:
1. **Name:** Huckleberry Inn
- **Rating:** 4.2/5
- **Distance:** 800 m
2. **Name:** Mt. Hood Brewing
- **Rating:** 4.4
- **Distance:** 1.5km`

	pois := newSeededParser().Parse(context.Background(), text, mtHood, "restaurant")

	require.Len(t, pois, 2)
	assert.Equal(t, "Huckleberry Inn", pois[0].Name)
	assert.Equal(t, 4.2, pois[0].Rating)
	assert.InDelta(t, 0.8, pois[0].DistanceKm, 1e-9)
	assert.Equal(t, "Mt. Hood Brewing", pois[1].Name)
	assert.InDelta(t, 1.5, pois[1].DistanceKm, 1e-9)
}

func TestParseDistanceKm(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"9.5 km", 9.5, true},
		{"about 2 kilometres away", 2, true},
		{"3 mi", 3 * geo.KmPerMile, true},
		{"2 miles", 2 * geo.KmPerMile, true},
		{"800 m", 0.8, true},
		{"750 meters", 0.75, true},
		{"1,200 m", 1.2, true},
		{"1,5 km", 1.5, true},
		{"4", 4, true},
		{"10 minutes", 0, false},
		{"5 min drive", 0, false},
		{"5-minute walk", 0, false},
		{"2 hours", 0, false},
		{"nearby", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDistanceKm(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParse_TravelTimeDistanceUsesDefault(t *testing.T) {
	pois := newSeededParser().Parse(context.Background(), "NAME: Cloud Cap Inn\nDISTANCE: 10 minutes", mtHood, "attraction")

	require.Len(t, pois, 1)
	assert.Equal(t, DefaultLLMDistanceKm, pois[0].DistanceKm)
}

func TestParse_SynthesizedLocationIsAtStatedDistance(t *testing.T) {
	pois := newSeededParser().Parse(context.Background(), wellFormedResponse, mtHood, "attraction")

	for _, p := range pois {
		d := geo.DistanceKm(mtHood.Latitude, mtHood.Longitude, p.Location.Latitude, p.Location.Longitude)
		assert.InDelta(t, p.DistanceKm, d, 1e-6)
	}
}

func TestParse_SeededRandomnessIsDeterministic(t *testing.T) {
	a := newSeededParser().Parse(context.Background(), wellFormedResponse, mtHood, "attraction")
	b := newSeededParser().Parse(context.Background(), wellFormedResponse, mtHood, "attraction")

	require.Len(t, a, 2)
	require.Len(t, b, 2)
	for i := range a {
		assert.Equal(t, a[i].Location, b[i].Location)
		assert.Equal(t, a[i].ID, b[i].ID)
	}
}

func TestParse_EmptyAndGarbageInput(t *testing.T) {
	p := newSeededParser()
	assert.Empty(t, p.Parse(context.Background(), "", mtHood, "cafe"))
	assert.Empty(t, p.Parse(context.Background(), "I'm sorry, I can't help with that.", mtHood, "cafe"))
}
