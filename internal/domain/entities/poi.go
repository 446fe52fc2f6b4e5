package entities

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zatekoja/poidiscovery/pkg/geo"
)

// RevenueRatingThreshold is the rating at or above which a POI is flagged as
// a potential revenue opportunity.
const RevenueRatingThreshold = 4.0

// POISource identifies which discovery source produced a POI
type POISource string

const (
	POISourceLLM    POISource = "llm"
	POISourcePlaces POISource = "places"
)

// poiNamespace scopes name-based POI ids so they never collide with other
// UUIDv5 users.
var poiNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("poidiscovery/poi"))

// Coordinates represents geographical coordinates (WGS-84 degrees)
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the coordinates as "lat,lng".
func (c Coordinates) String() string {
	return fmt.Sprintf("%f,%f", c.Latitude, c.Longitude)
}

// POI is a discovered point of interest. POIs are values: build a new one
// instead of mutating an existing one.
type POI struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Location      Coordinates `json:"location"`
	Category      string      `json:"category"`
	Rating        float64     `json:"rating"`
	DistanceKm    float64     `json:"distance_km"`
	ReviewSummary string      `json:"review_summary,omitempty"`
	ImageURL      string      `json:"image_url,omitempty"`
	Source        POISource   `json:"source"`

	// CouldEarnRevenue is Rating >= RevenueRatingThreshold.
	CouldEarnRevenue bool `json:"could_earn_revenue"`

	// LocationApproximate is set for POIs whose coordinates were synthesized
	// rather than geocoded.
	LocationApproximate bool `json:"location_approximate,omitempty"`
}

// NewPOI finishes a POI built by a source adapter: the rating is clamped to
// [0, 5], a negative distance becomes 0, the id is derived via NewPOIID and
// the revenue flag is computed.
func NewPOI(providerID string, p POI) *POI {
	p.Name = strings.TrimSpace(p.Name)
	p.Rating = ClampRating(p.Rating)
	if p.DistanceKm < 0 {
		p.DistanceKm = 0
	}
	p.ID = NewPOIID(providerID, p.Name, p.Location)
	p.CouldEarnRevenue = p.Rating >= RevenueRatingThreshold
	return &p
}

// NormalizedName is the key used to detect duplicate POIs across sources.
func (p *POI) NormalizedName() string {
	return NormalizeName(p.Name)
}

// NormalizeName lowercases, trims and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NewPOIID returns the provider id when present, otherwise a stable
// name-based UUID derived from the normalized name and the location rounded
// to three decimal places.
func NewPOIID(providerID, name string, location Coordinates) string {
	if id := strings.TrimSpace(providerID); id != "" {
		return id
	}
	seed := fmt.Sprintf("%s|%.3f|%.3f",
		NormalizeName(name),
		geo.Round(location.Latitude, 3),
		geo.Round(location.Longitude, 3),
	)
	return uuid.NewSHA1(poiNamespace, []byte(seed)).String()
}

// ClampRating limits a rating to the [0, 5] range.
func ClampRating(rating float64) float64 {
	switch {
	case rating < 0:
		return 0
	case rating > 5:
		return 5
	default:
		return rating
	}
}
