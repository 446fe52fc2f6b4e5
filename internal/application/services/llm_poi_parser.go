package services

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
	"github.com/zatekoja/poidiscovery/pkg/geo"
)

// Placeholders used when the model omits or garbles a numeric field.
const (
	DefaultLLMRating     = 4.0
	DefaultLLMDistanceKm = 2.0
)

var (
	numberPattern    = regexp.MustCompile(`[-+]?(?:\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:[.,]\d+)?)`)
	groupedPattern   = regexp.MustCompile(`^[-+]?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	unitPattern      = regexp.MustCompile(`^[\s-]*([A-Za-z]*)`)
	delimiterPattern = regexp.MustCompile(`^\s*-{3,}\s*$`)
	bulletPrefix     = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)
)

// LLMPOIParser extracts POIs from the delimited text produced for
// BuildDiscoveryPrompt.
//
// The model gives no coordinates, so each POI is placed at its stated distance
// along a random bearing from the search center. The resulting location is an
// approximation, flagged with POI.LocationApproximate, and must not be used for
// navigation. The bearing comes from the injected rng so tests can pin it.
type LLMPOIParser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLLMPOIParser creates a parser drawing bearings from rng. A nil rng uses
// a randomly seeded generator.
func NewLLMPOIParser(rng *rand.Rand) *LLMPOIParser {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &LLMPOIParser{rng: rng}
}

type llmBlock struct {
	name        string
	description string
	reason      string
	rating      string
	distance    string
}

// Parse returns the POIs found in text. It never fails: blocks without a NAME
// are dropped and bad numeric fields fall back to DefaultLLMRating and
// DefaultLLMDistanceKm.
func (p *LLMPOIParser) Parse(ctx context.Context, text string, center entities.Coordinates, category string) []*entities.POI {
	blocks := splitLLMBlocks(text)

	pois := make([]*entities.POI, 0, len(blocks))
	dropped := 0
	for _, blk := range blocks {
		if blk.name == "" {
			dropped++
			continue
		}

		rating, ok := parseNumber(blk.rating)
		if !ok {
			rating = DefaultLLMRating
		}
		distance, ok := parseDistanceKm(blk.distance)
		if !ok {
			distance = DefaultLLMDistanceKm
		}

		lat, lng := geo.Destination(center.Latitude, center.Longitude, distance, p.bearing())

		pois = append(pois, entities.NewPOI("", entities.POI{
			Name:                blk.name,
			Location:            entities.Coordinates{Latitude: lat, Longitude: lng},
			Category:            category,
			Rating:              rating,
			DistanceKm:          distance,
			ReviewSummary:       joinNonEmpty(blk.description, blk.reason),
			Source:              entities.POISourceLLM,
			LocationApproximate: true,
		}))
	}

	if dropped > 0 {
		observability.LoggerFromContext(ctx).Debug().
			Int("dropped_blocks", dropped).
			Int("parsed_pois", len(pois)).
			Msg("discarded llm blocks without a name")
	}

	return pois
}

func (p *LLMPOIParser) bearing() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() * 360
}

// splitLLMBlocks splits on delimiter lines. A second NAME inside one block
// also starts a new block, since models often forget the delimiter.
func splitLLMBlocks(text string) []llmBlock {
	var blocks []llmBlock
	var cur llmBlock
	seen := false

	flush := func() {
		if seen {
			blocks = append(blocks, cur)
		}
		cur = llmBlock{}
		seen = false
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if delimiterPattern.MatchString(raw) {
			flush()
			continue
		}
		key, value, ok := splitField(raw)
		if !ok {
			if strings.TrimSpace(raw) != "" {
				seen = true
			}
			continue
		}
		if key == "NAME" && cur.name != "" {
			flush()
		}
		seen = true
		switch key {
		case "NAME":
			cur.name = value
		case "DESCRIPTION":
			cur.description = value
		case "REASON":
			cur.reason = value
		case "RATING":
			cur.rating = value
		case "DISTANCE":
			cur.distance = value
		}
	}
	flush()

	return blocks
}

func splitField(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	line = bulletPrefix.ReplaceAllString(line, "")
	line = strings.ReplaceAll(line, "**", "")
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.ToUpper(strings.TrimSpace(line[:idx]))
	switch key {
	case "NAME", "DESCRIPTION", "REASON", "RATING", "DISTANCE":
		return key, strings.TrimSpace(line[idx+1:]), true
	}
	return "", "", false
}

// parseNumber reads the first number in value. "1,200" is thousands-grouped,
// "4,5" is a decimal comma.
func parseNumber(value string) (float64, bool) {
	m := numberPattern.FindString(value)
	if m == "" {
		return 0, false
	}
	if groupedPattern.MatchString(m) {
		m = strings.ReplaceAll(m, ",", "")
	} else {
		m = strings.ReplaceAll(m, ",", ".")
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseDistanceKm accepts km, miles and meters. A bare number is km. Any
// other unit, such as a travel time, does not parse.
func parseDistanceKm(value string) (float64, bool) {
	loc := numberPattern.FindStringIndex(value)
	if loc == nil {
		return 0, false
	}
	d, ok := parseNumber(value[loc[0]:loc[1]])
	if !ok || d < 0 {
		return 0, false
	}
	unit := strings.ToLower(unitPattern.FindStringSubmatch(value[loc[1]:])[1])
	switch unit {
	case "", "km", "kms", "kilometer", "kilometers", "kilometre", "kilometres":
	case "mi", "mile", "miles":
		d *= geo.KmPerMile
	case "m", "meter", "meters", "metre", "metres":
		d /= 1000
	default:
		return 0, false
	}
	return d, true
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
