package entities

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects which sources a discovery call consults and in what order
type Strategy string

const (
	StrategyLLMFirst Strategy = "LLM_FIRST"
	StrategyAPIFirst Strategy = "API_FIRST"
	StrategyHybrid   Strategy = "HYBRID"
	StrategyLLMOnly  Strategy = "LLM_ONLY"
)

// ParseStrategy converts a case-insensitive name into a Strategy
func ParseStrategy(value string) (Strategy, error) {
	s := Strategy(strings.ToUpper(strings.TrimSpace(value)))
	switch s {
	case StrategyLLMFirst, StrategyAPIFirst, StrategyHybrid, StrategyLLMOnly:
		return s, nil
	}
	return "", fmt.Errorf("unknown discovery strategy %q", value)
}

// DiscoveryRequest is the input to a discovery call
type DiscoveryRequest struct {
	Location   Coordinates `json:"location"`
	Category   string      `json:"category,omitempty"`
	Strategy   Strategy    `json:"strategy,omitempty"`
	MaxResults int         `json:"max_results,omitempty"`
}

// DiscoveryResult is the output of a discovery call
type DiscoveryResult struct {
	POIs           []*POI   `json:"pois"`
	StrategyUsed   Strategy `json:"strategy_used"`
	ResponseTimeMs int64    `json:"response_time_ms"`
	FallbackUsed   bool     `json:"fallback_used"`
	Category       string   `json:"category"`
	CacheHit       bool     `json:"cache_hit"`
}

// CachedDiscovery is a discovery result memoized at Timestamp
type CachedDiscovery struct {
	Result    *DiscoveryResult `json:"result"`
	Timestamp time.Time        `json:"timestamp"`
}

// Expired reports whether the entry is older than ttl at now.
func (c *CachedDiscovery) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.Timestamp) > ttl
}

// DiscoveryEvent is an analytics record of one completed discovery call
type DiscoveryEvent struct {
	ID                string    `json:"id" db:"id"`
	Latitude          float64   `json:"latitude" db:"latitude"`
	Longitude         float64   `json:"longitude" db:"longitude"`
	Category          string    `json:"category" db:"category"`
	RequestedStrategy Strategy  `json:"requested_strategy" db:"requested_strategy"`
	StrategyUsed      Strategy  `json:"strategy_used" db:"strategy_used"`
	FallbackUsed      bool      `json:"fallback_used" db:"fallback_used"`
	CacheHit          bool      `json:"cache_hit" db:"cache_hit"`
	ResultCount       int       `json:"result_count" db:"result_count"`
	LatencyMs         int64     `json:"latency_ms" db:"latency_ms"`
	ErrorMessage      string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
