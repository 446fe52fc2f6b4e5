package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/providers"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/observability"
	"github.com/zatekoja/poidiscovery/pkg/clock"
	apperrors "github.com/zatekoja/poidiscovery/pkg/errors"
)

const (
	sourceLLM    = "language model"
	sourcePlaces = "places"
)

// DiscoveryOptions tunes a POIDiscoveryService. Zero numeric fields and an
// unknown DefaultStrategy fall back to DefaultDiscoveryOptions.
type DiscoveryOptions struct {
	DefaultStrategy   entities.Strategy
	DefaultMaxResults int
	RadiusMeters      int
	LLMMaxTokens      int
	LLMTimeout        time.Duration
	PlacesTimeout     time.Duration
	SingleFlight      bool
}

// DefaultDiscoveryOptions returns the in-vehicle defaults.
func DefaultDiscoveryOptions() DiscoveryOptions {
	return DiscoveryOptions{
		DefaultStrategy:   entities.StrategyHybrid,
		DefaultMaxResults: 10,
		RadiusMeters:      5000,
		LLMMaxTokens:      1024,
		LLMTimeout:        2 * time.Second,
		PlacesTimeout:     3 * time.Second,
		SingleFlight:      true,
	}
}

func (o DiscoveryOptions) withDefaults() DiscoveryOptions {
	d := DefaultDiscoveryOptions()
	if _, err := entities.ParseStrategy(string(o.DefaultStrategy)); err != nil {
		o.DefaultStrategy = d.DefaultStrategy
	}
	if o.DefaultMaxResults <= 0 {
		o.DefaultMaxResults = d.DefaultMaxResults
	}
	if o.RadiusMeters <= 0 {
		o.RadiusMeters = d.RadiusMeters
	}
	if o.LLMMaxTokens <= 0 {
		o.LLMMaxTokens = d.LLMMaxTokens
	}
	if o.LLMTimeout <= 0 {
		o.LLMTimeout = d.LLMTimeout
	}
	if o.PlacesTimeout <= 0 {
		o.PlacesTimeout = d.PlacesTimeout
	}
	return o
}

// POIDiscoveryService answers "what is around here" by consulting the language
// model, the places provider, or both, according to the request's strategy.
//
// Per call the order is: category selection, cache lookup, strategy dispatch,
// cache write. Only successful results are cached.
type POIDiscoveryService struct {
	llm        providers.InferenceProvider
	places     providers.PlacesProvider
	cache      providers.DiscoveryCache
	parser     *LLMPOIParser
	categories CategorySelector
	clock      clock.Clock
	opts       DiscoveryOptions
	flight     *singleflight.Group
	analytics  *DiscoveryAnalyticsService
	metrics    *observability.Metrics
}

// NewPOIDiscoveryService creates the orchestrator. Either source may be nil;
// strategies needing a missing source fail with SOURCE_UNAVAILABLE. A nil
// cache uses a MemoryDiscoveryCache.
func NewPOIDiscoveryService(
	llm providers.InferenceProvider,
	places providers.PlacesProvider,
	cache providers.DiscoveryCache,
	opts DiscoveryOptions,
) *POIDiscoveryService {
	if cache == nil {
		cache = NewMemoryDiscoveryCache(nil)
	}
	opts = opts.withDefaults()

	s := &POIDiscoveryService{
		llm:        llm,
		places:     places,
		cache:      cache,
		parser:     NewLLMPOIParser(nil),
		categories: NewPriorityCategorySelector(),
		clock:      clock.Real{},
		opts:       opts,
	}
	if opts.SingleFlight {
		s.flight = &singleflight.Group{}
	}
	return s
}

// SetParser replaces the LLM result parser
func (s *POIDiscoveryService) SetParser(parser *LLMPOIParser) {
	s.parser = parser
}

// SetCategorySelector replaces the selector used for requests without a category
func (s *POIDiscoveryService) SetCategorySelector(selector CategorySelector) {
	s.categories = selector
}

// SetClock replaces the time source used for response times
func (s *POIDiscoveryService) SetClock(c clock.Clock) {
	s.clock = c
}

// SetAnalytics enables discovery event tracking
func (s *POIDiscoveryService) SetAnalytics(analytics *DiscoveryAnalyticsService) {
	s.analytics = analytics
}

// SetMetrics enables OpenTelemetry metrics
func (s *POIDiscoveryService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Options returns the effective options
func (s *POIDiscoveryService) Options() DiscoveryOptions {
	return s.opts
}

type discoveryCall struct {
	location   entities.Coordinates
	category   string
	strategy   entities.Strategy
	maxResults int
}

// Discover finds POIs around req.Location.
//
// The returned POIs never exceed the effective max results (req.MaxResults,
// or the configured default when it is not positive). An empty list is a
// success. Source failures on a path with no fallback left are returned as
// SOURCE_UNAVAILABLE errors wrapping the cause.
//
// Cached results are keyed by grid cell and category only, so a result
// computed under one strategy is reused for any other. An LLM_ONLY call may
// receive a cached HYBRID result with places data, reported with the
// strategy that produced it.
func (s *POIDiscoveryService) Discover(ctx context.Context, req entities.DiscoveryRequest) (*entities.DiscoveryResult, error) {
	start := s.clock.Now()

	ctx, span := observability.StartSpan(ctx, "POIDiscoveryService.Discover")
	defer span.End()

	strategy, err := s.resolveStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	if err := validateLocation(req.Location); err != nil {
		return nil, err
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = s.opts.DefaultMaxResults
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = s.categories.SelectCategory(ctx, req.Location)
	}

	call := discoveryCall{
		location:   req.Location,
		category:   category,
		strategy:   strategy,
		maxResults: maxResults,
	}
	key := DiscoveryCacheKey(call.location, call.category)

	observability.SetSpanAttributes(span,
		attribute.String("discovery.strategy", string(strategy)),
		attribute.String("discovery.category", category),
		attribute.Int("discovery.max_results", maxResults),
	)

	if entry, ok := s.cache.Get(ctx, key); ok {
		observability.RecordCacheHit(ctx, s.metrics, "discovery")
		result := s.respond(entry.Result, maxResults, start, true)
		s.finish(ctx, call, result, nil)
		return result, nil
	}
	observability.RecordCacheMiss(ctx, s.metrics, "discovery")

	computed, err := s.compute(ctx, key, call)
	if err != nil {
		observability.RecordError(span, err)
		s.finish(ctx, call, &entities.DiscoveryResult{ResponseTimeMs: s.elapsedMs(start)}, err)
		return nil, err
	}

	result := s.respond(computed, maxResults, start, false)
	observability.SetSpanAttributes(span,
		attribute.String("discovery.strategy_used", string(result.StrategyUsed)),
		attribute.Bool("discovery.fallback_used", result.FallbackUsed),
		attribute.Int("discovery.result_count", len(result.POIs)),
	)
	s.finish(ctx, call, result, nil)
	return result, nil
}

// compute runs the strategy detached from ctx's cancellation: a caller that
// gives up gets ctx.Err() right away, while the work runs to completion under
// the per-source deadlines and still fills the cache for the next caller.
func (s *POIDiscoveryService) compute(ctx context.Context, key string, call discoveryCall) (*entities.DiscoveryResult, error) {
	work := func() (*entities.DiscoveryResult, error) {
		return s.discoverAndStore(context.WithoutCancel(ctx), key, call)
	}

	var ch <-chan singleflight.Result
	if s.flight != nil {
		flightKey := key + "|" + string(call.strategy) + "|" + strconv.Itoa(call.maxResults)
		ch = s.flight.DoChan(flightKey, func() (interface{}, error) {
			return work()
		})
	} else {
		c := make(chan singleflight.Result, 1)
		go func() {
			result, err := work()
			c <- singleflight.Result{Val: result, Err: err}
		}()
		ch = c
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*entities.DiscoveryResult), nil
	}
}

func (s *POIDiscoveryService) discoverAndStore(ctx context.Context, key string, call discoveryCall) (*entities.DiscoveryResult, error) {
	start := s.clock.Now()

	pois, used, fallback, err := s.dispatch(ctx, call)
	if err != nil {
		return nil, err
	}
	if len(pois) > call.maxResults {
		pois = pois[:call.maxResults]
	}

	result := &entities.DiscoveryResult{
		POIs:           pois,
		StrategyUsed:   used,
		ResponseTimeMs: s.elapsedMs(start),
		FallbackUsed:   fallback,
		Category:       call.category,
	}
	s.cache.Put(ctx, key, result)
	return result, nil
}

func (s *POIDiscoveryService) dispatch(ctx context.Context, call discoveryCall) ([]*entities.POI, entities.Strategy, bool, error) {
	switch call.strategy {
	case entities.StrategyLLMFirst:
		pois, err := s.fromLLM(ctx, call, call.maxResults)
		if err == nil && len(pois) > 0 {
			return pois, entities.StrategyLLMFirst, false, nil
		}
		s.logFallback(ctx, call, sourceLLM, err)

		pois, err = s.fromPlaces(ctx, call, call.maxResults)
		if err != nil {
			return nil, "", false, err
		}
		return pois, entities.StrategyAPIFirst, true, nil

	case entities.StrategyAPIFirst:
		pois, err := s.fromPlaces(ctx, call, call.maxResults)
		if err == nil && len(pois) > 0 {
			return pois, entities.StrategyAPIFirst, false, nil
		}
		s.logFallback(ctx, call, sourcePlaces, err)

		pois, err = s.fromLLM(ctx, call, call.maxResults)
		if err != nil {
			return nil, "", false, err
		}
		return pois, entities.StrategyLLMFirst, true, nil

	case entities.StrategyHybrid:
		pois, err := s.hybrid(ctx, call)
		if err != nil {
			return nil, "", false, err
		}
		return pois, entities.StrategyHybrid, false, nil

	case entities.StrategyLLMOnly:
		pois, err := s.fromLLM(ctx, call, call.maxResults)
		if err != nil {
			return nil, "", false, err
		}
		return pois, entities.StrategyLLMOnly, false, nil
	}

	return nil, "", false, apperrors.NewValidationError(fmt.Sprintf("unsupported strategy %q", call.strategy))
}

// hybrid asks both sources for half the budget each and merges the answers.
// A failure on either side fails the call.
func (s *POIDiscoveryService) hybrid(ctx context.Context, call discoveryCall) ([]*entities.POI, error) {
	perSource := max(1, call.maxResults/2)

	var llmPOIs, apiPOIs []*entities.POI
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		llmPOIs, err = s.fromLLM(gctx, call, perSource)
		return err
	})
	g.Go(func() error {
		var err error
		apiPOIs, err = s.fromPlaces(gctx, call, perSource)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return MergePOIs(llmPOIs, apiPOIs, call.maxResults), nil
}

func (s *POIDiscoveryService) fromLLM(ctx context.Context, call discoveryCall, count int) ([]*entities.POI, error) {
	if s.llm == nil {
		return nil, apperrors.NewSourceUnavailableError(sourceLLM, providers.ErrModelUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.LLMTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "POIDiscoveryService.fromLLM")
	defer span.End()

	start := s.clock.Now()
	prompt := BuildDiscoveryPrompt(call.location, call.category, count)
	text, err := s.llm.Predict(ctx, prompt, s.opts.LLMMaxTokens)
	observability.RecordSourceMetric(ctx, s.metrics, "llm", s.clock.Now().Sub(start), err)
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewSourceUnavailableError(sourceLLM, err)
	}

	pois := s.parser.Parse(ctx, text, call.location, call.category)
	if len(pois) > count {
		pois = pois[:count]
	}
	span.SetAttributes(attribute.Int("discovery.llm.poi_count", len(pois)))
	return pois, nil
}

func (s *POIDiscoveryService) fromPlaces(ctx context.Context, call discoveryCall, count int) ([]*entities.POI, error) {
	if s.places == nil {
		return nil, apperrors.NewSourceUnavailableError(sourcePlaces, fmt.Errorf("no places provider configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.PlacesTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "POIDiscoveryService.fromPlaces")
	defer span.End()

	query := BuildPlacesQuery(call.location, call.category, s.opts.RadiusMeters, count)

	start := s.clock.Now()
	pois, err := s.places.SearchPOIs(ctx, query)
	observability.RecordSourceMetric(ctx, s.metrics, "places", s.clock.Now().Sub(start), err)
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewSourceUnavailableError(sourcePlaces, err)
	}

	if len(pois) > query.MaxResults {
		pois = pois[:query.MaxResults]
	}
	span.SetAttributes(attribute.Int("discovery.places.poi_count", len(pois)))
	return pois, nil
}

func (s *POIDiscoveryService) logFallback(ctx context.Context, call discoveryCall, source string, err error) {
	event := observability.LoggerFromContext(ctx).Warn().
		Str("strategy", string(call.strategy)).
		Str("category", call.category).
		Str("failed_source", source)
	if err != nil {
		event = event.Err(err)
	} else {
		event = event.Bool("empty_result", true)
	}
	event.Msg("primary discovery source gave nothing, falling back")
}

// respond builds the caller's copy of a shared result. Cached and
// single-flight results are never mutated.
func (s *POIDiscoveryService) respond(src *entities.DiscoveryResult, maxResults int, start time.Time, cacheHit bool) *entities.DiscoveryResult {
	pois := src.POIs
	if len(pois) > maxResults {
		pois = pois[:maxResults]
	}
	return &entities.DiscoveryResult{
		POIs:           append(make([]*entities.POI, 0, len(pois)), pois...),
		StrategyUsed:   src.StrategyUsed,
		ResponseTimeMs: s.elapsedMs(start),
		FallbackUsed:   src.FallbackUsed,
		Category:       src.Category,
		CacheHit:       cacheHit,
	}
}

func (s *POIDiscoveryService) finish(ctx context.Context, call discoveryCall, result *entities.DiscoveryResult, err error) {
	observability.RecordDiscoveryMetric(ctx, s.metrics,
		string(call.strategy), string(result.StrategyUsed),
		result.FallbackUsed, result.CacheHit,
		time.Duration(result.ResponseTimeMs)*time.Millisecond, err)

	logger := observability.LoggerFromContext(ctx)
	if err != nil {
		logger.Warn().Err(err).
			Str("strategy", string(call.strategy)).
			Str("category", call.category).
			Msg("discovery failed")
	} else {
		logger.Debug().
			Str("strategy", string(call.strategy)).
			Str("strategy_used", string(result.StrategyUsed)).
			Bool("fallback_used", result.FallbackUsed).
			Bool("cache_hit", result.CacheHit).
			Int("results", len(result.POIs)).
			Int64("response_time_ms", result.ResponseTimeMs).
			Msg("discovery completed")
	}

	if s.analytics == nil {
		return
	}
	event := &entities.DiscoveryEvent{
		Latitude:          call.location.Latitude,
		Longitude:         call.location.Longitude,
		Category:          call.category,
		RequestedStrategy: call.strategy,
		StrategyUsed:      result.StrategyUsed,
		FallbackUsed:      result.FallbackUsed,
		CacheHit:          result.CacheHit,
		ResultCount:       len(result.POIs),
		LatencyMs:         result.ResponseTimeMs,
		CreatedAt:         s.clock.Now(),
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	s.analytics.TrackDiscovery(ctx, event)
}

func (s *POIDiscoveryService) resolveStrategy(requested entities.Strategy) (entities.Strategy, error) {
	if strings.TrimSpace(string(requested)) == "" {
		return s.opts.DefaultStrategy, nil
	}
	strategy, err := entities.ParseStrategy(string(requested))
	if err != nil {
		return "", apperrors.NewValidationError(err.Error())
	}
	return strategy, nil
}

func (s *POIDiscoveryService) elapsedMs(start time.Time) int64 {
	return s.clock.Now().Sub(start).Milliseconds()
}

func validateLocation(loc entities.Coordinates) error {
	if math.IsNaN(loc.Latitude) || math.IsNaN(loc.Longitude) ||
		loc.Latitude < -90 || loc.Latitude > 90 ||
		loc.Longitude < -180 || loc.Longitude > 180 {
		return apperrors.NewValidationError(fmt.Sprintf("invalid location %s", loc))
	}
	return nil
}
