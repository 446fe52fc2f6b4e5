package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/zatekoja/poidiscovery/internal/domain/entities"
	"github.com/zatekoja/poidiscovery/internal/domain/repositories"
	"github.com/zatekoja/poidiscovery/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/poidiscovery/pkg/errors"
)

const discoveryEventsTable = "discovery_events"

const discoveryEventsSchema = `
CREATE TABLE IF NOT EXISTS discovery_events (
	id                 UUID PRIMARY KEY,
	latitude           DOUBLE PRECISION NOT NULL,
	longitude          DOUBLE PRECISION NOT NULL,
	category           TEXT NOT NULL,
	requested_strategy TEXT NOT NULL,
	strategy_used      TEXT,
	fallback_used      BOOLEAN NOT NULL DEFAULT FALSE,
	cache_hit          BOOLEAN NOT NULL DEFAULT FALSE,
	result_count       INTEGER NOT NULL DEFAULT 0,
	latency_ms         BIGINT NOT NULL DEFAULT 0,
	error_message      TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_discovery_events_fallback_created
	ON discovery_events (created_at DESC) WHERE fallback_used;
`

var discoveryEventColumns = []interface{}{
	"id", "latitude", "longitude", "category", "requested_strategy", "strategy_used",
	"fallback_used", "cache_hit", "result_count", "latency_ms", "error_message", "created_at",
}

var _ repositories.DiscoveryEventRepository = (*DiscoveryEventAdapter)(nil)

// DiscoveryEventAdapter persists discovery analytics in Postgres
type DiscoveryEventAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDiscoveryEventAdapter creates a new discovery event adapter
func NewDiscoveryEventAdapter(client *postgres.Client) *DiscoveryEventAdapter {
	return &DiscoveryEventAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// EnsureSchema creates the discovery_events table when missing
func (a *DiscoveryEventAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, discoveryEventsSchema); err != nil {
		return apperrors.NewInternalError("failed to create discovery_events schema", err)
	}
	return nil
}

// LogEvent inserts a discovery event
func (a *DiscoveryEventAdapter) LogEvent(ctx context.Context, event *entities.DiscoveryEvent) error {
	if event == nil {
		return apperrors.NewInternalError("discovery event is nil", fmt.Errorf("discovery event is nil"))
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":                 event.ID,
		"latitude":           event.Latitude,
		"longitude":          event.Longitude,
		"category":           event.Category,
		"requested_strategy": string(event.RequestedStrategy),
		"strategy_used":      sql.NullString{String: string(event.StrategyUsed), Valid: event.StrategyUsed != ""},
		"fallback_used":      event.FallbackUsed,
		"cache_hit":          event.CacheHit,
		"result_count":       event.ResultCount,
		"latency_ms":         event.LatencyMs,
		"error_message":      sql.NullString{String: event.ErrorMessage, Valid: event.ErrorMessage != ""},
		"created_at":         event.CreatedAt,
	}

	query, args, err := a.db.Insert(discoveryEventsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build discovery event insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log discovery event", err)
	}
	return nil
}

// ListFallbackEvents returns the newest events that needed a fallback source
func (a *DiscoveryEventAdapter) ListFallbackEvents(ctx context.Context, limit int) ([]*entities.DiscoveryEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.From(discoveryEventsTable).
		Select(discoveryEventColumns...).
		Where(goqu.C("fallback_used").IsTrue()).
		Order(goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build fallback events query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list fallback events", err)
	}
	defer rows.Close()

	events := make([]*entities.DiscoveryEvent, 0)
	for rows.Next() {
		var (
			e            entities.DiscoveryEvent
			requested    string
			strategyUsed sql.NullString
			errorMessage sql.NullString
		)
		if err := rows.Scan(
			&e.ID,
			&e.Latitude,
			&e.Longitude,
			&e.Category,
			&requested,
			&strategyUsed,
			&e.FallbackUsed,
			&e.CacheHit,
			&e.ResultCount,
			&e.LatencyMs,
			&errorMessage,
			&e.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan discovery event", err)
		}
		e.RequestedStrategy = entities.Strategy(requested)
		e.StrategyUsed = entities.Strategy(strategyUsed.String)
		e.ErrorMessage = errorMessage.String
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate discovery events", err)
	}

	return events, nil
}
