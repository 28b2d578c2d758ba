package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
	"github.com/mkelleher/storefront-sentinel/internal/domain/payment"
)

// EventStore persists and queries the raw order and payment event streams.
// Every query carries its own timeout; a slow or unreachable database
// surfaces as a store-unavailable error, never as an empty result.
type EventStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewEventStore creates the postgres-backed event store.
func NewEventStore(pool *pgxpool.Pool, queryTimeout time.Duration, logger *zap.Logger) *EventStore {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &EventStore{
		pool:         pool,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// RecordOrderEvent appends one order event.
func (s *EventStore) RecordOrderEvent(ctx context.Context, o *order.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO order_events (
			id, order_number, source_address, channel, status, bot_flagged, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		o.ID, o.OrderNumber, o.SourceAddress, o.Channel.String(), o.Status.String(), o.BotFlagged, o.CreatedAt)
	if err != nil {
		return storeErr("order event insert", err)
	}
	return nil
}

// RecordPaymentEvent appends one payment event.
func (s *EventStore) RecordPaymentEvent(ctx context.Context, p payment.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO payment_events (id, address, status, method, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Address, string(p.Status), p.Method, p.CreatedAt)
	if err != nil {
		return storeErr("payment event insert", err)
	}
	return nil
}

// CountOrders counts order events from the given address inside (start, end].
func (s *EventStore) CountOrders(ctx context.Context, address string, start, end time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM order_events
		WHERE source_address = $1
		  AND created_at > $2
		  AND created_at <= $3
	`
	var count int
	if err := s.pool.QueryRow(ctx, query, address, start, end).Scan(&count); err != nil {
		return 0, storeErr("order count", err)
	}
	return count, nil
}

// FetchPaymentEvents returns payment events inside (start, end], most recent
// first, capped at limit. The second return reports whether the cap cut the
// result off. Implemented by over-fetching one row past the cap.
func (s *EventStore) FetchPaymentEvents(ctx context.Context, start, end time.Time, limit int) ([]payment.Event, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		SELECT id, address, status, method, created_at
		FROM payment_events
		WHERE created_at > $1
		  AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, start, end, limit+1)
	if err != nil {
		return nil, false, storeErr("payment event fetch", err)
	}
	defer rows.Close()

	events := make([]payment.Event, 0, limit)
	for rows.Next() {
		var (
			ev     payment.Event
			status string
		)
		if err := rows.Scan(&ev.ID, &ev.Address, &status, &ev.Method, &ev.CreatedAt); err != nil {
			return nil, false, storeErr("payment event scan", err)
		}
		ev.Status = payment.ParseStatus(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, false, storeErr("payment event fetch", err)
	}

	truncated := len(events) > limit
	if truncated {
		events = events[:limit]
	}
	return events, truncated, nil
}
