package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
)

// OrderRepository mutates stored order events during mitigation.
type OrderRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewOrderRepository creates the postgres-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, queryTimeout time.Duration, logger *zap.Logger) *OrderRepository {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &OrderRepository{
		pool:         pool,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// SetBotFlag marks or clears the bot flag on an order event.
func (r *OrderRepository) SetBotFlag(ctx context.Context, orderID uuid.UUID, flagged bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE order_events SET bot_flagged = $1 WHERE id = $2`, flagged, orderID)
	if err != nil {
		return storeErr("order flag update", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.NewNotFoundError("order event")
	}
	return nil
}

// SetStatus changes an order event's status.
func (r *OrderRepository) SetStatus(ctx context.Context, orderID uuid.UUID, status order.Status) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE order_events SET status = $1 WHERE id = $2`, status.String(), orderID)
	if err != nil {
		return storeErr("order status update", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.NewNotFoundError("order event")
	}
	return nil
}

// GetByID loads one order event.
func (r *OrderRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*order.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT id, order_number, source_address, channel, status, bot_flagged, created_at
		FROM order_events
		WHERE id = $1
	`
	var (
		ev      order.Event
		channel string
		status  string
	)
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&ev.ID, &ev.OrderNumber, &ev.SourceAddress, &channel, &status, &ev.BotFlagged, &ev.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domainerrors.NewNotFoundError("order event")
		}
		return nil, storeErr("order load", err)
	}
	if ev.Channel, err = order.ParseChannel(channel); err != nil {
		r.logger.Warn("stored order has unknown channel", zap.String("channel", channel))
	}
	if ev.Status, err = order.ParseStatus(status); err != nil {
		r.logger.Warn("stored order has unknown status", zap.String("status", status))
	}
	return &ev, nil
}
