package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
)

// BlockRepository persists address blocks. Entries are append-only; expiry is
// evaluated lazily at lookup against the entry's own duration, so no sweeper
// job is needed.
type BlockRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	clock        detection.Clock
	logger       *zap.Logger
}

// NewBlockRepository creates the postgres-backed block repository.
func NewBlockRepository(pool *pgxpool.Pool, queryTimeout time.Duration, clock detection.Clock, logger *zap.Logger) *BlockRepository {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	if clock == nil {
		clock = detection.RealClock{}
	}
	return &BlockRepository{
		pool:         pool,
		queryTimeout: queryTimeout,
		clock:        clock,
		logger:       logger,
	}
}

// Insert appends one block entry.
func (r *BlockRepository) Insert(ctx context.Context, entry detection.BlockEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO blocked_addresses (id, address, reason, blocked_at, duration_seconds)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.Address, entry.Reason, entry.BlockedAt, int64(entry.Duration.Seconds()))
	if err != nil {
		return storeErr("block insert", err)
	}
	return nil
}

// IsBlocked reports whether the address has a block still active right now.
func (r *BlockRepository) IsBlocked(ctx context.Context, address string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT id, address, reason, blocked_at, duration_seconds
		FROM blocked_addresses
		WHERE address = $1
		ORDER BY blocked_at DESC
		LIMIT 1
	`
	var (
		entry   detection.BlockEntry
		seconds int64
	)
	err := r.pool.QueryRow(ctx, query, address).Scan(
		&entry.ID, &entry.Address, &entry.Reason, &entry.BlockedAt, &seconds)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, storeErr("block lookup", err)
	}
	entry.Duration = time.Duration(seconds) * time.Second

	return entry.ActiveAt(r.clock.Now()), nil
}
