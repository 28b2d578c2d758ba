package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
)

// DetectionLogRepository is the append-only audit trail for breaches.
type DetectionLogRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewDetectionLogRepository creates the postgres-backed detection log.
func NewDetectionLogRepository(pool *pgxpool.Pool, queryTimeout time.Duration, logger *zap.Logger) *DetectionLogRepository {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &DetectionLogRepository{
		pool:         pool,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Append writes one detection log entry.
func (r *DetectionLogRepository) Append(ctx context.Context, entry detection.LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO detection_log (id, detected_at, address, observed_count, detection_type)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.Timestamp, entry.Address, entry.ObservedCount, string(entry.Type))
	if err != nil {
		return storeErr("detection log append", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (r *DetectionLogRepository) Recent(ctx context.Context, limit int) ([]detection.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT id, detected_at, address, observed_count, detection_type
		FROM detection_log
		ORDER BY detected_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, storeErr("detection log query", err)
	}
	defer rows.Close()

	entries := make([]detection.LogEntry, 0, limit)
	for rows.Next() {
		var (
			e             detection.LogEntry
			detectionType string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Address, &e.ObservedCount, &detectionType); err != nil {
			return nil, storeErr("detection log scan", err)
		}
		e.Type = detection.Type(detectionType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("detection log query", err)
	}
	return entries, nil
}
