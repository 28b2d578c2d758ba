package detection

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddressStats is the per-address tally for one evaluation cycle. It is
// rebuilt from raw events on every run and never persisted.
type AddressStats struct {
	Address  string
	Total    int
	Declined int
}

// DeclineRatio returns declined/total*100 rounded to two decimal places.
// Callers must have established Total > 0 (the evaluator's Insufficient check
// guarantees this before any ratio is computed).
func (s AddressStats) DeclineRatio() decimal.Decimal {
	return decimal.NewFromInt(int64(s.Declined)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(s.Total))).
		Round(2)
}

// BlockEntry is an append-only block record for a network address. Expiry is
// evaluated lazily at lookup time; entries are never mutated or evicted by a
// background job.
type BlockEntry struct {
	ID        uuid.UUID     `json:"id"`
	Address   string        `json:"address"`
	Reason    string        `json:"reason"`
	BlockedAt time.Time     `json:"blocked_at"`
	Duration  time.Duration `json:"duration"`
}

// ExpiresAt returns the instant the block stops applying.
func (b BlockEntry) ExpiresAt() time.Time {
	return b.BlockedAt.Add(b.Duration)
}

// ActiveAt reports whether the block still applies at the given instant.
func (b BlockEntry) ActiveAt(t time.Time) bool {
	return t.Before(b.ExpiresAt())
}

// Type classifies what kind of burst triggered a detection.
type Type string

const (
	TypeExcessiveOrders Type = "Excessive Orders"
	TypeCardingAttack   Type = "Carding Attack"
)

// LogEntry is an append-only audit record written on every breach.
type LogEntry struct {
	ID            uuid.UUID `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Address       string    `json:"address"`
	ObservedCount int       `json:"observed_count"`
	Type          Type      `json:"type"`
}
