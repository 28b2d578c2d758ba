package ratecheck

import (
	"context"
	"time"

	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
)

// OrderCounter is the slice of the event store the order-rate check needs.
// Implementations must return a store-unavailable error when the backing store
// cannot be reached; they must never report an unreachable store as zero rows.
type OrderCounter interface {
	// CountOrders counts orders from the given address inside (start, end].
	CountOrders(ctx context.Context, address string, start, end time.Time) (int, error)
}

// Mitigator applies the side effects for an order-rate breach. It is
// best-effort and never returns an error into the submission path.
type Mitigator interface {
	OrderRateBreach(ctx context.Context, o *order.Event, observedCount int)
}

// Trigger names a host lifecycle context in which the check may run.
type Trigger string

const (
	TriggerCreate        Trigger = "create"
	TriggerDeleteAttempt Trigger = "delete_attempt"
)
