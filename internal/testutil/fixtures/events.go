package fixtures

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
	"github.com/mkelleher/storefront-sentinel/internal/domain/payment"
)

// NewOrderEvent builds a web-store order event for tests.
func NewOrderEvent(address string, createdAt time.Time) *order.Event {
	return &order.Event{
		ID:            uuid.New(),
		OrderNumber:   fmt.Sprintf("SO-%d", createdAt.UnixNano()%100000),
		SourceAddress: address,
		Channel:       order.ChannelWebStore,
		Status:        order.StatusPendingFulfillment,
		CreatedAt:     createdAt,
	}
}

// NewPaymentEvent builds a payment event for tests.
func NewPaymentEvent(address string, status payment.Status, createdAt time.Time) payment.Event {
	return payment.Event{
		ID:        uuid.New(),
		Address:   address,
		Status:    status,
		Method:    "card",
		CreatedAt: createdAt,
	}
}

// PaymentBurst builds count payment events from one address, the first
// declined of them carrying payment.StatusDeclined and the rest approved.
func PaymentBurst(address string, count, declined int, at time.Time) []payment.Event {
	events := make([]payment.Event, 0, count)
	for i := 0; i < count; i++ {
		status := payment.StatusApproved
		if i < declined {
			status = payment.StatusDeclined
		}
		events = append(events, NewPaymentEvent(address, status, at.Add(-time.Duration(i)*time.Minute)))
	}
	return events
}
