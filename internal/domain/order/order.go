package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable order submission record. It is created by the order
// subsystem and read-only to the detection core.
type Event struct {
	ID            uuid.UUID `json:"id"`
	OrderNumber   string    `json:"order_number"`
	SourceAddress string    `json:"source_address"`
	Channel       Channel   `json:"channel"`
	Status        Status    `json:"status"`
	BotFlagged    bool      `json:"bot_flagged"`
	CreatedAt     time.Time `json:"created_at"`
}

type Channel int

const (
	ChannelOther Channel = iota
	ChannelWebStore
	ChannelInStore
)

func (c Channel) String() string {
	switch c {
	case ChannelWebStore:
		return "web_store"
	case ChannelInStore:
		return "in_store"
	default:
		return "other"
	}
}

// ParseChannel converts a channel string into a Channel value.
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "web_store":
		return ChannelWebStore, nil
	case "in_store":
		return ChannelInStore, nil
	case "other":
		return ChannelOther, nil
	default:
		return ChannelOther, fmt.Errorf("unknown order channel %q", s)
	}
}

type Status int

const (
	StatusPendingFulfillment Status = iota
	StatusPendingApproval
	StatusPendingReview
	StatusFulfilled
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPendingFulfillment:
		return "pending_fulfillment"
	case StatusPendingApproval:
		return "pending_approval"
	case StatusPendingReview:
		return "pending_review"
	case StatusFulfilled:
		return "fulfilled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus converts a status string into a Status value.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending_fulfillment":
		return StatusPendingFulfillment, nil
	case "pending_approval":
		return StatusPendingApproval, nil
	case "pending_review":
		return StatusPendingReview, nil
	case "fulfilled":
		return StatusFulfilled, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return StatusPendingFulfillment, fmt.Errorf("unknown order status %q", s)
	}
}

// NewEvent constructs an order event for a fresh submission.
func NewEvent(orderNumber, sourceAddress string, channel Channel, createdAt time.Time) *Event {
	return &Event{
		ID:            uuid.New(),
		OrderNumber:   orderNumber,
		SourceAddress: sourceAddress,
		Channel:       channel,
		Status:        StatusPendingFulfillment,
		CreatedAt:     createdAt,
	}
}
