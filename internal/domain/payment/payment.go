package payment

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable payment attempt record produced by the payment
// subsystem. The detection core only ever reads these.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"address"`
	Status    Status    `json:"status"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"created_at"`
}

// Status is the processor-reported outcome of a payment attempt. The decline
// test elsewhere is an exact match against StatusDeclined; anything the
// processor reports that is neither approved nor declined maps to StatusOther.
type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
	StatusOther    Status = "OTHER"
)

// ParseStatus normalizes a raw processor status string. Unrecognized values
// become StatusOther rather than an error; the raw value is not preserved.
func ParseStatus(s string) Status {
	switch s {
	case string(StatusApproved):
		return StatusApproved
	case string(StatusDeclined):
		return StatusDeclined
	default:
		return StatusOther
	}
}

func (s Status) String() string { return string(s) }
