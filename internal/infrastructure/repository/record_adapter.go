package repository

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
)

// RecordClient is the narrow surface of a host record system that stores
// orders as generic field-addressed records. Deployments that keep orders in
// an external commerce platform implement this instead of the postgres
// repository.
type RecordClient interface {
	SetFieldValue(ctx context.Context, recordType, recordID, field, value string) error
	GetFieldValue(ctx context.Context, recordType, recordID, field string) (string, error)
}

// Record field names on the host order record.
const (
	recordTypeOrder = "sales_order"
	fieldBotFlagged = "bot_flagged"
	fieldStatus     = "status"
)

// RecordOrderAdapter adapts a field-addressed RecordClient to the order
// mutation interface the mitigation dispatcher expects.
type RecordOrderAdapter struct {
	client RecordClient
	logger *zap.Logger
}

// NewRecordOrderAdapter creates the adapter.
func NewRecordOrderAdapter(client RecordClient, logger *zap.Logger) *RecordOrderAdapter {
	return &RecordOrderAdapter{client: client, logger: logger}
}

// SetBotFlag writes the bot flag field on the host order record.
func (a *RecordOrderAdapter) SetBotFlag(ctx context.Context, orderID uuid.UUID, flagged bool) error {
	value := "F"
	if flagged {
		value = "T"
	}
	if err := a.client.SetFieldValue(ctx, recordTypeOrder, orderID.String(), fieldBotFlagged, value); err != nil {
		return domainerrors.Wrap(err, "setting bot flag field")
	}
	return nil
}

// SetStatus writes the status field on the host order record.
func (a *RecordOrderAdapter) SetStatus(ctx context.Context, orderID uuid.UUID, status order.Status) error {
	if err := a.client.SetFieldValue(ctx, recordTypeOrder, orderID.String(), fieldStatus, status.String()); err != nil {
		return domainerrors.Wrap(err, "setting status field")
	}
	return nil
}

// IsBotFlagged reads the bot flag field back from the host order record.
func (a *RecordOrderAdapter) IsBotFlagged(ctx context.Context, orderID uuid.UUID) (bool, error) {
	value, err := a.client.GetFieldValue(ctx, recordTypeOrder, orderID.String(), fieldBotFlagged)
	if err != nil {
		return false, domainerrors.Wrap(err, "reading bot flag field")
	}
	return value == "T", nil
}
