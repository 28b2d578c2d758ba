package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
	"github.com/mkelleher/storefront-sentinel/internal/domain/payment"
)

// Shared testify mocks for the collaborator interfaces. Service packages keep
// small local mocks where that reads better; these exist for wiring-level
// tests that need several collaborators at once.

type OrderCounter struct {
	mock.Mock
}

func (m *OrderCounter) CountOrders(ctx context.Context, address string, start, end time.Time) (int, error) {
	args := m.Called(ctx, address, start, end)
	return args.Int(0), args.Error(1)
}

type PaymentFetcher struct {
	mock.Mock
}

func (m *PaymentFetcher) FetchPaymentEvents(ctx context.Context, start, end time.Time, limit int) ([]payment.Event, bool, error) {
	args := m.Called(ctx, start, end, limit)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]payment.Event), args.Bool(1), args.Error(2)
}

type OrderStore struct {
	mock.Mock
}

func (m *OrderStore) SetBotFlag(ctx context.Context, orderID uuid.UUID, flagged bool) error {
	return m.Called(ctx, orderID, flagged).Error(0)
}

func (m *OrderStore) SetStatus(ctx context.Context, orderID uuid.UUID, status order.Status) error {
	return m.Called(ctx, orderID, status).Error(0)
}

type BlockStore struct {
	mock.Mock
}

func (m *BlockStore) Insert(ctx context.Context, entry detection.BlockEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *BlockStore) IsBlocked(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

type DetectionLog struct {
	mock.Mock
}

func (m *DetectionLog) Append(ctx context.Context, entry detection.LogEntry) error {
	return m.Called(ctx, entry).Error(0)
}

type Notifier struct {
	mock.Mock
}

func (m *Notifier) Send(ctx context.Context, recipients []string, subject, body string) error {
	return m.Called(ctx, recipients, subject, body).Error(0)
}
