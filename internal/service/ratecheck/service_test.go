package ratecheck

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
	"github.com/mkelleher/storefront-sentinel/internal/testutil/fixtures"
)

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) CountOrders(ctx context.Context, address string, start, end time.Time) (int, error) {
	args := m.Called(ctx, address, start, end)
	return args.Int(0), args.Error(1)
}

type mockMitigator struct {
	mock.Mock
}

func (m *mockMitigator) OrderRateBreach(ctx context.Context, o *order.Event, observedCount int) {
	m.Called(ctx, o, observedCount)
}

func newTestService(store OrderCounter, mit Mitigator, cfg Config, clock detection.Clock) *Service {
	return NewService(store, mit, cfg, clock, zap.NewNop())
}

func TestService_OnOrderCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	clock := &detection.MockClock{CurrentTime: now}

	cfg := Config{
		Threshold: 5,
		Policy:    detection.PolicySlidingHour,
		Triggers:  []Trigger{TriggerCreate},
	}

	t.Run("five orders in the past hour breach and mitigate", func(t *testing.T) {
		store := new(mockCounter)
		mit := new(mockMitigator)
		o := fixtures.NewOrderEvent("1.2.3.4", now)

		store.On("CountOrders", mock.Anything, "1.2.3.4", now.Add(-time.Hour), now).Return(5, nil)
		mit.On("OrderRateBreach", mock.Anything, o, 5).Return()

		result := newTestService(store, mit, cfg, clock).OnOrderCreate(ctx, o)

		assert.False(t, result.Skipped)
		assert.Equal(t, OutcomeBreach, result.Outcome)
		assert.Equal(t, 5, result.ObservedCount)
		mit.AssertNumberOfCalls(t, "OrderRateBreach", 1)
	})

	t.Run("four orders do not breach and nothing is dispatched", func(t *testing.T) {
		store := new(mockCounter)
		mit := new(mockMitigator)
		o := fixtures.NewOrderEvent("1.2.3.4", now)

		store.On("CountOrders", mock.Anything, "1.2.3.4", mock.Anything, mock.Anything).Return(4, nil)

		result := newTestService(store, mit, cfg, clock).OnOrderCreate(ctx, o)

		assert.False(t, result.Skipped)
		assert.Equal(t, OutcomeNoBreach, result.Outcome)
		mit.AssertNotCalled(t, "OrderRateBreach", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure skips evaluation without side effects", func(t *testing.T) {
		store := new(mockCounter)
		mit := new(mockMitigator)
		o := fixtures.NewOrderEvent("1.2.3.4", now)

		store.On("CountOrders", mock.Anything, "1.2.3.4", mock.Anything, mock.Anything).
			Return(0, domainerrors.NewStoreUnavailableError("connection refused"))

		result := newTestService(store, mit, cfg, clock).OnOrderCreate(ctx, o)

		assert.True(t, result.Skipped)
		assert.Equal(t, SkipStoreUnavailable, result.SkipReason)
		mit.AssertNotCalled(t, "OrderRateBreach", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non web store channel skips", func(t *testing.T) {
		store := new(mockCounter)
		mit := new(mockMitigator)
		o := fixtures.NewOrderEvent("1.2.3.4", now)
		o.Channel = order.ChannelInStore

		result := newTestService(store, mit, cfg, clock).OnOrderCreate(ctx, o)

		assert.True(t, result.Skipped)
		assert.Equal(t, SkipNonWebChannel, result.SkipReason)
		store.AssertNotCalled(t, "CountOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing source address skips", func(t *testing.T) {
		store := new(mockCounter)
		mit := new(mockMitigator)
		o := fixtures.NewOrderEvent("", now)

		result := newTestService(store, mit, cfg, clock).OnOrderCreate(ctx, o)

		assert.True(t, result.Skipped)
		assert.Equal(t, SkipNoAddress, result.SkipReason)
	})

	t.Run("already flagged order is not re-dispatched", func(t *testing.T) {
		store := new(mockCounter)
		mit := new(mockMitigator)
		o := fixtures.NewOrderEvent("1.2.3.4", now)
		o.BotFlagged = true

		result := newTestService(store, mit, cfg, clock).OnOrderCreate(ctx, o)

		assert.True(t, result.Skipped)
		assert.Equal(t, SkipAlreadyFlagged, result.SkipReason)
		mit.AssertNotCalled(t, "OrderRateBreach", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_TriggerConfiguration(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	clock := &detection.MockClock{CurrentTime: now}

	t.Run("delete attempt disabled by default config", func(t *testing.T) {
		store := new(mockCounter)
		mit := new(mockMitigator)
		cfg := Config{Threshold: 5, Policy: detection.PolicySlidingHour, Triggers: []Trigger{TriggerCreate}}

		result := newTestService(store, mit, cfg, clock).OnOrderDeleteAttempt(ctx, fixtures.NewOrderEvent("1.2.3.4", now))

		assert.True(t, result.Skipped)
		assert.Equal(t, SkipTriggerDisabled, result.SkipReason)
	})

	t.Run("delete attempt evaluates when configured", func(t *testing.T) {
		store := new(mockCounter)
		mit := new(mockMitigator)
		cfg := Config{Threshold: 5, Policy: detection.PolicySlidingHour, Triggers: []Trigger{TriggerCreate, TriggerDeleteAttempt}}

		store.On("CountOrders", mock.Anything, "1.2.3.4", mock.Anything, mock.Anything).Return(2, nil)

		result := newTestService(store, mit, cfg, clock).OnOrderDeleteAttempt(ctx, fixtures.NewOrderEvent("1.2.3.4", now))

		assert.False(t, result.Skipped)
		assert.Equal(t, OutcomeNoBreach, result.Outcome)
	})
}

func TestService_CalendarDayPolicy(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)
	clock := &detection.MockClock{CurrentTime: now}

	store := new(mockCounter)
	mit := new(mockMitigator)
	cfg := Config{Threshold: 5, Policy: detection.PolicyCalendarDay, Triggers: []Trigger{TriggerCreate}}

	midnight := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	store.On("CountOrders", mock.Anything, "1.2.3.4", midnight, now).Return(1, nil)

	result := newTestService(store, mit, cfg, clock).OnOrderCreate(ctx, fixtures.NewOrderEvent("1.2.3.4", now))

	assert.False(t, result.Skipped)
	assert.Equal(t, midnight, result.Window.Start)
	store.AssertExpectations(t)
}
