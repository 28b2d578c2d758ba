package mitigation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
	"github.com/mkelleher/storefront-sentinel/internal/service/carding"
	"github.com/mkelleher/storefront-sentinel/internal/service/ratecheck"
	"github.com/mkelleher/storefront-sentinel/internal/testutil/fixtures"
	"github.com/mkelleher/storefront-sentinel/internal/testutil/mocks"
)

// Drives the real rate check service into the real dispatcher, mocking only
// the storage and delivery edges.
func TestOrderRatePipeline_BurstFlagsAndAlertsOnce(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	clock := &detection.MockClock{CurrentTime: now}

	counter := new(mocks.OrderCounter)
	orders := new(mocks.OrderStore)
	blocks := new(mocks.BlockStore)
	log := new(mocks.DetectionLog)
	notifier := new(mocks.Notifier)

	dispatcher := NewDispatcher(orders, blocks, log, notifier, Config{
		BlockDuration:   24 * time.Hour,
		AlertRecipients: []string{"fraud-team@example.com"},
	}, clock, zap.NewNop())

	svc := ratecheck.NewService(counter, dispatcher, ratecheck.Config{
		Threshold: 5,
		Policy:    detection.PolicySlidingHour,
		Triggers:  []ratecheck.Trigger{ratecheck.TriggerCreate},
	}, clock, zap.NewNop())

	o := fixtures.NewOrderEvent("9.9.9.9", now)

	counter.On("CountOrders", mock.Anything, "9.9.9.9", now.Add(-time.Hour), now).Return(5, nil)
	orders.On("SetBotFlag", mock.Anything, o.ID, true).Return(nil)
	orders.On("SetStatus", mock.Anything, o.ID, order.StatusPendingReview).Return(nil)
	log.On("Append", mock.Anything, mock.MatchedBy(func(e detection.LogEntry) bool {
		return e.Type == detection.TypeExcessiveOrders && e.ObservedCount == 5
	})).Return(nil)
	notifier.On("Send", mock.Anything, []string{"fraud-team@example.com"},
		"Possible Bot Attack Detected", mock.Anything).Return(nil)

	result := svc.OnOrderCreate(context.Background(), o)

	assert.Equal(t, ratecheck.OutcomeBreach, result.Outcome)
	orders.AssertExpectations(t)
	log.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "Send", 1)

	// A second pass over the now-flagged order dispatches nothing.
	o.BotFlagged = true
	result = svc.OnOrderCreate(context.Background(), o)
	assert.True(t, result.Skipped)
	notifier.AssertNumberOfCalls(t, "Send", 1)
}

func TestDeclineRatePipeline_ScanBlocksAndAlerts(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	clock := &detection.MockClock{CurrentTime: now}

	fetcher := new(mocks.PaymentFetcher)
	orders := new(mocks.OrderStore)
	blocks := new(mocks.BlockStore)
	log := new(mocks.DetectionLog)
	notifier := new(mocks.Notifier)

	dispatcher := NewDispatcher(orders, blocks, log, notifier, Config{
		BlockDuration:   24 * time.Hour,
		AlertRecipients: []string{"fraud-team@example.com"},
	}, clock, zap.NewNop())

	monitor := carding.NewMonitor(fetcher, dispatcher, carding.Config{
		ThresholdPercent: 40,
		MinTransactions:  10,
		BatchLimit:       1000,
	}, clock, zap.NewNop())

	fetcher.On("FetchPaymentEvents", mock.Anything, now.Add(-time.Hour), now, 1000).
		Return(fixtures.PaymentBurst("9.9.9.9", 12, 5, now), false, nil)
	blocks.On("Insert", mock.Anything, mock.MatchedBy(func(b detection.BlockEntry) bool {
		return b.Address == "9.9.9.9" && b.Reason == "High decline rate: 41.67%"
	})).Return(nil)
	log.On("Append", mock.Anything, mock.MatchedBy(func(e detection.LogEntry) bool {
		return e.Type == detection.TypeCardingAttack
	})).Return(nil)
	notifier.On("Send", mock.Anything, []string{"fraud-team@example.com"},
		"Possible Carding Attack Detected", mock.Anything).Return(nil)

	report, err := monitor.RunOnce(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, report.Breaches)
	blocks.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "Send", 1)
}
