package carding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
	"github.com/mkelleher/storefront-sentinel/internal/domain/payment"
	"github.com/mkelleher/storefront-sentinel/internal/service/ratecheck"
	"github.com/mkelleher/storefront-sentinel/internal/testutil/fixtures"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchPaymentEvents(ctx context.Context, start, end time.Time, limit int) ([]payment.Event, bool, error) {
	args := m.Called(ctx, start, end, limit)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]payment.Event), args.Bool(1), args.Error(2)
}

type mockDeclineMitigator struct {
	mock.Mock
}

func (m *mockDeclineMitigator) DeclineRateBreach(ctx context.Context, stats detection.AddressStats, decision ratecheck.DeclineDecision) {
	m.Called(ctx, stats, decision)
}

func testConfig() Config {
	return Config{
		ThresholdPercent: 40,
		MinTransactions:  10,
		BatchLimit:       1000,
		ScanInterval:     time.Hour,
		RunTimeout:       5 * time.Second,
	}
}

func TestMonitor_RunOnce_Breach(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	clock := &detection.MockClock{CurrentTime: now}

	store := new(mockFetcher)
	mit := new(mockDeclineMitigator)

	// 12 events from one address, 5 declined: 41.67% beats the 40% threshold.
	events := fixtures.PaymentBurst("9.9.9.9", 12, 5, now)
	store.On("FetchPaymentEvents", mock.Anything, now.Add(-time.Hour), now, 1000).
		Return(events, false, nil)

	mit.On("DeclineRateBreach", mock.Anything,
		mock.MatchedBy(func(s detection.AddressStats) bool {
			return s.Address == "9.9.9.9" && s.Total == 12 && s.Declined == 5
		}),
		mock.MatchedBy(func(d ratecheck.DeclineDecision) bool {
			return d.Outcome == ratecheck.OutcomeBreach && d.Ratio.String() == "41.67"
		})).Return()

	m := NewMonitor(store, mit, testConfig(), clock, zap.NewNop())
	report, err := m.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Breaches)
	mit.AssertNumberOfCalls(t, "DeclineRateBreach", 1)
}

func TestMonitor_RunOnce_InsufficientSample(t *testing.T) {
	now := time.Now()
	clock := &detection.MockClock{CurrentTime: now}

	store := new(mockFetcher)
	mit := new(mockDeclineMitigator)

	// 8 events, all declined: still below the 10-transaction floor.
	store.On("FetchPaymentEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fixtures.PaymentBurst("7.7.7.7", 8, 8, now), false, nil)

	m := NewMonitor(store, mit, testConfig(), clock, zap.NewNop())
	report, err := m.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.Breaches)
	mit.AssertNotCalled(t, "DeclineRateBreach", mock.Anything, mock.Anything, mock.Anything)
}

func TestMonitor_RunOnce_StoreUnavailable(t *testing.T) {
	store := new(mockFetcher)
	mit := new(mockDeclineMitigator)

	store.On("FetchPaymentEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, false, domainerrors.NewStoreUnavailableError("timeout"))

	m := NewMonitor(store, mit, testConfig(), nil, zap.NewNop())
	report, err := m.RunOnce(context.Background())

	assert.Nil(t, report)
	assert.Error(t, err)
	assert.True(t, domainerrors.IsStoreUnavailable(err))
	mit.AssertNotCalled(t, "DeclineRateBreach", mock.Anything, mock.Anything, mock.Anything)
}

func TestMonitor_RunOnce_ReportsTruncation(t *testing.T) {
	now := time.Now()
	clock := &detection.MockClock{CurrentTime: now}

	store := new(mockFetcher)
	mit := new(mockDeclineMitigator)

	store.On("FetchPaymentEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fixtures.PaymentBurst("6.6.6.6", 5, 0, now), true, nil)

	m := NewMonitor(store, mit, testConfig(), clock, zap.NewNop())
	report, err := m.RunOnce(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Truncated)
}

func TestMonitor_RunOnce_SingleFlight(t *testing.T) {
	now := time.Now()
	clock := &detection.MockClock{CurrentTime: now}

	store := new(mockFetcher)
	mit := new(mockDeclineMitigator)

	started := make(chan struct{})
	release := make(chan struct{})
	store.On("FetchPaymentEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]payment.Event{}, false, nil)

	m := NewMonitor(store, mit, testConfig(), clock, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.RunOnce(context.Background())
		assert.NoError(t, err)
	}()

	<-started
	_, err := m.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(release)
	wg.Wait()
}
