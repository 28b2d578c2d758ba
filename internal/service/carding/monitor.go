package carding

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	"github.com/mkelleher/storefront-sentinel/internal/domain/payment"
	"github.com/mkelleher/storefront-sentinel/internal/metrics"
	"github.com/mkelleher/storefront-sentinel/internal/service/ratecheck"
)

// PaymentFetcher is the slice of the event store the decline-rate scan needs.
type PaymentFetcher interface {
	// FetchPaymentEvents returns payment events inside (start, end], most
	// recent first, capped at limit. The truncated flag reports that more
	// events existed than the cap allowed.
	FetchPaymentEvents(ctx context.Context, start, end time.Time, limit int) ([]payment.Event, bool, error)
}

// Mitigator applies the side effects for a decline-rate breach.
type Mitigator interface {
	DeclineRateBreach(ctx context.Context, stats detection.AddressStats, decision ratecheck.DeclineDecision)
}

// Config carries the decline-rate policy.
type Config struct {
	ThresholdPercent float64
	MinTransactions  int
	BatchLimit       int
	ScanInterval     time.Duration
	RunTimeout       time.Duration
}

// Monitor runs the periodic carding scan. A single invocation runs at a time;
// overlapping ticks are dropped, not queued. No lock is held across the
// mitigation calls.
type Monitor struct {
	store     PaymentFetcher
	mitigator Mitigator
	cfg       Config
	clock     detection.Clock
	logger    *zap.Logger
	tracer    trace.Tracer
	inFlight  atomic.Bool
}

// NewMonitor creates the decline-rate monitor.
func NewMonitor(store PaymentFetcher, mitigator Mitigator, cfg Config, clock detection.Clock, logger *zap.Logger) *Monitor {
	if clock == nil {
		clock = detection.RealClock{}
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 1000
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Hour
	}

	return &Monitor{
		store:     store,
		mitigator: mitigator,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		tracer:    otel.Tracer("carding"),
	}
}

// ScanReport summarizes one completed scan.
type ScanReport struct {
	Evaluated int
	Breaches  int
	Excluded  int
	Truncated bool
}

// Run drives RunOnce on the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil {
				m.logger.Error("carding scan failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// ErrScanInProgress is returned when a scan is already running.
var ErrScanInProgress = scanInProgressError{}

type scanInProgressError struct{}

func (scanInProgressError) Error() string { return "carding scan already in progress" }

// RunOnce performs a single scan over the trailing hour of payment events.
func (m *Monitor) RunOnce(ctx context.Context) (*ScanReport, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer m.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, m.cfg.RunTimeout)
	defer cancel()

	ctx, span := m.tracer.Start(ctx, "carding.scan")
	defer span.End()

	window := detection.PolicySlidingHour.WindowEnding(m.clock.Now())

	events, truncated, err := m.store.FetchPaymentEvents(ctx, window.Start, window.End, m.cfg.BatchLimit)
	if err != nil {
		// Skip the whole cycle; an unreachable store is not an empty hour.
		m.logger.Error("payment event fetch failed, skipping scan",
			zap.Time("window_start", window.Start),
			zap.Time("window_end", window.End),
			zap.Error(err))
		metrics.RecordEvaluationSkipped("store_unavailable")
		return nil, err
	}

	stats, excluded := AggregateByAddress(events)
	metrics.RecordScanBatch(len(events), truncated)
	if truncated {
		m.logger.Warn("payment event batch truncated, scanning most recent sample",
			zap.Int("limit", m.cfg.BatchLimit))
	}

	report := &ScanReport{Excluded: excluded, Truncated: truncated}
	for _, s := range stats {
		decision := ratecheck.EvaluateDeclineRate(s.Total, s.Declined, m.cfg.MinTransactions, m.cfg.ThresholdPercent)
		switch decision.Outcome {
		case ratecheck.OutcomeInsufficient:
			continue
		case ratecheck.OutcomeBreach:
			report.Evaluated++
			report.Breaches++
			metrics.RecordDetection("carding_attack")
			m.mitigator.DeclineRateBreach(ctx, s, decision)
		default:
			report.Evaluated++
		}
	}

	span.SetAttributes(
		attribute.Int("events", len(events)),
		attribute.Int("breaches", report.Breaches),
		attribute.Bool("truncated", truncated),
	)
	m.logger.Info("carding scan completed",
		zap.Int("events", len(events)),
		zap.Int("addresses_evaluated", report.Evaluated),
		zap.Int("breaches", report.Breaches),
		zap.Int("excluded", excluded),
		zap.Bool("truncated", truncated))

	return report, nil
}
