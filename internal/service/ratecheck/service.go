package ratecheck

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
	"github.com/mkelleher/storefront-sentinel/internal/metrics"
)

// Config carries the order-rate policy. Values are fixed at construction;
// nothing here is runtime-mutable.
type Config struct {
	Threshold int
	Policy    detection.WindowPolicy
	Triggers  []Trigger
}

// Service runs the synchronous order-rate check on the order submission path.
// Each evaluation is independent read-then-decide state; it is safe to run
// concurrently for different addresses. The count query and the subsequent
// flag-set are not atomic, so two near-simultaneous submissions from the same
// address may both read a count below threshold and both pass. That race is an
// accepted limitation of the design, not something the service compensates for.
type Service struct {
	store     OrderCounter
	mitigator Mitigator
	cfg       Config
	triggers  map[Trigger]bool
	clock     detection.Clock
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService creates the order-rate check service.
func NewService(store OrderCounter, mitigator Mitigator, cfg Config, clock detection.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = detection.RealClock{}
	}
	triggers := make(map[Trigger]bool, len(cfg.Triggers))
	for _, t := range cfg.Triggers {
		triggers[t] = true
	}

	return &Service{
		store:     store,
		mitigator: mitigator,
		cfg:       cfg,
		triggers:  triggers,
		clock:     clock,
		logger:    logger,
		tracer:    otel.Tracer("ratecheck"),
	}
}

// CheckResult reports what one evaluation did. It never carries an error: a
// failed store query surfaces as Skipped with a reason, and nothing propagates
// into the order submission path.
type CheckResult struct {
	Outcome       Outcome
	ObservedCount int
	Window        detection.Window
	Skipped       bool
	SkipReason    string
}

// Skip reasons
const (
	SkipTriggerDisabled  = "trigger_disabled"
	SkipNonWebChannel    = "non_web_channel"
	SkipNoAddress        = "no_source_address"
	SkipAlreadyFlagged   = "already_flagged"
	SkipStoreUnavailable = "store_unavailable"
)

// OnOrderCreate evaluates a freshly submitted order.
func (s *Service) OnOrderCreate(ctx context.Context, o *order.Event) CheckResult {
	return s.check(ctx, o, TriggerCreate)
}

// OnOrderDeleteAttempt evaluates an order that something is trying to delete.
func (s *Service) OnOrderDeleteAttempt(ctx context.Context, o *order.Event) CheckResult {
	return s.check(ctx, o, TriggerDeleteAttempt)
}

func (s *Service) check(ctx context.Context, o *order.Event, trigger Trigger) CheckResult {
	ctx, span := s.tracer.Start(ctx, "ratecheck.check",
		trace.WithAttributes(
			attribute.String("trigger", string(trigger)),
			attribute.String("order.number", o.OrderNumber),
		))
	defer span.End()

	if !s.triggers[trigger] {
		return s.skip(SkipTriggerDisabled)
	}

	// Only web store submissions are rate checked.
	if o.Channel != order.ChannelWebStore {
		return s.skip(SkipNonWebChannel)
	}

	if o.SourceAddress == "" {
		return s.skip(SkipNoAddress)
	}

	// An already flagged order has been through a breach cycle; re-running
	// the side effects would double-trigger for the same burst.
	if o.BotFlagged {
		return s.skip(SkipAlreadyFlagged)
	}

	window := s.cfg.Policy.WindowEnding(s.clock.Now())

	count, err := s.store.CountOrders(ctx, o.SourceAddress, window.Start, window.End)
	if err != nil {
		// An unreachable store means "evaluation skipped", never "zero
		// orders". The triggering submission proceeds unimpeded.
		s.logger.Error("order count query failed, skipping evaluation",
			zap.String("address", o.SourceAddress),
			zap.String("order_number", o.OrderNumber),
			zap.Time("window_start", window.Start),
			zap.Time("window_end", window.End),
			zap.Error(err))
		metrics.RecordEvaluationSkipped(SkipStoreUnavailable)
		return CheckResult{Skipped: true, SkipReason: SkipStoreUnavailable, Window: window}
	}

	result := CheckResult{
		Outcome:       EvaluateCount(count, s.cfg.Threshold),
		ObservedCount: count,
		Window:        window,
	}

	s.logger.Debug("order rate evaluated",
		zap.String("address", o.SourceAddress),
		zap.Int("count", count),
		zap.Int("threshold", s.cfg.Threshold),
		zap.String("outcome", result.Outcome.String()))

	if result.Outcome == OutcomeBreach {
		metrics.RecordDetection("excessive_orders")
		s.mitigator.OrderRateBreach(ctx, o, count)
	}

	return result
}

func (s *Service) skip(reason string) CheckResult {
	metrics.RecordEvaluationSkipped(reason)
	return CheckResult{Skipped: true, SkipReason: reason}
}
