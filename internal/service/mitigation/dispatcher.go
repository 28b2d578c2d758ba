package mitigation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
	"github.com/mkelleher/storefront-sentinel/internal/metrics"
	"github.com/mkelleher/storefront-sentinel/internal/service/ratecheck"
)

// OrderStore mutates order records during mitigation.
type OrderStore interface {
	SetBotFlag(ctx context.Context, orderID uuid.UUID, flagged bool) error
	SetStatus(ctx context.Context, orderID uuid.UUID, status order.Status) error
}

// BlockStore persists address blocks.
type BlockStore interface {
	Insert(ctx context.Context, entry detection.BlockEntry) error
}

// DetectionLog is the append-only audit trail.
type DetectionLog interface {
	Append(ctx context.Context, entry detection.LogEntry) error
}

// Notifier delivers alerts to the configured recipients.
type Notifier interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// Config carries the mitigation policy.
type Config struct {
	BlockDuration   time.Duration
	AlertRecipients []string
}

// Dispatcher applies mitigation side effects for confirmed breaches. Every
// effect is best-effort and independent: a failed flag write does not stop
// the log entry, a failed log entry does not stop the alert, and no failure
// propagates back to the caller. Failures are logged and counted.
type Dispatcher struct {
	orders   OrderStore
	blocks   BlockStore
	log      DetectionLog
	notifier Notifier
	cfg      Config
	clock    detection.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewDispatcher creates the mitigation dispatcher.
func NewDispatcher(orders OrderStore, blocks BlockStore, log DetectionLog, notifier Notifier, cfg Config, clock detection.Clock, logger *zap.Logger) *Dispatcher {
	if clock == nil {
		clock = detection.RealClock{}
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 24 * time.Hour
	}

	return &Dispatcher{
		orders:   orders,
		blocks:   blocks,
		log:      log,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		tracer:   otel.Tracer("mitigation"),
	}
}

// OrderRateBreach flags the triggering order, parks it in pending review,
// appends one audit entry, and sends one alert.
func (d *Dispatcher) OrderRateBreach(ctx context.Context, o *order.Event, observedCount int) {
	ctx, span := d.tracer.Start(ctx, "mitigation.order_rate_breach",
		trace.WithAttributes(
			attribute.String("address", o.SourceAddress),
			attribute.Int("observed_count", observedCount),
		))
	defer span.End()

	d.logger.Warn("order rate breach, applying mitigation",
		zap.String("order_number", o.OrderNumber),
		zap.String("address", o.SourceAddress),
		zap.Int("observed_count", observedCount))

	if err := d.orders.SetBotFlag(ctx, o.ID, true); err != nil {
		d.sideEffectFailed("flag_order", err,
			zap.String("order_number", o.OrderNumber))
	}

	if err := d.orders.SetStatus(ctx, o.ID, order.StatusPendingReview); err != nil {
		d.sideEffectFailed("park_order", err,
			zap.String("order_number", o.OrderNumber))
	}

	entry := detection.LogEntry{
		ID:            uuid.New(),
		Timestamp:     d.clock.Now(),
		Address:       o.SourceAddress,
		ObservedCount: observedCount,
		Type:          detection.TypeExcessiveOrders,
	}
	if err := d.log.Append(ctx, entry); err != nil {
		d.sideEffectFailed("detection_log", err,
			zap.String("address", o.SourceAddress))
	}

	body := fmt.Sprintf(
		"Order %s from address %s was flagged: %d orders observed in the past hour.",
		o.OrderNumber, o.SourceAddress, observedCount)
	d.alert(ctx, "Possible Bot Attack Detected", body)
}

// DeclineRateBreach blocks the offending address, appends one audit entry,
// and sends one alert.
func (d *Dispatcher) DeclineRateBreach(ctx context.Context, stats detection.AddressStats, decision ratecheck.DeclineDecision) {
	ctx, span := d.tracer.Start(ctx, "mitigation.decline_rate_breach",
		trace.WithAttributes(
			attribute.String("address", stats.Address),
			attribute.String("ratio", decision.Ratio.String()),
		))
	defer span.End()

	d.logger.Warn("decline rate breach, blocking address",
		zap.String("address", stats.Address),
		zap.Int("total", stats.Total),
		zap.Int("declined", stats.Declined),
		zap.String("ratio", decision.Ratio.String()))

	block := detection.BlockEntry{
		ID:        uuid.New(),
		Address:   stats.Address,
		Reason:    fmt.Sprintf("High decline rate: %s%%", decision.Ratio.StringFixed(2)),
		BlockedAt: d.clock.Now(),
		Duration:  d.cfg.BlockDuration,
	}
	if err := d.blocks.Insert(ctx, block); err != nil {
		d.sideEffectFailed("block_address", err,
			zap.String("address", stats.Address))
	} else {
		metrics.RecordBlock()
	}

	entry := detection.LogEntry{
		ID:            uuid.New(),
		Timestamp:     d.clock.Now(),
		Address:       stats.Address,
		ObservedCount: stats.Declined,
		Type:          detection.TypeCardingAttack,
	}
	if err := d.log.Append(ctx, entry); err != nil {
		d.sideEffectFailed("detection_log", err,
			zap.String("address", stats.Address))
	}

	body := fmt.Sprintf(
		"Address %s was blocked: %d of %d transactions declined (%s%%) in the past hour.",
		stats.Address, stats.Declined, stats.Total, decision.Ratio.StringFixed(2))
	d.alert(ctx, "Possible Carding Attack Detected", body)
}

func (d *Dispatcher) alert(ctx context.Context, subject, body string) {
	if err := d.notifier.Send(ctx, d.cfg.AlertRecipients, subject, body); err != nil {
		metrics.RecordAlertFailure()
		d.logger.Error("alert delivery failed",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

func (d *Dispatcher) sideEffectFailed(effect string, err error, fields ...zap.Field) {
	metrics.RecordMitigationFailure(effect)
	fields = append(fields, zap.String("effect", effect), zap.Error(err))
	d.logger.Error("mitigation side effect failed", fields...)
}
