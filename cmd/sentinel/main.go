package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/api/rest"
	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	"github.com/mkelleher/storefront-sentinel/internal/domain/order"
	"github.com/mkelleher/storefront-sentinel/internal/events"
	"github.com/mkelleher/storefront-sentinel/internal/infrastructure/cache"
	"github.com/mkelleher/storefront-sentinel/internal/infrastructure/config"
	"github.com/mkelleher/storefront-sentinel/internal/infrastructure/database"
	"github.com/mkelleher/storefront-sentinel/internal/infrastructure/notification"
	"github.com/mkelleher/storefront-sentinel/internal/infrastructure/repository"
	"github.com/mkelleher/storefront-sentinel/internal/infrastructure/telemetry"
	"github.com/mkelleher/storefront-sentinel/internal/service/carding"
	"github.com/mkelleher/storefront-sentinel/internal/service/mitigation"
	"github.com/mkelleher/storefront-sentinel/internal/service/ratecheck"
	"github.com/mkelleher/storefront-sentinel/internal/service/verification"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		ServiceName:  "storefront-sentinel",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	clock := detection.RealClock{}

	// Storage layer.
	eventStore := repository.NewEventStore(pool, cfg.Database.QueryTimeout, logger)
	orderRepo := repository.NewOrderRepository(pool, cfg.Database.QueryTimeout, logger)
	blockRepo := repository.NewBlockRepository(pool, cfg.Database.QueryTimeout, clock, logger)
	detectionLog := repository.NewDetectionLogRepository(pool, cfg.Database.QueryTimeout, logger)
	blocklist := cache.NewBlocklistCache(redisClient, blockRepo, logger)

	notifier := notification.NewWebhookNotifier(cfg.Alerts.WebhookURL, cfg.Alerts.SendTimeout, logger)

	dispatcher := mitigation.NewDispatcher(orderRepo, blocklist, detectionLog, notifier,
		mitigation.Config{
			BlockDuration:   cfg.Detection.BlockDuration,
			AlertRecipients: cfg.Alerts.Recipients,
		}, clock, logger.Named("mitigation"))

	windowPolicy, err := detection.ParseWindowPolicy(cfg.Detection.WindowPolicy)
	if err != nil {
		return fmt.Errorf("parsing window policy: %w", err)
	}
	triggers := make([]ratecheck.Trigger, 0, len(cfg.Detection.Triggers))
	for _, t := range cfg.Detection.Triggers {
		triggers = append(triggers, ratecheck.Trigger(t))
	}

	rateCheck := ratecheck.NewService(eventStore, dispatcher,
		ratecheck.Config{
			Threshold: cfg.Detection.OrderRateThreshold,
			Policy:    windowPolicy,
			Triggers:  triggers,
		}, clock, logger.Named("ratecheck"))

	monitor := carding.NewMonitor(eventStore, dispatcher,
		carding.Config{
			ThresholdPercent: cfg.Detection.DeclineRateThreshold,
			MinTransactions:  cfg.Detection.MinTransactionSample,
			BatchLimit:       cfg.Detection.BatchLimit,
			ScanInterval:     cfg.Detection.ScanInterval,
		}, clock, logger.Named("carding"))

	// Lifecycle hooks: the host pushes order events through the registry; the
	// timer tick is also exposed so an external scheduler can drive scans.
	registry := events.NewRegistry(logger.Named("events"))
	registry.Register(events.EventOrderCreate, func(ctx context.Context, payload any) error {
		o, ok := payload.(*order.Event)
		if !ok {
			return fmt.Errorf("order.create payload must be *order.Event, got %T", payload)
		}
		if err := eventStore.RecordOrderEvent(ctx, o); err != nil {
			return err
		}
		rateCheck.OnOrderCreate(ctx, o)
		return nil
	})
	registry.Register(events.EventOrderDeleteAttempt, func(ctx context.Context, payload any) error {
		o, ok := payload.(*order.Event)
		if !ok {
			return fmt.Errorf("order.delete_attempt payload must be *order.Event, got %T", payload)
		}
		rateCheck.OnOrderDeleteAttempt(ctx, o)
		return nil
	})
	registry.Register(events.EventTimerTick, func(ctx context.Context, payload any) error {
		_, err := monitor.RunOnce(ctx)
		return err
	})
	// Submissions arriving through the web storefront carry no channel of
	// their own; stamp them before the rate check so the web-only gate sees
	// them.
	registry.Register(events.EventHTTPPost, func(ctx context.Context, payload any) error {
		o, ok := payload.(*order.Event)
		if !ok {
			return fmt.Errorf("http.post payload must be *order.Event, got %T", payload)
		}
		o.Channel = order.ChannelWebStore
		if err := eventStore.RecordOrderEvent(ctx, o); err != nil {
			return err
		}
		rateCheck.OnOrderCreate(ctx, o)
		return nil
	})

	// HTTP surface.
	gateway := verification.NewGateway(cfg.Captcha.Endpoint, cfg.Captcha.Secret, cfg.Captcha.VerifyTimeout, logger.Named("verification"))
	sessions := verification.NewSessionIssuer([]byte(cfg.Captcha.SessionSecret), cfg.Captcha.SessionTTL, clock)
	handler := rest.NewHandler(gateway, sessions, blocklist, logger.Named("rest"))
	server := rest.NewServer(&cfg.Server, handler, logger.Named("rest"))

	go monitor.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
