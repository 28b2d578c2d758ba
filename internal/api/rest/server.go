package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mkelleher/storefront-sentinel/internal/infrastructure/config"
)

// Server is the HTTP front of the detection core.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer wires routes and middleware into an http.Server. The rate limit
// only guards the CAPTCHA verify endpoint; health and metrics stay open for
// probes and scrapes.
func NewServer(cfg *config.ServerConfig, handler *Handler, logger *zap.Logger) *Server {
	limiter := newIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize)
	limited := rateLimitMiddleware(limiter)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/captcha/verify", limited(http.HandlerFunc(handler.handleCaptchaVerify)))
	mux.HandleFunc("GET /v1/blocklist/{address}", handler.handleBlocklistLookup)
	mux.HandleFunc("GET /healthz", handler.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	var root http.Handler = mux
	root = loggingMiddleware(logger)(root)
	root = recoveryMiddleware(logger)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
