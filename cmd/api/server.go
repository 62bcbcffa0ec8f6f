// Package api wires configuration, storage, the database and the receipt
// handlers into a running HTTP server.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/handler"
	"github.com/FACorreiaa/receipt-ledger/pkg/config"
	"github.com/FACorreiaa/receipt-ledger/pkg/interceptors"
	"github.com/FACorreiaa/receipt-ledger/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

// RouterConfig is everything NewRouter needs.
type RouterConfig struct {
	Server   config.ServerConfig
	Receipts *handler.ReceiptHandler
	Tokens   *interceptors.TokenManager
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// NewRouter builds the HTTP handler: request logging and panic recovery,
// CORS, rate limiting and then the routes.
func NewRouter(rc RouterConfig) http.Handler {
	mux := http.NewServeMux()
	rc.Receipts.Register(mux, interceptors.Auth(rc.Tokens))

	var observe func(r *http.Request, status int)
	if rc.Metrics != nil {
		observe = func(r *http.Request, status int) {
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			rc.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
	}

	var h http.Handler = mux
	if rc.Server.RateLimitPerSecond > 0 {
		h = interceptors.RateLimit(rate.NewLimiter(rate.Limit(rc.Server.RateLimitPerSecond), max(rc.Server.RateLimitBurst, 1)))(h)
	}
	h = cors.New(cors.Options{
		AllowedOrigins:   rc.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(h)
	return interceptors.Logging(rc.Logger, observe)(h)
}

// Router returns the application handler for the initialized dependencies.
func (d *Dependencies) Router() http.Handler {
	return NewRouter(RouterConfig{
		Server:   d.Config.Server,
		Receipts: d.ReceiptHandler,
		Tokens:   d.TokenManager,
		Metrics:  d.Metrics,
		Logger:   d.Logger,
	})
}

// Run starts the API and the background jobs and blocks until ctx is
// cancelled, then shuts everything down.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := InitDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if err := deps.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer deps.Scheduler.Stop()

	servers := []*http.Server{{
		Addr:              cfg.Server.Addr(),
		Handler:           deps.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Observability.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", deps.Metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("http server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		logger.Error("http server failed", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("http server shutdown failed", slog.String("addr", srv.Addr), slog.Any("error", serr))
		}
	}
	return err
}
