// Package app wires the storefront together: configuration, the PostgreSQL
// pool, backend and gateway clients, the checkout orchestrator, and the HTTP
// server with its middleware chain.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/tribetrade/storefront/internal/backend"
	"github.com/tribetrade/storefront/internal/catalog"
	"github.com/tribetrade/storefront/internal/domain/cart"
	"github.com/tribetrade/storefront/internal/domain/checkout"
	"github.com/tribetrade/storefront/internal/handler"
	"github.com/tribetrade/storefront/internal/payment"
	"github.com/tribetrade/storefront/internal/storage/postgres"
	"github.com/tribetrade/storefront/pkg/health"
	"github.com/tribetrade/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Upstream clients.
	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	paymentClient := payment.NewClient(payment.Config{
		BaseURL:     cfg.Payment.BaseURL,
		SecretKey:   cfg.Payment.SecretKey,
		Currency:    cfg.Payment.Currency,
		RedirectURL: cfg.Payment.RedirectURL,
		Timeout:     cfg.Payment.Timeout,
	})

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.DatabasePingCheck(pool))
	healthSvc.AddReadinessCheck("backend", 5*time.Second,
		health.HTTPReachableCheck(nil, cfg.Backend.BaseURL))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Optional product liveness snapshot for the stale pre-check.
	var productChecker checkout.ProductChecker
	if len(cfg.Catalog.SnapshotFiles) > 0 {
		snapshot, err := catalog.Load(ctx, cfg.Catalog.SnapshotFiles, cfg.Catalog.Capacity)
		if err != nil {
			return errors.Wrap(err, "load catalog snapshot")
		}
		lg.Info("Catalog snapshot loaded", zap.Uint64("products", snapshot.Count()))
		productChecker = snapshot
	}

	// Domain services.
	carts := cart.NewService(postgres.NewCartStorage(pool))
	sessions := checkout.NewSessionStore(cfg.Checkout.SessionTTL)
	go sessions.Run(ctx, cfg.Checkout.SweepInterval)

	checkouts := checkout.NewOrchestrator(checkout.Deps{
		Carts:    carts,
		Orders:   backendClient,
		Payments: paymentClient,
		Attempts: postgres.NewAttemptLog(pool),
		Catalog:  productChecker,
		Sessions: sessions,
	})

	// HTTP handlers.
	auth := handler.NewAuthenticator(backendClient, cfg.Backend.ProfileCacheTTL)
	h := handler.NewHandler(auth, carts, checkouts)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "storefront",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
