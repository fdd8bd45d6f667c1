/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the library engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags > env > .env > defaults)
  2. Build the structured logger
  3. Initialize SQLite store
  4. Load the loan policy (built-in or -policy file)
  5. Wrap the sandbox payment gateway with timeout + rate limit
  6. Configure HTTP router and start the overdue scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port              HTTP server port (default: 8080)
  -db                SQLite database path (default: library.db)
                     Use ":memory:" for in-memory database
  -policy            Loan policy JSON file
  -gateway-timeout   Payment gateway call timeout (default: 10s)
  -gateway-rps       Payment gateway calls per second (default: 5)
  -overdue-interval  Overdue sweep interval, 0 disables (default: 1h)
  -seed              Load the sample catalog on startup
  See config/config.go for the full list and environment variables.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the overdue scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with in-memory database and demo data
  ./server -db=":memory:" -seed

  # Stricter loan policy, JSON logs
  ./server -policy=./policy.json -env=production

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/library-engine/api"
	"github.com/warp/library-engine/config"
	"github.com/warp/library-engine/factory"
	"github.com/warp/library-engine/library"
	"github.com/warp/library-engine/logger"
	"github.com/warp/library-engine/payment"
	"github.com/warp/library-engine/ratelimit"
	"github.com/warp/library-engine/store/sqlite"
)

// Per-IP limit on routes that reach the payment gateway: 10/min, burst 5.
const (
	paymentRoutesRPS   = 10.0 / 60
	paymentRoutesBurst = 5
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Environment: cfg.Environment,
		Level:       logger.ParseLevel(cfg.LogLevel),
	})
	slog.SetDefault(log)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Loan policy
	policy := library.DefaultLoanPolicy()
	if cfg.PolicyPath != "" {
		policy, err = factory.NewPolicyFactory().LoadFile(cfg.PolicyPath)
		if err != nil {
			return fmt.Errorf("failed to load loan policy: %w", err)
		}
		log.Info("loan policy loaded", slog.String("path", cfg.PolicyPath))
	}
	log.Info("loan policy",
		slog.Int("loan_days", policy.LoanDays),
		slog.Int("borrow_limit", policy.BorrowLimit),
		slog.String("fee_cap", policy.Fees.Cap.StringFixed(2)),
	)

	svc := library.NewService(store, library.WithPolicy(policy), library.WithLogger(log))
	gateway := payment.NewLimited(payment.NewSandbox(), cfg.GatewayRPS, cfg.GatewayTimeout)

	if cfg.SeedSample {
		if _, err := api.LoadSampleCatalog(context.Background(), svc, log); err != nil {
			return fmt.Errorf("failed to load sample catalog: %w", err)
		}
	}

	// Create router
	limiter := ratelimit.New(paymentRoutesRPS, paymentRoutesBurst)
	handler := api.NewHandler(svc, gateway, log)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins:    cfg.CORSOrigins,
		PaymentLimiter: limiter,
		RequestLog:     cfg.Environment != "production",
	})

	scheduler := api.NewOverdueScheduler(svc, log)
	scheduler.Limiter = limiter
	scheduler.CheckInterval = cfg.OverdueInterval
	scheduler.Enabled = cfg.OverdueInterval > 0
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GatewayTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.Int("port", cfg.Port),
			slog.String("db", cfg.DBPath),
			slog.String("env", cfg.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", slog.String("signal", sig.String()))
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
