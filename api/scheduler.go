/*
scheduler.go - Periodic overdue sweep

PURPOSE:
  Periodically lists every overdue loan and logs it with its current
  late fee, so operators see fees accrue without polling the API.
  Also prunes idle per-IP rate limiter entries.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Read-only: never modifies loans or fees
  - A failed sweep is logged and retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewOverdueScheduler(svc, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ListOverdue endpoint (same report on demand)
  - library/report.go: OverdueLoans
*/
package api

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/library-engine/library"
	"github.com/warp/library-engine/ratelimit"
)

// limiterIdleTTL is how long an IP may stay quiet before its limiter is dropped.
const limiterIdleTTL = 10 * time.Minute

// SweepResult summarises one overdue sweep.
type SweepResult struct {
	Overdue   int
	TotalFees decimal.Decimal
	Pruned    int
}

// OverdueScheduler periodically reports overdue loans.
type OverdueScheduler struct {
	Service       *library.Service
	Limiter       *ratelimit.KeyedRateLimiter // optional
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueScheduler creates a new scheduler.
func NewOverdueScheduler(svc *library.Service, logger *slog.Logger) *OverdueScheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OverdueScheduler{
		Service:       svc,
		Logger:        logger.With(slog.String("component", "overdue_scheduler")),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a no-op.
func (s *OverdueScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.Logger.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("scheduler started", slog.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("scheduler stopped")
	}
}

func (s *OverdueScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.sweep(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *OverdueScheduler) RunNow(ctx context.Context) (SweepResult, error) {
	return s.sweep(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (s *OverdueScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(s.CheckInterval)
}

func (s *OverdueScheduler) sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{TotalFees: decimal.Zero}

	if s.Limiter != nil {
		result.Pruned = s.Limiter.Prune(limiterIdleTTL)
	}

	loans, err := s.Service.OverdueLoans(ctx)
	if err != nil {
		s.Logger.Error("overdue sweep failed", slog.Any("error", err))
		return result, err
	}

	for _, loan := range loans {
		result.TotalFees = result.TotalFees.Add(loan.Fee.Amount)
		s.Logger.Info("loan overdue",
			slog.String("patron_id", loan.Record.PatronID),
			slog.Int64("book_id", loan.Record.BookID),
			slog.String("title", loan.Record.Title),
			slog.Int("days_overdue", loan.Fee.DaysOverdue),
			slog.String("fee", loan.Fee.Amount.StringFixed(2)),
		)
	}
	result.Overdue = len(loans)

	if result.Overdue > 0 || result.Pruned > 0 {
		s.Logger.Info("overdue sweep completed",
			slog.Int("overdue", result.Overdue),
			slog.String("total_fees", result.TotalFees.StringFixed(2)),
			slog.Int("limiters_pruned", result.Pruned),
		)
	}
	return result, nil
}
