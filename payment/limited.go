package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/library-engine/library"
	"golang.org/x/time/rate"
)

// Limited bounds calls to another gateway: at most rps calls per second
// (shared across charges and refunds) and timeout per call, including
// the time spent waiting for the limiter.
type Limited struct {
	next    library.PaymentGateway
	limiter *rate.Limiter
	timeout time.Duration
}

// NewLimited wraps next. A zero timeout means no per-call deadline; a
// non-positive rps means no rate limit.
func NewLimited(next library.PaymentGateway, rps float64, timeout time.Duration) *Limited {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

func (l *Limited) ProcessPayment(ctx context.Context, patronID string, amount decimal.Decimal, description string) (library.PaymentOutcome, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	if err := l.limiter.Wait(ctx); err != nil {
		return library.PaymentOutcome{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.ProcessPayment(ctx, patronID, amount, description)
}

func (l *Limited) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (library.RefundOutcome, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	if err := l.limiter.Wait(ctx); err != nil {
		return library.RefundOutcome{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.RefundPayment(ctx, transactionID, amount)
}

func (l *Limited) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}
