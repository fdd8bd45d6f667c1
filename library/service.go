package library

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// =============================================================================
// SERVICE - Entry point for every policy operation
// =============================================================================

// Service evaluates library policy against an injected Store.
// It holds no state of its own and is safe for concurrent use if the
// Store is.
type Service struct {
	store  Store
	policy LoanPolicy
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPolicy replaces DefaultLoanPolicy.
func WithPolicy(p LoanPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a policy service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: DefaultLoanPolicy(),
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the loan policy in force.
func (s *Service) Policy() LoanPolicy { return s.policy }

// openRecord finds the patron's open loan for bookID among their open
// loans. Returns nil, nil if there is none.
func (s *Service) openRecord(ctx context.Context, patronID string, bookID int64) (*BorrowRecord, error) {
	records, err := s.store.ListOpenRecords(ctx, patronID)
	if err != nil {
		return nil, persistenceFailure(StepLookup, "Database error occurred while looking up borrow records.", err)
	}
	for i := range records {
		if records[i].BookID == bookID {
			return &records[i], nil
		}
	}
	return nil, nil
}

// findBook wraps FindBookByID with the engine's not-found and
// persistence errors.
func (s *Service) findBook(ctx context.Context, bookID int64) (*Book, error) {
	book, err := s.store.FindBookByID(ctx, bookID)
	if err != nil {
		return nil, persistenceFailure(StepLookup, "Database error occurred while looking up the book.", err)
	}
	if book == nil {
		return nil, fail(ErrBookNotFound, "Book not found.")
	}
	return book, nil
}

// withWrites runs fn inside a transaction when the store supports one,
// otherwise directly against the store.
func (s *Service) withWrites(ctx context.Context, fn func(Store) error) error {
	if tx, ok := s.store.(TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(s.store)
}
