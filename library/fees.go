/*
fees.go - Late fee schedule and loan policy

PURPOSE:
  Computes the late fee for an open loan from its due date and "now".
  The computation is a pure function of the FeeSchedule; the only store
  access is finding the patron's open loan.

FEE SCHEDULE (defaults):
  Days 1-7 overdue:   $0.50 per day
  Day 8 onwards:      $1.00 per day
  Cap:                $15.00 per book

  Day 0 -> $0.00, day 1 -> $0.50, day 7 -> $3.50, day 8 -> $4.50,
  day 18 -> $14.50, day 19 and later -> $15.00.

DAYS OVERDUE:
  Whole days elapsed since the due date, rounded down. A loan that is
  due later today, or was due less than 24h ago, is not overdue.

SEE ALSO:
  - factory/policy.go: Loads a LoanPolicy from JSON
  - payment.go: Refund cap reuses FeeSchedule.Cap
*/
package library

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LOAN POLICY
// =============================================================================

// LoanPolicy holds the lending rules the engine enforces.
type LoanPolicy struct {
	// LoanDays is the loan period; due date = borrow date + LoanDays.
	LoanDays int

	// BorrowLimit is compared with a strict greater-than: a patron holding
	// exactly BorrowLimit open loans may still borrow one more.
	BorrowLimit int

	Fees FeeSchedule
}

// FeeSchedule is a two-tier daily rate with a per-book cap.
type FeeSchedule struct {
	GraceDays int
	GraceRate decimal.Decimal
	DailyRate decimal.Decimal
	Cap       decimal.Decimal
}

// DefaultLoanPolicy returns the library's standard rules.
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{
		LoanDays:    14,
		BorrowLimit: 5,
		Fees:        DefaultFeeSchedule(),
	}
}

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		GraceDays: 7,
		GraceRate: decimal.RequireFromString("0.50"),
		DailyRate: decimal.RequireFromString("1.00"),
		Cap:       decimal.RequireFromString("15.00"),
	}
}

// DueDate returns the due date for a loan starting at borrowed.
func (p LoanPolicy) DueDate(borrowed time.Time) time.Time {
	return borrowed.AddDate(0, 0, p.LoanDays)
}

// Fee returns the fee for the given number of days overdue, capped and
// rounded to cents. Non-positive days cost nothing.
func (s FeeSchedule) Fee(daysOverdue int) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}

	var fee decimal.Decimal
	if daysOverdue <= s.GraceDays {
		fee = s.GraceRate.Mul(decimal.NewFromInt(int64(daysOverdue)))
	} else {
		grace := s.GraceRate.Mul(decimal.NewFromInt(int64(s.GraceDays)))
		extra := s.DailyRate.Mul(decimal.NewFromInt(int64(daysOverdue - s.GraceDays)))
		fee = grace.Add(extra)
	}

	if fee.GreaterThan(s.Cap) {
		fee = s.Cap
	}
	return fee.Round(2)
}

// DaysOverdue returns the whole days between due and now, rounded down.
func DaysOverdue(due, now time.Time) int {
	d := now.Sub(due)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// =============================================================================
// FEE POLICY
// =============================================================================

// CalculateLateFee computes the fee for the patron's open loan of bookID.
// Invalid patron, unknown book and no open loan are reported through
// FeeResult.Status; the error is only set when the store fails.
func (s *Service) CalculateLateFee(ctx context.Context, patronID string, bookID int64) (FeeResult, error) {
	if !ValidPatronID(patronID) {
		return zeroFee(FeeInvalidPatron), nil
	}

	book, err := s.store.FindBookByID(ctx, bookID)
	if err != nil {
		return FeeResult{}, persistenceFailure(StepLookup, "Database error occurred while looking up the book.", err)
	}
	if book == nil {
		return zeroFee(FeeBookNotFound), nil
	}

	record, err := s.openRecord(ctx, patronID, bookID)
	if err != nil {
		return FeeResult{}, err
	}
	if record == nil {
		return zeroFee(FeeNotBorrowed), nil
	}

	return s.feeFor(record.DueDate), nil
}

// feeFor applies the schedule to a due date as of the service clock.
func (s *Service) feeFor(due time.Time) FeeResult {
	days := DaysOverdue(due, s.now())
	if days <= 0 {
		return zeroFee(FeeNotOverdue)
	}
	return FeeResult{
		Amount:      s.policy.Fees.Fee(days),
		DaysOverdue: days,
		Status:      FeeOverdue,
	}
}
