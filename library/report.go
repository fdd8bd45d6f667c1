package library

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORTING
// =============================================================================

// PatronStatus reports the patron's open loans with their fees, the total
// outstanding fee and the closed-loan history. A malformed patron ID is
// reported in PatronStatus.Error, not as an error.
func (s *Service) PatronStatus(ctx context.Context, patronID string) (PatronStatus, error) {
	if !ValidPatronID(patronID) {
		return PatronStatus{
			Error:             msgInvalidPatron,
			CurrentlyBorrowed: []LoanStatus{},
			TotalLateFees:     decimal.Zero,
			History:           []BorrowRecord{},
		}, nil
	}

	open, err := s.store.ListOpenRecords(ctx, patronID)
	if err != nil {
		return PatronStatus{}, persistenceFailure(StepLookup, "Database error occurred while loading borrowed books.", err)
	}

	total := decimal.Zero
	loans := make([]LoanStatus, 0, len(open))
	for _, r := range open {
		fee := s.feeFor(r.DueDate)
		total = total.Add(fee.Amount)
		loans = append(loans, LoanStatus{Record: r, Fee: fee})
	}

	history, err := s.store.ListHistory(ctx, patronID)
	if err != nil {
		return PatronStatus{}, persistenceFailure(StepLookup, "Database error occurred while loading borrowing history.", err)
	}
	if history == nil {
		history = []BorrowRecord{}
	}

	return PatronStatus{
		PatronID:          patronID,
		CurrentlyBorrowed: loans,
		TotalLateFees:     total.Round(2),
		BorrowedCount:     len(open),
		History:           history,
	}, nil
}

// OverdueLoans lists every open loan, across all patrons, that is past due.
func (s *Service) OverdueLoans(ctx context.Context) ([]OverdueLoan, error) {
	open, err := s.store.ListAllOpenRecords(ctx)
	if err != nil {
		return nil, persistenceFailure(StepLookup, "Database error occurred while loading open loans.", err)
	}

	overdue := []OverdueLoan{}
	for _, r := range open {
		fee := s.feeFor(r.DueDate)
		if fee.Status == FeeOverdue {
			overdue = append(overdue, OverdueLoan{Record: r, Fee: fee})
		}
	}
	return overdue, nil
}
