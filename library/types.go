/*
Package library provides the borrowing and late-fee policy engine.

PURPOSE:
  This package contains every policy decision of the library system:
  which books may be catalogued, who may borrow what and for how long,
  how much an overdue loan costs, and how fee payments and refunds are
  reconciled against an external payment gateway.

KEY CONCEPTS IN THIS FILE (types.go):
  - Book: A catalogued title with a pool of copies
  - BorrowRecord: One loan of one book to one patron (open until returned)
  - FeeResult: Derived late fee for an open loan, never persisted
  - Outcomes/Confirmations: Structured results handed back to callers

DESIGN PRINCIPLES:
  1. Stateless: The engine owns no mutable state. Books and loans live in
     the Store collaborator, the gateway is passed in by the caller.
  2. Precision: Money uses decimal.Decimal, rounded to cents.
  3. Structured results: Expected failures are *PolicyError values with a
     human-readable message, never panics.

USAGE:
  svc := library.NewService(store)
  conf, err := svc.Borrow(ctx, "123456", bookID)
  if errors.Is(err, library.ErrLimitExceeded) {
      // tell the patron
  }

SEE ALSO:
  - store.go: Storage collaborator interface
  - fees.go: Late fee schedule
  - payment.go: Gateway reconciliation
*/
package library

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOG
// =============================================================================

// Book is a catalogued title. AvailableCopies never exceeds TotalCopies
// and never goes negative.
type Book struct {
	ID              int64
	Title           string
	Author          string
	ISBN            string
	TotalCopies     int
	AvailableCopies int
}

// NewBook is the input to AddBook.
type NewBook struct {
	Title       string `json:"title" validate:"required,max=200"`
	Author      string `json:"author" validate:"required,max=100"`
	ISBN        string `json:"isbn" validate:"len=13,number"`
	TotalCopies int    `json:"total_copies" validate:"gt=0"`
}

// =============================================================================
// LOANS
// =============================================================================

// BorrowRecord is a single loan. It is open while ReturnDate is nil.
// Title and Author are filled in by the store for reporting.
type BorrowRecord struct {
	ID         int64
	PatronID   string
	BookID     int64
	Title      string
	Author     string
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate *time.Time
}

// IsOpen reports whether the loan is still outstanding.
func (r BorrowRecord) IsOpen() bool { return r.ReturnDate == nil }

// =============================================================================
// FEES
// =============================================================================

type FeeStatus string

const (
	FeeInvalidPatron FeeStatus = "Invalid patron ID"
	FeeBookNotFound  FeeStatus = "Book not found"
	FeeNotBorrowed   FeeStatus = "Book not borrowed by this patron"
	FeeNotOverdue    FeeStatus = "Not overdue"
	FeeOverdue       FeeStatus = "Overdue"
)

// FeeResult is the late fee for one (patron, book) loan as of "now".
type FeeResult struct {
	Amount      decimal.Decimal
	DaysOverdue int
	Status      FeeStatus
}

func zeroFee(status FeeStatus) FeeResult {
	return FeeResult{Amount: decimal.Zero, Status: status}
}

// =============================================================================
// REPORTING
// =============================================================================

// LoanStatus is an open loan together with its current fee.
type LoanStatus struct {
	Record BorrowRecord
	Fee    FeeResult
}

// PatronStatus aggregates a patron's open loans, fees and history.
// Error is set (and everything else empty) when the patron ID is malformed.
type PatronStatus struct {
	PatronID          string
	Error             string
	CurrentlyBorrowed []LoanStatus
	TotalLateFees     decimal.Decimal
	BorrowedCount     int
	History           []BorrowRecord
}

// OverdueLoan is an open loan past its due date.
type OverdueLoan struct {
	Record BorrowRecord
	Fee    FeeResult
}

// =============================================================================
// CONFIRMATIONS
// =============================================================================

type Confirmation struct {
	Message string
}

type BorrowConfirmation struct {
	Message string
	Book    Book
	DueDate time.Time
}

type ReturnConfirmation struct {
	Message string
	Book    Book
	LateFee FeeResult
}

type PaymentConfirmation struct {
	Message       string
	TransactionID string
	Amount        decimal.Decimal
}

type RefundConfirmation struct {
	Message string
}

// =============================================================================
// GATEWAY OUTCOMES
// =============================================================================

// PaymentOutcome is what a gateway reports for a charge. TransactionID is
// only set on success and has the form txn_<opaque>.
type PaymentOutcome struct {
	Success       bool
	TransactionID string
	Message       string
}

type RefundOutcome struct {
	Success bool
	Message string
}
