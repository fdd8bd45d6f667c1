/*
errors.go - Error types for the library policy engine

PURPOSE:
  All policy outcomes in one place. Every expected failure is a
  *PolicyError that carries the message shown to the patron and unwraps
  to one of the sentinels below, so callers branch with errors.Is.

ERROR CATEGORIES:
  1. Validation      - malformed title/author/ISBN/copies/patron ID
  2. Not found       - unknown book, no open loan for the patron
  3. Policy          - no copies left, borrow limit, duplicate ISBN
  4. Persistence     - a store write failed (Step says which one)
  5. Gateway         - the payment gateway failed or declined

USAGE:
  _, err := svc.Borrow(ctx, patronID, bookID)
  switch {
  case errors.Is(err, library.ErrUnavailable):
      ...
  case library.IsPersistence(err):
      ...
  }

SEE ALSO:
  - api/handlers.go: Maps categories to HTTP status codes
*/
package library

import (
	"errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidPatron = errors.New("invalid patron ID")
	ErrInvalidTitle  = errors.New("invalid title")
	ErrInvalidAuthor = errors.New("invalid author")
	ErrInvalidISBN   = errors.New("invalid ISBN")
	ErrInvalidCopies = errors.New("invalid total copies")

	ErrBookNotFound = errors.New("book not found")
	ErrNotBorrowed  = errors.New("book not borrowed by patron")

	ErrDuplicateISBN = errors.New("duplicate ISBN")
	ErrUnavailable   = errors.New("no copies available")
	ErrLimitExceeded = errors.New("borrow limit exceeded")

	// ErrPersistence is returned when a store write (or read) fails.
	ErrPersistence = errors.New("database error")

	ErrFeeUnavailable       = errors.New("late fee unavailable")
	ErrNoFeesDue            = errors.New("no late fees due")
	ErrInvalidTransactionID = errors.New("invalid transaction ID")
	ErrAmountNotPositive    = errors.New("refund amount not positive")
	ErrAmountExceedsMaximum = errors.New("refund amount exceeds maximum")

	// ErrGateway is returned when the gateway itself failed (error or panic).
	ErrGateway = errors.New("payment gateway error")

	// ErrDeclined is returned when the gateway answered but refused.
	ErrDeclined = errors.New("payment gateway declined")
)

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// Step identifies which store write failed inside a multi-write operation.
type Step string

const (
	StepInsertBook         Step = "insert_book"
	StepCreateRecord       Step = "create_borrow_record"
	StepCloseRecord        Step = "close_borrow_record"
	StepUpdateAvailability Step = "update_availability"
	StepLookup             Step = "lookup"
)

// PolicyError is the failure half of every public operation.
// Error() is the patron-facing message; Unwrap() yields the sentinel.
type PolicyError struct {
	Err     error
	Message string
	Step    Step  // set for persistence failures
	Cause   error // underlying store or gateway error, if any
}

func (e *PolicyError) Error() string { return e.Message }

func (e *PolicyError) Unwrap() error { return e.Err }

func fail(sentinel error, message string) *PolicyError {
	return &PolicyError{Err: sentinel, Message: message}
}

func persistenceFailure(step Step, message string, cause error) *PolicyError {
	return &PolicyError{Err: ErrPersistence, Message: message, Step: step, Cause: cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true for malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPatron) ||
		errors.Is(err, ErrInvalidTitle) ||
		errors.Is(err, ErrInvalidAuthor) ||
		errors.Is(err, ErrInvalidISBN) ||
		errors.Is(err, ErrInvalidCopies) ||
		errors.Is(err, ErrInvalidTransactionID) ||
		errors.Is(err, ErrAmountNotPositive) ||
		errors.Is(err, ErrAmountExceedsMaximum)
}

// IsNotFound returns true if the error indicates a missing book or loan.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrNotBorrowed)
}

// IsPolicyViolation returns true when the request was well-formed but
// breaks a lending rule.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrDuplicateISBN) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrNoFeesDue)
}

func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrFeeUnavailable)
}

// IsGatewayFailure returns true for both gateway faults and declines.
func IsGatewayFailure(err error) bool {
	return errors.Is(err, ErrGateway) || errors.Is(err, ErrDeclined)
}
