/*
borrow.go - Borrow and return state transitions

PURPOSE:
  Moves a (patron, book) pair between NotBorrowed -> Borrowed -> Returned
  and keeps the book's available copies in step.

BORROW CHECKS (first failure wins):
  1. Patron ID is six digits
  2. Book exists
  3. At least one copy is available
  4. Open loans > BorrowLimit is refused (strict greater-than, so a
     patron with exactly BorrowLimit open loans can take one more)

WRITES:
  Each transition is two store writes (record + availability). With a
  TxStore they commit together; otherwise they run in order and the
  error names the write that failed (Step on *PolicyError).

SEE ALSO:
  - fees.go: Fee reported on return
  - store.go: TxStore
*/
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	msgCreateRecordFailed = "Database error occurred while creating borrow record."
	msgRecordReturnFailed = "Database error occurred while recording return."
	msgAvailabilityFailed = "Database error occurred while updating book availability."
)

// Borrow lends one copy of bookID to patronID.
func (s *Service) Borrow(ctx context.Context, patronID string, bookID int64) (BorrowConfirmation, error) {
	if err := checkPatron(patronID); err != nil {
		return BorrowConfirmation{}, err
	}

	book, err := s.findBook(ctx, bookID)
	if err != nil {
		return BorrowConfirmation{}, err
	}

	if book.AvailableCopies <= 0 {
		return BorrowConfirmation{}, fail(ErrUnavailable, "This book is currently not available.")
	}

	count, err := s.store.CountOpenRecords(ctx, patronID)
	if err != nil {
		return BorrowConfirmation{}, persistenceFailure(StepLookup, "Database error occurred while counting borrowed books.", err)
	}
	if count > s.policy.BorrowLimit {
		s.logger.Debug("borrow limit reached", slog.String("patron_id", patronID), slog.Int("open_loans", count))
		return BorrowConfirmation{}, fail(ErrLimitExceeded,
			fmt.Sprintf("You have reached the maximum borrowing limit of %d books.", s.policy.BorrowLimit))
	}

	borrowed := s.now()
	due := s.policy.DueDate(borrowed)

	err = s.withWrites(ctx, func(st Store) error {
		if err := st.InsertBorrowRecord(ctx, patronID, bookID, borrowed, due); err != nil {
			return persistenceFailure(StepCreateRecord, msgCreateRecordFailed, err)
		}
		if err := st.AdjustAvailability(ctx, bookID, -1); err != nil {
			return persistenceFailure(StepUpdateAvailability, msgAvailabilityFailed, err)
		}
		return nil
	})
	if err != nil {
		err = asPersistence(err, StepCreateRecord, msgCreateRecordFailed)
		s.logger.Warn("borrow write failed",
			slog.String("patron_id", patronID), slog.Int64("book_id", bookID), slog.Any("error", err))
		return BorrowConfirmation{}, err
	}

	book.AvailableCopies--
	return BorrowConfirmation{
		Message: fmt.Sprintf(`Successfully borrowed "%s". Due date: %s.`, book.Title, due.Format("2006-01-02")),
		Book:    *book,
		DueDate: due,
	}, nil
}

// Return closes the patron's open loan of bookID and reports any late fee.
// The fee is computed from the loan's due date as of now.
func (s *Service) Return(ctx context.Context, patronID string, bookID int64) (ReturnConfirmation, error) {
	if err := checkPatron(patronID); err != nil {
		return ReturnConfirmation{}, err
	}

	book, err := s.findBook(ctx, bookID)
	if err != nil {
		return ReturnConfirmation{}, err
	}

	record, err := s.openRecord(ctx, patronID, bookID)
	if err != nil {
		return ReturnConfirmation{}, err
	}
	if record == nil {
		return ReturnConfirmation{}, fail(ErrNotBorrowed, "You have not borrowed this book.")
	}

	returned := s.now()
	err = s.withWrites(ctx, func(st Store) error {
		if err := st.CloseBorrowRecord(ctx, patronID, bookID, returned); err != nil {
			return persistenceFailure(StepCloseRecord, msgRecordReturnFailed, err)
		}
		if err := st.AdjustAvailability(ctx, bookID, 1); err != nil {
			return persistenceFailure(StepUpdateAvailability, msgAvailabilityFailed, err)
		}
		return nil
	})
	if err != nil {
		err = asPersistence(err, StepCloseRecord, msgRecordReturnFailed)
		s.logger.Warn("return write failed",
			slog.String("patron_id", patronID), slog.Int64("book_id", bookID), slog.Any("error", err))
		return ReturnConfirmation{}, err
	}

	fee := s.feeFor(record.DueDate)
	book.AvailableCopies++

	msg := fmt.Sprintf(`Book "%s" returned successfully. No late fees.`, book.Title)
	if fee.Amount.IsPositive() {
		msg = fmt.Sprintf(`Book "%s" returned successfully. Late fee: $%s`, book.Title, fee.Amount.StringFixed(2))
	}
	return ReturnConfirmation{Message: msg, Book: *book, LateFee: fee}, nil
}

// asPersistence keeps a *PolicyError as is and wraps anything else (a
// failed commit, say) as a persistence failure of step.
func asPersistence(err error, step Step, message string) error {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe
	}
	return persistenceFailure(step, message, err)
}
