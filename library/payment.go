/*
payment.go - Late fee payment and refund reconciliation

PURPOSE:
  Charges a patron's late fee, or refunds a previous charge, through an
  external PaymentGateway supplied by the caller. The engine decides
  whether the gateway may be called at all and translates whatever the
  gateway does into a PolicyError or a confirmation.

GATEWAY IS NOT CALLED WHEN:
  Pay:    patron ID invalid, fee <= 0, book not found
  Refund: transaction ID missing the "txn_" prefix, amount <= 0,
          amount > FeeSchedule.Cap (exactly the cap is allowed)

FAULT VS DECLINE:
  Fault:   gateway returned an error or panicked -> ErrGateway
  Decline: gateway answered Success=false      -> ErrDeclined
  A fault is converted exactly once and never retried here. Timeouts and
  rate limits belong to the gateway implementation (see payment.Limited).

SEE ALSO:
  - payment/sandbox.go: Sandbox gateway
  - payment/limited.go: Timeout and rate-limit wrapper
*/
package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionPrefix starts every gateway transaction ID.
const TransactionPrefix = "txn_"

// PaymentGateway is the external payment processor.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, patronID string, amount decimal.Decimal, description string) (PaymentOutcome, error)
	RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundOutcome, error)
}

// =============================================================================
// PAY
// =============================================================================

// PayLateFees charges the current late fee for the patron's loan of bookID.
func (s *Service) PayLateFees(ctx context.Context, patronID string, bookID int64, gateway PaymentGateway) (PaymentConfirmation, error) {
	if err := checkPatron(patronID); err != nil {
		return PaymentConfirmation{}, err
	}

	fee, err := s.CalculateLateFee(ctx, patronID, bookID)
	if err != nil {
		return PaymentConfirmation{}, &PolicyError{
			Err:     ErrFeeUnavailable,
			Message: "Unable to calculate late fees.",
			Step:    StepLookup,
			Cause:   err,
		}
	}

	if !fee.Amount.IsPositive() {
		return PaymentConfirmation{}, fail(ErrNoFeesDue, "No late fees to pay for this book.")
	}

	book, err := s.findBook(ctx, bookID)
	if err != nil {
		return PaymentConfirmation{}, err
	}

	var outcome PaymentOutcome
	fault := guard(func() (err error) {
		outcome, err = gateway.ProcessPayment(ctx, patronID, fee.Amount, fmt.Sprintf("Late fees for '%s'", book.Title))
		return err
	})
	if fault != nil {
		s.logger.Error("payment gateway fault",
			slog.String("patron_id", patronID), slog.Int64("book_id", bookID), slog.Any("error", fault))
		return PaymentConfirmation{}, &PolicyError{
			Err:     ErrGateway,
			Message: "Payment processing error: " + fault.Error(),
			Cause:   fault,
		}
	}

	if !outcome.Success {
		s.logger.Info("payment declined", slog.String("patron_id", patronID), slog.String("reason", outcome.Message))
		return PaymentConfirmation{}, fail(ErrDeclined, "Payment failed: "+outcome.Message)
	}

	s.logger.Info("late fee paid",
		slog.String("patron_id", patronID),
		slog.Int64("book_id", bookID),
		slog.String("amount", fee.Amount.StringFixed(2)),
		slog.String("transaction_id", outcome.TransactionID))

	return PaymentConfirmation{
		Message:       "Payment successful! " + outcome.Message,
		TransactionID: outcome.TransactionID,
		Amount:        fee.Amount,
	}, nil
}

// =============================================================================
// REFUND
// =============================================================================

// RefundLateFee refunds amount of a previous late fee charge.
func (s *Service) RefundLateFee(ctx context.Context, transactionID string, amount decimal.Decimal, gateway PaymentGateway) (RefundConfirmation, error) {
	if transactionID == "" || !strings.HasPrefix(transactionID, TransactionPrefix) {
		return RefundConfirmation{}, fail(ErrInvalidTransactionID, "Invalid transaction ID.")
	}
	if !amount.IsPositive() {
		return RefundConfirmation{}, fail(ErrAmountNotPositive, "Refund amount must be greater than 0.")
	}
	if amount.GreaterThan(s.policy.Fees.Cap) {
		return RefundConfirmation{}, fail(ErrAmountExceedsMaximum, "Refund amount exceeds maximum late fee.")
	}

	var outcome RefundOutcome
	fault := guard(func() (err error) {
		outcome, err = gateway.RefundPayment(ctx, transactionID, amount)
		return err
	})
	if fault != nil {
		s.logger.Error("refund gateway fault", slog.String("transaction_id", transactionID), slog.Any("error", fault))
		return RefundConfirmation{}, &PolicyError{
			Err:     ErrGateway,
			Message: "Refund processing error: " + fault.Error(),
			Cause:   fault,
		}
	}

	if !outcome.Success {
		return RefundConfirmation{}, fail(ErrDeclined, "Refund failed: "+outcome.Message)
	}

	s.logger.Info("late fee refunded",
		slog.String("transaction_id", transactionID),
		slog.String("amount", amount.StringFixed(2)))
	return RefundConfirmation{Message: outcome.Message}, nil
}

// guard runs a gateway call and turns a panic into an error.
func guard(call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return call()
}
