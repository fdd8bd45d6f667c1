/*
Package payment provides library.PaymentGateway implementations.

PURPOSE:
  The policy engine only knows the PaymentGateway interface. This package
  supplies the gateways the server actually runs with:

  Sandbox: In-process processor that keeps its own ledger of charges
           and refunds. Used for development, demos and tests.
  Limited: Wrapper that bounds every call with a timeout and a shared
           rate limit before delegating to another gateway.

SANDBOX RULES:
  Charge:  amount must be positive and at most MaxCharge, the patron ID
           non-empty. Success returns "txn_<nanoid>".
  Refund:  the transaction must exist, and the total refunded for it may
           not exceed the original charge.
  A rejected call is a decline (Success=false), not an error.

SEE ALSO:
  - library/payment.go: PayLateFees / RefundLateFee
*/
package payment

import (
	"context"
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/shopspring/decimal"
	"github.com/warp/library-engine/library"
)

// MaxCharge is the largest single charge the sandbox accepts.
var MaxCharge = decimal.NewFromInt(1000)

// Charge is a processed payment held by the Sandbox.
type Charge struct {
	TransactionID string
	PatronID      string
	Amount        decimal.Decimal
	Description   string
	Refunded      decimal.Decimal
}

// Sandbox is an in-memory payment processor.
type Sandbox struct {
	mu      sync.Mutex
	charges map[string]*Charge
}

func NewSandbox() *Sandbox {
	return &Sandbox{charges: make(map[string]*Charge)}
}

// ProcessPayment records a charge and returns its transaction ID.
func (s *Sandbox) ProcessPayment(ctx context.Context, patronID string, amount decimal.Decimal, description string) (library.PaymentOutcome, error) {
	if err := ctx.Err(); err != nil {
		return library.PaymentOutcome{}, err
	}
	if patronID == "" {
		return library.PaymentOutcome{Message: "Invalid patron ID"}, nil
	}
	if !amount.IsPositive() {
		return library.PaymentOutcome{Message: "Invalid amount: must be greater than 0"}, nil
	}
	if amount.GreaterThan(MaxCharge) {
		return library.PaymentOutcome{Message: "Payment declined: amount exceeds limit"}, nil
	}

	id, err := gonanoid.New()
	if err != nil {
		return library.PaymentOutcome{}, fmt.Errorf("generate transaction id: %w", err)
	}
	txID := library.TransactionPrefix + id

	s.mu.Lock()
	s.charges[txID] = &Charge{
		TransactionID: txID,
		PatronID:      patronID,
		Amount:        amount,
		Description:   description,
		Refunded:      decimal.Zero,
	}
	s.mu.Unlock()

	return library.PaymentOutcome{
		Success:       true,
		TransactionID: txID,
		Message:       fmt.Sprintf("Payment of $%s processed successfully", amount.StringFixed(2)),
	}, nil
}

// RefundPayment refunds part or all of an earlier charge.
func (s *Sandbox) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (library.RefundOutcome, error) {
	if err := ctx.Err(); err != nil {
		return library.RefundOutcome{}, err
	}
	if !amount.IsPositive() {
		return library.RefundOutcome{Message: "Invalid refund amount"}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	charge, ok := s.charges[transactionID]
	if !ok {
		return library.RefundOutcome{Message: "Transaction not found"}, nil
	}
	if charge.Refunded.Add(amount).GreaterThan(charge.Amount) {
		return library.RefundOutcome{Message: "Refund amount exceeds original payment"}, nil
	}

	refundID, err := gonanoid.New()
	if err != nil {
		return library.RefundOutcome{}, fmt.Errorf("generate refund id: %w", err)
	}
	charge.Refunded = charge.Refunded.Add(amount)

	return library.RefundOutcome{
		Success: true,
		Message: fmt.Sprintf("Refund of $%s processed successfully. Refund ID: refund_%s", amount.StringFixed(2), refundID),
	}, nil
}

// Charge returns a copy of the charge with transactionID, if any.
func (s *Sandbox) Charge(transactionID string) (Charge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges[transactionID]
	if !ok {
		return Charge{}, false
	}
	return *c, true
}
