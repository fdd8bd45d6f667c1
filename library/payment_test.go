package library_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/library-engine/library"
)

// =============================================================================
// GATEWAY DOUBLES
// =============================================================================

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ProcessPayment(ctx context.Context, patronID string, amount decimal.Decimal, description string) (library.PaymentOutcome, error) {
	args := m.Called(ctx, patronID, amount, description)
	return args.Get(0).(library.PaymentOutcome), args.Error(1)
}

func (m *mockGateway) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (library.RefundOutcome, error) {
	args := m.Called(ctx, transactionID, amount)
	return args.Get(0).(library.RefundOutcome), args.Error(1)
}

// panickingGateway blows up instead of answering.
type panickingGateway struct{}

func (panickingGateway) ProcessPayment(context.Context, string, decimal.Decimal, string) (library.PaymentOutcome, error) {
	panic("connection reset by peer")
}

func (panickingGateway) RefundPayment(context.Context, string, decimal.Decimal) (library.RefundOutcome, error) {
	panic("connection reset by peer")
}

func amountEq(want string) any {
	w := decimal.RequireFromString(want)
	return mock.MatchedBy(func(got decimal.Decimal) bool { return got.Equal(w) })
}

func assertGatewayUntouched(t *testing.T, gw *mockGateway) {
	t.Helper()
	gw.AssertNotCalled(t, "ProcessPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything)
}

// overdueLoan sets up patron 123456 holding "Test Book" daysLate days past due.
func overdueLoan(t *testing.T, daysLate int) (*library.Service, int64) {
	t.Helper()
	svc, st, clock := newTestService(t)
	bookID := addBook(t, svc, st, "Test Book", "1234567890123", 1)
	_, err := svc.Borrow(context.Background(), "123456", bookID)
	require.NoError(t, err)
	clock.AdvanceDays(14 + daysLate)
	return svc, bookID
}

// =============================================================================
// PAY
// =============================================================================

func TestPayLateFees_Success(t *testing.T) {
	// GIVEN: A loan 8 days overdue ($4.50)
	svc, bookID := overdueLoan(t, 8)
	gw := &mockGateway{}
	gw.On("ProcessPayment", mock.Anything, "123456", amountEq("4.50"), "Late fees for 'Test Book'").
		Return(library.PaymentOutcome{Success: true, TransactionID: "txn_123456", Message: "Payment processed successfully"}, nil).
		Once()

	// WHEN: Paying
	conf, err := svc.PayLateFees(context.Background(), "123456", bookID, gw)

	// THEN: Gateway charged once, confirmation carries the transaction
	require.NoError(t, err)
	assert.Equal(t, "txn_123456", conf.TransactionID)
	assert.Equal(t, "Payment successful! Payment processed successfully", conf.Message)
	assert.Equal(t, "4.50", conf.Amount.StringFixed(2))
	gw.AssertExpectations(t)
}

func TestPayLateFees_Declined(t *testing.T) {
	svc, bookID := overdueLoan(t, 3)
	gw := &mockGateway{}
	gw.On("ProcessPayment", mock.Anything, "123456", amountEq("1.50"), mock.Anything).
		Return(library.PaymentOutcome{Success: false, Message: "Insufficient funds"}, nil)

	_, err := svc.PayLateFees(context.Background(), "123456", bookID, gw)

	require.Error(t, err)
	assert.ErrorIs(t, err, library.ErrDeclined)
	assert.NotErrorIs(t, err, library.ErrGateway)
	assert.Equal(t, "Payment failed: Insufficient funds", err.Error())
	gw.AssertNumberOfCalls(t, "ProcessPayment", 1)
}

func TestPayLateFees_GatewayError(t *testing.T) {
	svc, bookID := overdueLoan(t, 10)
	gw := &mockGateway{}
	gw.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(library.PaymentOutcome{}, errors.New("Network timeout"))

	_, err := svc.PayLateFees(context.Background(), "123456", bookID, gw)

	require.Error(t, err)
	assert.ErrorIs(t, err, library.ErrGateway)
	assert.Equal(t, "Payment processing error: Network timeout", err.Error())
	assert.True(t, library.IsGatewayFailure(err))
}

func TestPayLateFees_GatewayPanic(t *testing.T) {
	svc, bookID := overdueLoan(t, 10)

	var err error
	require.NotPanics(t, func() {
		_, err = svc.PayLateFees(context.Background(), "123456", bookID, panickingGateway{})
	})

	assert.ErrorIs(t, err, library.ErrGateway)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestPayLateFees_GatewayNotInvoked(t *testing.T) {
	t.Run("invalid patron", func(t *testing.T) {
		svc, bookID := overdueLoan(t, 5)
		gw := &mockGateway{}

		_, err := svc.PayLateFees(context.Background(), "12345", bookID, gw)

		assert.ErrorIs(t, err, library.ErrInvalidPatron)
		assert.Contains(t, err.Error(), "Invalid patron ID")
		assertGatewayUntouched(t, gw)
	})

	t.Run("not overdue", func(t *testing.T) {
		svc, bookID := overdueLoan(t, 0)
		gw := &mockGateway{}

		_, err := svc.PayLateFees(context.Background(), "123456", bookID, gw)

		assert.ErrorIs(t, err, library.ErrNoFeesDue)
		assert.Equal(t, "No late fees to pay for this book.", err.Error())
		assertGatewayUntouched(t, gw)
	})

	t.Run("not borrowed", func(t *testing.T) {
		svc, bookID := overdueLoan(t, 5)
		gw := &mockGateway{}

		_, err := svc.PayLateFees(context.Background(), "654321", bookID, gw)

		assert.ErrorIs(t, err, library.ErrNoFeesDue)
		assertGatewayUntouched(t, gw)
	})

	t.Run("book not found", func(t *testing.T) {
		svc, _ := overdueLoan(t, 5)
		gw := &mockGateway{}

		_, err := svc.PayLateFees(context.Background(), "123456", 999, gw)

		require.Error(t, err)
		assertGatewayUntouched(t, gw)
	})
}

func TestPayLateFees_FeeUnavailable(t *testing.T) {
	svc, st, _ := newTestService(t)
	bookID := addBook(t, svc, st, "Test Book", "1234567890123", 1)
	broken := library.NewService(&failingStore{Store: st.Memory, failLists: true})
	gw := &mockGateway{}

	_, err := broken.PayLateFees(context.Background(), "123456", bookID, gw)

	assert.ErrorIs(t, err, library.ErrFeeUnavailable)
	assert.Equal(t, "Unable to calculate late fees.", err.Error())
	assertGatewayUntouched(t, gw)
}

// =============================================================================
// REFUND
// =============================================================================

func TestRefundLateFee_Success(t *testing.T) {
	svc, _, _ := newTestService(t)
	gw := &mockGateway{}
	gw.On("RefundPayment", mock.Anything, "txn_123456", amountEq("5.00")).
		Return(library.RefundOutcome{Success: true, Message: "Refund of $5.00 processed successfully"}, nil).
		Once()

	conf, err := svc.RefundLateFee(context.Background(), "txn_123456", decimal.NewFromInt(5), gw)

	require.NoError(t, err)
	assert.Equal(t, "Refund of $5.00 processed successfully", conf.Message)
	gw.AssertExpectations(t)
}

func TestRefundLateFee_ExactlyCapAccepted(t *testing.T) {
	svc, _, _ := newTestService(t)
	gw := &mockGateway{}
	gw.On("RefundPayment", mock.Anything, "txn_abc", amountEq("15.00")).
		Return(library.RefundOutcome{Success: true, Message: "ok"}, nil)

	_, err := svc.RefundLateFee(context.Background(), "txn_abc", decimal.RequireFromString("15.00"), gw)

	require.NoError(t, err)
	gw.AssertNumberOfCalls(t, "RefundPayment", 1)
}

func TestRefundLateFee_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		txID    string
		amount  string
		wantErr error
		wantMsg string
	}{
		{"empty id", "", "5.00", library.ErrInvalidTransactionID, "Invalid transaction ID."},
		{"wrong prefix", "invalid_123", "5.00", library.ErrInvalidTransactionID, "Invalid transaction ID."},
		{"uppercase prefix", "TXN_123", "5.00", library.ErrInvalidTransactionID, "Invalid transaction ID."},
		{"zero", "txn_1", "0", library.ErrAmountNotPositive, "Refund amount must be greater than 0."},
		{"negative", "txn_1", "-5", library.ErrAmountNotPositive, "Refund amount must be greater than 0."},
		{"over cap", "txn_1", "15.01", library.ErrAmountExceedsMaximum, "Refund amount exceeds maximum late fee."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			gw := &mockGateway{}

			_, err := svc.RefundLateFee(context.Background(), tt.txID, decimal.RequireFromString(tt.amount), gw)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, err.Error())
			assertGatewayUntouched(t, gw)
		})
	}
}

func TestRefundLateFee_GatewayFailures(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	declining := &mockGateway{}
	declining.On("RefundPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(library.RefundOutcome{Success: false, Message: "Transaction not found"}, nil)
	_, err := svc.RefundLateFee(ctx, "txn_1", decimal.NewFromInt(2), declining)
	assert.ErrorIs(t, err, library.ErrDeclined)
	assert.Equal(t, "Refund failed: Transaction not found", err.Error())

	erroring := &mockGateway{}
	erroring.On("RefundPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(library.RefundOutcome{}, errors.New("Gateway timeout"))
	_, err = svc.RefundLateFee(ctx, "txn_1", decimal.NewFromInt(2), erroring)
	assert.ErrorIs(t, err, library.ErrGateway)
	assert.Equal(t, "Refund processing error: Gateway timeout", err.Error())

	require.NotPanics(t, func() {
		_, err = svc.RefundLateFee(ctx, "txn_1", decimal.NewFromInt(2), panickingGateway{})
	})
	assert.ErrorIs(t, err, library.ErrGateway)
}
