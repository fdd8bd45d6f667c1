/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the library domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Operation results wrapping a message

MONEY:
  Amounts go out as JSON numbers (two decimal places). Refund amounts
  come in as a JSON number or string and are parsed into decimal.Decimal.

DATES:
  due_date is a calendar date (2006-01-02). Other timestamps are RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/library-engine/library"
)

const dateLayout = "2006-01-02"

// =============================================================================
// CATALOG
// =============================================================================

// BookDTO represents a book in API responses.
type BookDTO struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// AddBookRequest is the request to catalogue a book.
type AddBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	TotalCopies int    `json:"total_copies"`
}

// =============================================================================
// LOANS
// =============================================================================

// PatronRequest identifies the patron for borrow and return.
type PatronRequest struct {
	PatronID string `json:"patron_id"`
}

// FeeDTO is a late fee as of the request time.
type FeeDTO struct {
	FeeAmount   float64 `json:"fee_amount"`
	DaysOverdue int     `json:"days_overdue"`
	Status      string  `json:"status"`
}

// LoanDTO is one borrow record. LateFee is set for open loans only.
type LoanDTO struct {
	PatronID   string  `json:"patron_id,omitempty"`
	BookID     int64   `json:"book_id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	BorrowDate string  `json:"borrow_date"`
	DueDate    string  `json:"due_date"`
	ReturnDate *string `json:"return_date,omitempty"`
	LateFee    *FeeDTO `json:"late_fee,omitempty"`
}

type BorrowResponse struct {
	Message string  `json:"message"`
	Book    BookDTO `json:"book"`
	DueDate string  `json:"due_date"`
}

type ReturnResponse struct {
	Message string  `json:"message"`
	Book    BookDTO `json:"book"`
	LateFee FeeDTO  `json:"late_fee"`
}

// PatronStatusDTO is the patron report.
type PatronStatusDTO struct {
	PatronID          string    `json:"patron_id"`
	CurrentlyBorrowed []LoanDTO `json:"currently_borrowed"`
	TotalLateFees     float64   `json:"total_late_fees"`
	BorrowedCount     int       `json:"borrowed_count"`
	BorrowingHistory  []LoanDTO `json:"borrowing_history"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentResponse struct {
	Message       string  `json:"message"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

// RefundRequest is the request to refund part of a late fee payment.
type RefundRequest struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// =============================================================================
// COMMON
// =============================================================================

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toBookDTO(b library.Book) BookDTO {
	return BookDTO{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
	}
}

func toBookDTOs(books []library.Book) []BookDTO {
	dtos := make([]BookDTO, len(books))
	for i, b := range books {
		dtos[i] = toBookDTO(b)
	}
	return dtos
}

func toFeeDTO(f library.FeeResult) FeeDTO {
	return FeeDTO{
		FeeAmount:   f.Amount.Round(2).InexactFloat64(),
		DaysOverdue: f.DaysOverdue,
		Status:      string(f.Status),
	}
}

func toLoanDTO(r library.BorrowRecord) LoanDTO {
	dto := LoanDTO{
		BookID:     r.BookID,
		Title:      r.Title,
		Author:     r.Author,
		BorrowDate: r.BorrowDate.Format(time.RFC3339),
		DueDate:    r.DueDate.Format(dateLayout),
	}
	if r.ReturnDate != nil {
		rd := r.ReturnDate.Format(time.RFC3339)
		dto.ReturnDate = &rd
	}
	return dto
}

func toPatronStatusDTO(s library.PatronStatus) PatronStatusDTO {
	dto := PatronStatusDTO{
		PatronID:          s.PatronID,
		CurrentlyBorrowed: make([]LoanDTO, len(s.CurrentlyBorrowed)),
		TotalLateFees:     s.TotalLateFees.InexactFloat64(),
		BorrowedCount:     s.BorrowedCount,
		BorrowingHistory:  make([]LoanDTO, len(s.History)),
	}
	for i, loan := range s.CurrentlyBorrowed {
		l := toLoanDTO(loan.Record)
		fee := toFeeDTO(loan.Fee)
		l.LateFee = &fee
		dto.CurrentlyBorrowed[i] = l
	}
	for i, r := range s.History {
		dto.BorrowingHistory[i] = toLoanDTO(r)
	}
	return dto
}

func toOverdueDTOs(loans []library.OverdueLoan) []LoanDTO {
	dtos := make([]LoanDTO, len(loans))
	for i, o := range loans {
		l := toLoanDTO(o.Record)
		l.PatronID = o.Record.PatronID
		fee := toFeeDTO(o.Fee)
		l.LateFee = &fee
		dtos[i] = l
	}
	return dtos
}
