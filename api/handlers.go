/*
handlers.go - HTTP API handlers for the library engine

PURPOSE:
  Exposes the library policy engine via REST API. Handles HTTP
  request/response and JSON serialization, and delegates every decision
  to library.Service.

ENDPOINTS:
  Catalog:
    GET    /api/books                          List catalog (title order)
    POST   /api/books                          Add book
    GET    /api/books/search?q=&type=          Search by title, author or isbn

  Loans:
    POST   /api/books/{id}/borrow              Borrow {"patron_id"}
    POST   /api/books/{id}/return              Return {"patron_id"}
    GET    /api/loans/overdue                  Every overdue loan

  Patrons:
    GET    /api/patrons/{id}/status            Loans, fees and history
    GET    /api/patrons/{id}/fees/{bookID}     Current late fee
    POST   /api/patrons/{id}/fees/{bookID}/pay Pay late fee through gateway

  Refunds:
    POST   /api/refunds                        {"transaction_id","amount"}

ERROR HANDLING:
  Errors are returned as JSON with the policy message and a status:
  - 400: Validation errors, invalid input
  - 402: Payment declined by the gateway
  - 404: Book not found, book not borrowed
  - 409: Lending rule violated (limit, availability, duplicate, no fee)
  - 429: Rate limited (payment routes)
  - 500: Storage failure
  - 502: Payment gateway fault

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/library-engine/library"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *library.Service
	Gateway library.PaymentGateway
	Logger  *slog.Logger
}

// NewHandler creates a new handler. A nil logger discards output.
func NewHandler(svc *library.Service, gateway library.PaymentGateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Service: svc,
		Gateway: gateway,
		Logger:  logger,
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListBooks returns the catalog ordered by title.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.Service.ListCatalog(r.Context())
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTOs(books))
}

// AddBook catalogues a new book.
func (h *Handler) AddBook(w http.ResponseWriter, r *http.Request) {
	var req AddBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conf, err := h.Service.AddBook(r.Context(), library.NewBook{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		TotalCopies: req.TotalCopies,
	})
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: conf.Message})
}

// SearchBooks filters the catalog. type defaults to title.
func (h *Handler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	searchType := library.SearchType(r.URL.Query().Get("type"))
	if searchType == "" {
		searchType = library.SearchTitle
	}

	books, err := h.Service.Search(r.Context(), term, searchType)
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTOs(books))
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// BorrowBook lends a copy of {id} to the patron in the body.
func (h *Handler) BorrowBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r, "id")
	if !ok {
		return
	}
	var req PatronRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conf, err := h.Service.Borrow(r.Context(), req.PatronID, bookID)
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BorrowResponse{
		Message: conf.Message,
		Book:    toBookDTO(conf.Book),
		DueDate: conf.DueDate.Format(dateLayout),
	})
}

// ReturnBook closes the patron's loan of {id}.
func (h *Handler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r, "id")
	if !ok {
		return
	}
	var req PatronRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conf, err := h.Service.Return(r.Context(), req.PatronID, bookID)
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReturnResponse{
		Message: conf.Message,
		Book:    toBookDTO(conf.Book),
		LateFee: toFeeDTO(conf.LateFee),
	})
}

// ListOverdue returns every open loan past its due date.
func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Service.OverdueLoans(r.Context())
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverdueDTOs(loans))
}

// =============================================================================
// PATRON HANDLERS
// =============================================================================

// GetPatronStatus returns the patron report.
func (h *Handler) GetPatronStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.PatronStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	if status.Error != "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: status.Error, Code: "validation"})
		return
	}
	writeJSON(w, http.StatusOK, toPatronStatusDTO(status))
}

// GetLateFee returns the current fee for the patron's loan of {bookID}.
// Missing loans are reported in the status field, not as errors.
func (h *Handler) GetLateFee(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r, "bookID")
	if !ok {
		return
	}

	fee, err := h.Service.CalculateLateFee(r.Context(), chi.URLParam(r, "id"), bookID)
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTO(fee))
}

// PayLateFee charges the current fee through the payment gateway.
func (h *Handler) PayLateFee(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r, "bookID")
	if !ok {
		return
	}

	conf, err := h.Service.PayLateFees(r.Context(), chi.URLParam(r, "id"), bookID, h.Gateway)
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{
		Message:       conf.Message,
		TransactionID: conf.TransactionID,
		Amount:        conf.Amount.InexactFloat64(),
	})
}

// RefundLateFee refunds part of a previous late fee payment.
func (h *Handler) RefundLateFee(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conf, err := h.Service.RefundLateFee(r.Context(), req.TransactionID, req.Amount, h.Gateway)
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: conf.Message})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writePolicyError maps a library error to its status code. The body
// carries the policy message; store and gateway causes are only logged.
func (h *Handler) writePolicyError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		attrs := []any{
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		}
		var pe *library.PolicyError
		if errors.As(err, &pe) && pe.Cause != nil {
			attrs = append(attrs, slog.String("step", string(pe.Step)), slog.Any("cause", pe.Cause))
		}
		h.Logger.Error("request failed", attrs...)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case library.IsValidation(err):
		return http.StatusBadRequest, "validation"
	case library.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case library.IsPolicyViolation(err):
		return http.StatusConflict, "policy_violation"
	case errors.Is(err, library.ErrDeclined):
		return http.StatusPaymentRequired, "payment_declined"
	case errors.Is(err, library.ErrGateway):
		return http.StatusBadGateway, "gateway_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// bookIDParam parses a numeric URL parameter, writing a 400 on failure.
func bookIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid book ID", err)
		return 0, false
	}
	return id, true
}
