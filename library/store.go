/*
store.go - Persistence interface for books and loans

PURPOSE:
  Defines the boundary between the policy engine and the database.
  The engine never holds books or loans itself; it reads copies from
  the Store and issues explicit update calls.

KEY INTERFACES:
  Store:   Book and borrow-record reads/writes
  TxStore: Store that can run several writes atomically

ABSENCE VS FAILURE:
  Lookups return (nil, nil) when the row does not exist. A non-nil error
  always means the store itself failed.

CONCURRENCY:
  The engine issues sequential sub-calls (count, insert, adjust). Stores
  must give read-your-writes consistency and serialise concurrent
  availability adjustments themselves.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - library/store/memory.go: In-memory for testing

SEE ALSO:
  - borrow.go: Uses TxStore when available
*/
package library

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for book and loan persistence
// =============================================================================

type Store interface {
	// FindBookByID returns nil, nil if the book does not exist.
	FindBookByID(ctx context.Context, id int64) (*Book, error)

	// FindBookByISBN returns nil, nil if no book has this ISBN.
	FindBookByISBN(ctx context.Context, isbn string) (*Book, error)

	// ListBooks returns every book ordered by title, ascending.
	ListBooks(ctx context.Context) ([]Book, error)

	// InsertBook persists a new book and returns its ID.
	InsertBook(ctx context.Context, book Book) (int64, error)

	// InsertBorrowRecord opens a loan.
	InsertBorrowRecord(ctx context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) error

	// CloseBorrowRecord sets the return date on the patron's open loan of bookID.
	CloseBorrowRecord(ctx context.Context, patronID string, bookID int64, returnDate time.Time) error

	// AdjustAvailability adds delta (+1 or -1) to the book's available copies.
	AdjustAvailability(ctx context.Context, bookID int64, delta int) error

	// CountOpenRecords returns how many loans the patron currently holds.
	CountOpenRecords(ctx context.Context, patronID string) (int, error)

	// ListOpenRecords returns the patron's currently open loans.
	ListOpenRecords(ctx context.Context, patronID string) ([]BorrowRecord, error)

	// ListHistory returns the patron's closed loans in store-defined order.
	ListHistory(ctx context.Context, patronID string) ([]BorrowRecord, error)

	// ListAllOpenRecords returns every open loan across all patrons.
	ListAllOpenRecords(ctx context.Context) ([]BorrowRecord, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic borrow/return
// =============================================================================

// TxStore wraps Store with transaction support.
// If fn returns an error the transaction is rolled back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
