/*
Package sqlite provides a SQLite-backed implementation of library.Store.

PURPOSE:
  Persists the catalog and every loan. The policy engine talks to it
  only through library.Store / library.TxStore, so the same engine runs
  against this store in production and against library/store in tests.

INTERFACES IMPLEMENTED:
  library.Store:   Book and borrow-record persistence
  library.TxStore: Borrow/return writes committed together

KEY TABLES:
  books:          One row per catalogued title, with its copy counts
  borrow_records: One row per loan; return_date IS NULL while open

CONSTRAINTS:
  The schema backs up the engine's own checks:
  - books.isbn is UNIQUE (duplicate ISBN -> library.ErrDuplicateISBN)
  - CHECK (available_copies BETWEEN 0 AND total_copies)
  - borrow_records.book_id REFERENCES books(id)

TIMESTAMPS:
  Stored as fixed-width UTC text ("2006-01-02 15:04:05.000000000") so
  that ORDER BY on the column is chronological.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection: SQLite
  has one writer, and ":memory:" databases exist per connection.

USAGE:
  store, err := sqlite.New("./data/library.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := library.NewService(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - library/store.go: Interface definitions
  - library/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/library-engine/library"
)

var (
	ErrBookMissing        = errors.New("book does not exist")
	ErrNoOpenRecord       = errors.New("no open borrow record")
	ErrAvailabilityBounds = errors.New("available copies out of bounds")
)

const timeLayout = "2006-01-02 15:04:05.000000000"

// Store implements library.Store and library.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		isbn TEXT NOT NULL UNIQUE,
		total_copies INTEGER NOT NULL CHECK (total_copies > 0),
		available_copies INTEGER NOT NULL,
		CHECK (available_copies BETWEEN 0 AND total_copies)
	);

	CREATE INDEX IF NOT EXISTS idx_books_title
		ON books(title);

	CREATE TABLE IF NOT EXISTS borrow_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patron_id TEXT NOT NULL,
		book_id INTEGER NOT NULL REFERENCES books(id),
		borrow_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		return_date TEXT
	);

	-- Open loans per patron (limit check, fee lookup)
	CREATE INDEX IF NOT EXISTS idx_records_patron_open
		ON borrow_records(patron_id, book_id) WHERE return_date IS NULL;

	CREATE INDEX IF NOT EXISTS idx_records_patron_borrowed
		ON borrow_records(patron_id, borrow_date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE (library.Store interface)
// =============================================================================

func (s *Store) FindBookByID(ctx context.Context, id int64) (*library.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return conn{s.db}.FindBookByID(ctx, id)
}

func (s *Store) FindBookByISBN(ctx context.Context, isbn string) (*library.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return conn{s.db}.FindBookByISBN(ctx, isbn)
}

func (s *Store) ListBooks(ctx context.Context) ([]library.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return conn{s.db}.ListBooks(ctx)
}

func (s *Store) InsertBook(ctx context.Context, book library.Book) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return conn{s.db}.InsertBook(ctx, book)
}

func (s *Store) InsertBorrowRecord(ctx context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return conn{s.db}.InsertBorrowRecord(ctx, patronID, bookID, borrowDate, dueDate)
}

func (s *Store) CloseBorrowRecord(ctx context.Context, patronID string, bookID int64, returnDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return conn{s.db}.CloseBorrowRecord(ctx, patronID, bookID, returnDate)
}

func (s *Store) AdjustAvailability(ctx context.Context, bookID int64, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return conn{s.db}.AdjustAvailability(ctx, bookID, delta)
}

func (s *Store) CountOpenRecords(ctx context.Context, patronID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return conn{s.db}.CountOpenRecords(ctx, patronID)
}

func (s *Store) ListOpenRecords(ctx context.Context, patronID string) ([]library.BorrowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return conn{s.db}.ListOpenRecords(ctx, patronID)
}

// ListHistory returns closed loans, most recently borrowed first.
func (s *Store) ListHistory(ctx context.Context, patronID string) ([]library.BorrowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return conn{s.db}.ListHistory(ctx, patronID)
}

func (s *Store) ListAllOpenRecords(ctx context.Context) ([]library.BorrowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return conn{s.db}.ListAllOpenRecords(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (library.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store library.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(conn{sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES - shared by Store and the transaction view
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs every query against q without locking. Store takes the lock;
// inside WithTx the lock is already held.
type conn struct {
	q querier
}

const bookColumns = `id, title, author, isbn, total_copies, available_copies`

const recordSelect = `
	SELECT r.id, r.patron_id, r.book_id, b.title, b.author,
	       r.borrow_date, r.due_date, r.return_date
	FROM borrow_records r
	JOIN books b ON b.id = r.book_id
`

func (c conn) FindBookByID(ctx context.Context, id int64) (*library.Book, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	return scanBook(row)
}

func (c conn) FindBookByISBN(ctx context.Context, isbn string) (*library.Book, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE isbn = ?`, isbn)
	return scanBook(row)
}

func (c conn) ListBooks(ctx context.Context) ([]library.Book, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	books := []library.Book{}
	for rows.Next() {
		var b library.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (c conn) InsertBook(ctx context.Context, book library.Book) (int64, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO books (title, author, isbn, total_copies, available_copies)
		VALUES (?, ?, ?, ?, ?)
	`, book.Title, book.Author, book.ISBN, book.TotalCopies, book.AvailableCopies)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return 0, library.ErrDuplicateISBN
		}
		return 0, fmt.Errorf("failed to insert book: %w", err)
	}
	return res.LastInsertId()
}

func (c conn) InsertBorrowRecord(ctx context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO borrow_records (patron_id, book_id, borrow_date, due_date)
		VALUES (?, ?, ?, ?)
	`, patronID, bookID, formatTime(borrowDate), formatTime(dueDate))
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("insert borrow record: %w", ErrBookMissing)
		}
		return fmt.Errorf("failed to insert borrow record: %w", err)
	}
	return nil
}

// CloseBorrowRecord closes the oldest open loan of bookID held by patronID.
func (c conn) CloseBorrowRecord(ctx context.Context, patronID string, bookID int64, returnDate time.Time) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE borrow_records SET return_date = ?
		WHERE id = (
			SELECT id FROM borrow_records
			WHERE patron_id = ? AND book_id = ? AND return_date IS NULL
			ORDER BY id ASC LIMIT 1
		)
	`, formatTime(returnDate), patronID, bookID)
	if err != nil {
		return fmt.Errorf("failed to close borrow record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoOpenRecord
	}
	return nil
}

func (c conn) AdjustAvailability(ctx context.Context, bookID int64, delta int) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE books SET available_copies = available_copies + ? WHERE id = ?`,
		delta, bookID)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintCheck) {
			return ErrAvailabilityBounds
		}
		return fmt.Errorf("failed to update availability: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBookMissing
	}
	return nil
}

func (c conn) CountOpenRecords(ctx context.Context, patronID string) (int, error) {
	var count int
	err := c.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE patron_id = ? AND return_date IS NULL`,
		patronID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open records: %w", err)
	}
	return count, nil
}

func (c conn) ListOpenRecords(ctx context.Context, patronID string) ([]library.BorrowRecord, error) {
	return c.queryRecords(ctx, recordSelect+`
		WHERE r.patron_id = ? AND r.return_date IS NULL
		ORDER BY r.borrow_date ASC, r.id ASC
	`, patronID)
}

func (c conn) ListHistory(ctx context.Context, patronID string) ([]library.BorrowRecord, error) {
	return c.queryRecords(ctx, recordSelect+`
		WHERE r.patron_id = ? AND r.return_date IS NOT NULL
		ORDER BY r.borrow_date DESC, r.id DESC
	`, patronID)
}

func (c conn) ListAllOpenRecords(ctx context.Context) ([]library.BorrowRecord, error) {
	return c.queryRecords(ctx, recordSelect+`
		WHERE r.return_date IS NULL
		ORDER BY r.due_date ASC, r.id ASC
	`)
}

func (c conn) queryRecords(ctx context.Context, query string, args ...any) ([]library.BorrowRecord, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query borrow records: %w", err)
	}
	defer rows.Close()

	records := []library.BorrowRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

func scanBook(row *sql.Row) (*library.Book, error) {
	var b library.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan book: %w", err)
	}
	return &b, nil
}

func scanRecord(rows *sql.Rows) (library.BorrowRecord, error) {
	var (
		r          library.BorrowRecord
		borrowDate string
		dueDate    string
		returnDate sql.NullString
	)

	err := rows.Scan(&r.ID, &r.PatronID, &r.BookID, &r.Title, &r.Author,
		&borrowDate, &dueDate, &returnDate)
	if err != nil {
		return r, fmt.Errorf("failed to scan borrow record: %w", err)
	}

	if r.BorrowDate, err = parseTime(borrowDate); err != nil {
		return r, err
	}
	if r.DueDate, err = parseTime(dueDate); err != nil {
		return r, err
	}
	if returnDate.Valid {
		rd, err := parseTime(returnDate.String)
		if err != nil {
			return r, err
		}
		r.ReturnDate = &rd
	}
	return r, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}
