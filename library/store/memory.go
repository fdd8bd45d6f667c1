// Package store provides in-memory library.Store implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/library-engine/library"
)

var (
	ErrDuplicateISBN      = errors.New("isbn already exists")
	ErrBookMissing        = errors.New("book does not exist")
	ErrNoOpenRecord       = errors.New("no open borrow record")
	ErrAvailabilityBounds = errors.New("available copies out of bounds")
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	books        map[int64]library.Book
	records      []library.BorrowRecord
	nextBookID   int64
	nextRecordID int64
}

func NewMemory() *Memory {
	return &Memory{
		books:        make(map[int64]library.Book),
		nextBookID:   1,
		nextRecordID: 1,
	}
}

func (m *Memory) FindBookByID(_ context.Context, id int64) (*library.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findBookByIDLocked(id), nil
}

func (m *Memory) findBookByIDLocked(id int64) *library.Book {
	b, ok := m.books[id]
	if !ok {
		return nil
	}
	return &b
}

func (m *Memory) FindBookByISBN(_ context.Context, isbn string) (*library.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findBookByISBNLocked(isbn), nil
}

func (m *Memory) findBookByISBNLocked(isbn string) *library.Book {
	for _, b := range m.books {
		if b.ISBN == isbn {
			return &b
		}
	}
	return nil
}

// ListBooks returns books ordered by title, then by ID.
func (m *Memory) ListBooks(_ context.Context) ([]library.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listBooksLocked(), nil
}

func (m *Memory) listBooksLocked() []library.Book {
	books := make([]library.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
	return books
}

func (m *Memory) InsertBook(_ context.Context, book library.Book) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBookLocked(book)
}

func (m *Memory) insertBookLocked(book library.Book) (int64, error) {
	if m.findBookByISBNLocked(book.ISBN) != nil {
		return 0, ErrDuplicateISBN
	}
	book.ID = m.nextBookID
	m.nextBookID++
	m.books[book.ID] = book
	return book.ID, nil
}

func (m *Memory) InsertBorrowRecord(_ context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRecordLocked(patronID, bookID, borrowDate, dueDate)
}

func (m *Memory) insertRecordLocked(patronID string, bookID int64, borrowDate, dueDate time.Time) error {
	if _, ok := m.books[bookID]; !ok {
		return fmt.Errorf("insert borrow record: %w", ErrBookMissing)
	}
	m.records = append(m.records, library.BorrowRecord{
		ID:         m.nextRecordID,
		PatronID:   patronID,
		BookID:     bookID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
	})
	m.nextRecordID++
	return nil
}

func (m *Memory) CloseBorrowRecord(_ context.Context, patronID string, bookID int64, returnDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeRecordLocked(patronID, bookID, returnDate)
}

func (m *Memory) closeRecordLocked(patronID string, bookID int64, returnDate time.Time) error {
	for i := range m.records {
		r := &m.records[i]
		if r.PatronID == patronID && r.BookID == bookID && r.ReturnDate == nil {
			rd := returnDate
			r.ReturnDate = &rd
			return nil
		}
	}
	return ErrNoOpenRecord
}

func (m *Memory) AdjustAvailability(_ context.Context, bookID int64, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustLocked(bookID, delta)
}

func (m *Memory) adjustLocked(bookID int64, delta int) error {
	b, ok := m.books[bookID]
	if !ok {
		return ErrBookMissing
	}
	next := b.AvailableCopies + delta
	if next < 0 || next > b.TotalCopies {
		return ErrAvailabilityBounds
	}
	b.AvailableCopies = next
	m.books[bookID] = b
	return nil
}

func (m *Memory) CountOpenRecords(_ context.Context, patronID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filterLocked(patronID, true)), nil
}

func (m *Memory) ListOpenRecords(_ context.Context, patronID string) ([]library.BorrowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(patronID, true), nil
}

// ListHistory returns closed records, most recently borrowed first.
func (m *Memory) ListHistory(_ context.Context, patronID string) ([]library.BorrowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.historyLocked(patronID), nil
}

func (m *Memory) historyLocked(patronID string) []library.BorrowRecord {
	history := m.filterLocked(patronID, false)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].BorrowDate.After(history[j].BorrowDate)
	})
	return history
}

func (m *Memory) ListAllOpenRecords(_ context.Context) ([]library.BorrowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked("", true), nil
}

// filterLocked returns the patron's open (or closed) records with title
// and author filled in. An empty patronID matches everyone.
func (m *Memory) filterLocked(patronID string, open bool) []library.BorrowRecord {
	result := []library.BorrowRecord{}
	for _, r := range m.records {
		if patronID != "" && r.PatronID != patronID {
			continue
		}
		if r.IsOpen() != open {
			continue
		}
		if b, ok := m.books[r.BookID]; ok {
			r.Title = b.Title
			r.Author = b.Author
		}
		result = append(result, r)
	}
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(library.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	books        map[int64]library.Book
	records      []library.BorrowRecord
	nextBookID   int64
	nextRecordID int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	books := make(map[int64]library.Book, len(tm.books))
	for k, v := range tm.books {
		books[k] = v
	}
	records := make([]library.BorrowRecord, len(tm.records))
	for i, r := range tm.records {
		if r.ReturnDate != nil {
			rd := *r.ReturnDate
			r.ReturnDate = &rd
		}
		records[i] = r
	}
	return memorySnapshot{
		books:        books,
		records:      records,
		nextBookID:   tm.nextBookID,
		nextRecordID: tm.nextRecordID,
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.books = s.books
	tm.records = s.records
	tm.nextBookID = s.nextBookID
	tm.nextRecordID = s.nextRecordID
}

// txMemoryView runs against the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *Memory
}

func (v *txMemoryView) FindBookByID(_ context.Context, id int64) (*library.Book, error) {
	return v.parent.findBookByIDLocked(id), nil
}

func (v *txMemoryView) FindBookByISBN(_ context.Context, isbn string) (*library.Book, error) {
	return v.parent.findBookByISBNLocked(isbn), nil
}

func (v *txMemoryView) ListBooks(_ context.Context) ([]library.Book, error) {
	return v.parent.listBooksLocked(), nil
}

func (v *txMemoryView) InsertBook(_ context.Context, book library.Book) (int64, error) {
	return v.parent.insertBookLocked(book)
}

func (v *txMemoryView) InsertBorrowRecord(_ context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) error {
	return v.parent.insertRecordLocked(patronID, bookID, borrowDate, dueDate)
}

func (v *txMemoryView) CloseBorrowRecord(_ context.Context, patronID string, bookID int64, returnDate time.Time) error {
	return v.parent.closeRecordLocked(patronID, bookID, returnDate)
}

func (v *txMemoryView) AdjustAvailability(_ context.Context, bookID int64, delta int) error {
	return v.parent.adjustLocked(bookID, delta)
}

func (v *txMemoryView) CountOpenRecords(_ context.Context, patronID string) (int, error) {
	return len(v.parent.filterLocked(patronID, true)), nil
}

func (v *txMemoryView) ListOpenRecords(_ context.Context, patronID string) ([]library.BorrowRecord, error) {
	return v.parent.filterLocked(patronID, true), nil
}

func (v *txMemoryView) ListHistory(_ context.Context, patronID string) ([]library.BorrowRecord, error) {
	return v.parent.historyLocked(patronID), nil
}

func (v *txMemoryView) ListAllOpenRecords(_ context.Context) ([]library.BorrowRecord, error) {
	return v.parent.filterLocked("", true), nil
}
