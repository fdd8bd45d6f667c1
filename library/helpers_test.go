package library_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/library-engine/library"
	"github.com/warp/library-engine/library/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var epoch = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

// testClock is a settable clock shared with the service under test.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *testClock) AdvanceDays(n int)       { c.t = c.t.AddDate(0, 0, n) }

func newTestService(t *testing.T) (*library.Service, *store.TxMemory, *testClock) {
	t.Helper()
	st := store.NewTxMemory()
	clock := &testClock{t: epoch}
	return library.NewService(st, library.WithClock(clock.Now)), st, clock
}

// addBook catalogues a book and returns its ID.
func addBook(t *testing.T, svc *library.Service, st library.Store, title, isbn string, copies int) int64 {
	t.Helper()
	ctx := context.Background()
	_, err := svc.AddBook(ctx, library.NewBook{
		Title:       title,
		Author:      "Test Author",
		ISBN:        isbn,
		TotalCopies: copies,
	})
	require.NoError(t, err)

	book, err := st.FindBookByISBN(ctx, isbn)
	require.NoError(t, err)
	require.NotNil(t, book)
	return book.ID
}

func availableCopies(t *testing.T, st library.Store, bookID int64) int {
	t.Helper()
	book, err := st.FindBookByID(context.Background(), bookID)
	require.NoError(t, err)
	require.NotNil(t, book)
	return book.AvailableCopies
}

// failingStore wraps a plain (non-transactional) store and fails
// selected writes.
type failingStore struct {
	library.Store
	failInsertBook   bool
	failInsertRecord bool
	failCloseRecord  bool
	failAdjust       bool
	failLists        bool
}

var errDiskFull = errors.New("disk I/O error")

func (f *failingStore) InsertBook(ctx context.Context, b library.Book) (int64, error) {
	if f.failInsertBook {
		return 0, errDiskFull
	}
	return f.Store.InsertBook(ctx, b)
}

func (f *failingStore) InsertBorrowRecord(ctx context.Context, patronID string, bookID int64, borrowDate, dueDate time.Time) error {
	if f.failInsertRecord {
		return errDiskFull
	}
	return f.Store.InsertBorrowRecord(ctx, patronID, bookID, borrowDate, dueDate)
}

func (f *failingStore) CloseBorrowRecord(ctx context.Context, patronID string, bookID int64, returnDate time.Time) error {
	if f.failCloseRecord {
		return errDiskFull
	}
	return f.Store.CloseBorrowRecord(ctx, patronID, bookID, returnDate)
}

func (f *failingStore) AdjustAvailability(ctx context.Context, bookID int64, delta int) error {
	if f.failAdjust {
		return errDiskFull
	}
	return f.Store.AdjustAvailability(ctx, bookID, delta)
}

func (f *failingStore) ListOpenRecords(ctx context.Context, patronID string) ([]library.BorrowRecord, error) {
	if f.failLists {
		return nil, errDiskFull
	}
	return f.Store.ListOpenRecords(ctx, patronID)
}
