package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/warp/library-engine/library"
	"github.com/warp/library-engine/payment"
	"github.com/warp/library-engine/ratelimit"
	"github.com/warp/library-engine/store/sqlite"
)

var epoch = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

// testEnv is a router backed by an in-memory SQLite store, a sandbox
// gateway and a settable clock.
type testEnv struct {
	t       *testing.T
	router  http.Handler
	service *library.Service
	store   *sqlite.Store
	gateway *payment.Sandbox
	now     time.Time
}

func newTestEnv(t *testing.T, opts RouterOptions) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{t: t, store: store, gateway: payment.NewSandbox(), now: epoch}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.service = library.NewService(store,
		library.WithClock(func() time.Time { return env.now }),
		library.WithLogger(logger),
	)
	env.router = NewRouter(NewHandler(env.service, env.gateway, logger), opts)
	return env
}

func (e *testEnv) advanceDays(n int) { e.now = e.now.AddDate(0, 0, n) }

// do sends a request and returns the recorder. body may be nil.
func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("Failed to encode body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// addBook catalogues a book through the API and returns its ID.
func (e *testEnv) addBook(title, isbn string, copies int) int64 {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/books", AddBookRequest{
		Title: title, Author: "Test Author", ISBN: isbn, TotalCopies: copies,
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("add book: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	book, err := e.store.FindBookByISBN(context.Background(), isbn)
	if err != nil || book == nil {
		e.t.Fatalf("Failed to find book %s: %v", isbn, err)
	}
	return book.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func newPaymentLimiter(burst int) *ratelimit.KeyedRateLimiter {
	return ratelimit.New(0.001, burst)
}
