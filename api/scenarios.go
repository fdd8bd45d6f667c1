/*
scenarios.go - Sample catalog loader for demos and development

PURPOSE:
  Populates an empty library with a small, well-known catalog so the
  API can be exercised straight away.

SAMPLE CATALOG:
  The Great Gatsby       F. Scott Fitzgerald  9780743273565  3 copies
  To Kill a Mockingbird  Harper Lee           9780061120084  2 copies
  1984                   George Orwell        9780451524935  1 copy

USAGE VIA API:
  POST /api/scenarios/sample

NOTE:
  Loading is idempotent: books whose ISBN is already catalogued are
  skipped, nothing is reset.

SEE ALSO:
  - handlers.go: Catalog handlers
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/warp/library-engine/library"
)

// SampleCatalog is the demo catalog.
var SampleCatalog = []library.NewBook{
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "9780743273565", TotalCopies: 3},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "9780061120084", TotalCopies: 2},
	{Title: "1984", Author: "George Orwell", ISBN: "9780451524935", TotalCopies: 1},
}

// SampleResult reports what LoadSampleCatalog did.
type SampleResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// LoadSampleCatalog adds every sample book not already catalogued.
func LoadSampleCatalog(ctx context.Context, svc *library.Service, logger *slog.Logger) (SampleResult, error) {
	var res SampleResult
	for _, book := range SampleCatalog {
		_, err := svc.AddBook(ctx, book)
		switch {
		case err == nil:
			res.Added++
		case errors.Is(err, library.ErrDuplicateISBN):
			res.Skipped++
		default:
			return res, err
		}
	}
	if logger != nil {
		logger.Info("sample catalog loaded", slog.Int("added", res.Added), slog.Int("skipped", res.Skipped))
	}
	return res, nil
}

// LoadSample handles POST /api/scenarios/sample.
func (h *Handler) LoadSample(w http.ResponseWriter, r *http.Request) {
	res, err := LoadSampleCatalog(r.Context(), h.Service, h.Logger)
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
