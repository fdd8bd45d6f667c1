package library

import (
	"context"
	"fmt"
	"log/slog"
)

// =============================================================================
// CATALOG POLICY
// =============================================================================

// AddBook validates and catalogues a new book with every copy available.
// Validation stops at the first failing field; a duplicate ISBN is
// rejected before anything is written.
func (s *Service) AddBook(ctx context.Context, in NewBook) (Confirmation, error) {
	in = normalizeNewBook(in)
	if err := validateNewBook(in); err != nil {
		return Confirmation{}, err
	}

	existing, err := s.store.FindBookByISBN(ctx, in.ISBN)
	if err != nil {
		return Confirmation{}, persistenceFailure(StepLookup, "Database error occurred while adding the book.", err)
	}
	if existing != nil {
		return Confirmation{}, fail(ErrDuplicateISBN, "A book with this ISBN already exists.")
	}

	book := Book{
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
	}
	id, err := s.store.InsertBook(ctx, book)
	if err != nil {
		s.logger.Error("insert book failed", slog.String("isbn", in.ISBN), slog.Any("error", err))
		return Confirmation{}, persistenceFailure(StepInsertBook, "Database error occurred while adding the book.", err)
	}

	s.logger.Info("book added", slog.Int64("book_id", id), slog.String("isbn", in.ISBN))
	return Confirmation{
		Message: fmt.Sprintf(`Book "%s" has been successfully added to the catalog.`, in.Title),
	}, nil
}

// ListCatalog returns every book ordered by title.
func (s *Service) ListCatalog(ctx context.Context) ([]Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, persistenceFailure(StepLookup, "Database error occurred while loading the catalog.", err)
	}
	return books, nil
}
