package library

import (
	"context"
	"strings"
)

// SearchType selects the field a catalog search matches against.
type SearchType string

const (
	SearchTitle  SearchType = "title"
	SearchAuthor SearchType = "author"
	SearchISBN   SearchType = "isbn"
)

// Search filters the catalog. Title and author match case-insensitive
// substrings; ISBN must match exactly. A blank term or an unknown type
// yields an empty result.
func (s *Service) Search(ctx context.Context, term string, by SearchType) ([]Book, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Book{}, nil
	}

	var match func(Book) bool
	switch by {
	case SearchTitle:
		needle := strings.ToLower(term)
		match = func(b Book) bool { return strings.Contains(strings.ToLower(b.Title), needle) }
	case SearchAuthor:
		needle := strings.ToLower(term)
		match = func(b Book) bool { return strings.Contains(strings.ToLower(b.Author), needle) }
	case SearchISBN:
		match = func(b Book) bool { return b.ISBN == term }
	default:
		return []Book{}, nil
	}

	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, persistenceFailure(StepLookup, "Database error occurred while searching the catalog.", err)
	}

	found := []Book{}
	for _, b := range books {
		if match(b) {
			found = append(found, b)
		}
	}
	return found, nil
}
