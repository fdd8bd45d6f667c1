package library

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

const (
	msgInvalidPatron = "Invalid patron ID. Must be exactly 6 digits."
	msgTitleRequired = "Title is required."
	msgTitleTooLong  = "Title must be less than 200 characters."
	msgAuthorReq     = "Author is required."
	msgAuthorTooLong = "Author must be less than 100 characters."
	msgInvalidISBN   = "ISBN must be exactly 13 digits."
	msgInvalidCopies = "Total copies must be a positive integer."
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidPatronID reports whether id is exactly six ASCII digits.
func ValidPatronID(id string) bool {
	return validate.Var(id, "len=6,number") == nil
}

// ValidISBN reports whether isbn is exactly thirteen ASCII digits.
func ValidISBN(isbn string) bool {
	return validate.Var(isbn, "len=13,number") == nil
}

func checkPatron(id string) error {
	if !ValidPatronID(id) {
		return fail(ErrInvalidPatron, msgInvalidPatron)
	}
	return nil
}

// normalizeNewBook trims title and author; ISBN is taken verbatim.
func normalizeNewBook(in NewBook) NewBook {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	return in
}

// validateNewBook returns the first failing field in declaration order
// (title, author, isbn, total copies).
func validateNewBook(in NewBook) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fail(ErrInvalidTitle, msgTitleRequired)
	}

	first := fieldErrs[0]
	switch first.StructField() {
	case "Title":
		if first.Tag() == "required" {
			return fail(ErrInvalidTitle, msgTitleRequired)
		}
		return fail(ErrInvalidTitle, msgTitleTooLong)
	case "Author":
		if first.Tag() == "required" {
			return fail(ErrInvalidAuthor, msgAuthorReq)
		}
		return fail(ErrInvalidAuthor, msgAuthorTooLong)
	case "ISBN":
		return fail(ErrInvalidISBN, msgInvalidISBN)
	default:
		return fail(ErrInvalidCopies, msgInvalidCopies)
	}
}
