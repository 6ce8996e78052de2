package models

import "strconv"

// DefaultPageSize is the number of posts shown on a listing page.
const DefaultPageSize = 10

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items    []T
	Number   int
	NumPages int
	Total    int64
	PerPage  int
}

// ResolvePage turns a raw ?page= value into a valid page number for total items.
// A missing or non-numeric value yields page 1; a value out of range yields the
// last page. An empty listing still has one (empty) page.
func ResolvePage(raw string, total int64, perPage int) (number, numPages int) {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	numPages = int((total + int64(perPage) - 1) / int64(perPage))
	if numPages < 1 {
		numPages = 1
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1, numPages
	}
	if n < 1 || n > numPages {
		return numPages, numPages
	}
	return n, numPages
}

// Offset returns the row offset of the first item on page number.
func Offset(number, perPage int) int {
	if number < 1 {
		return 0
	}
	return (number - 1) * perPage
}

func (p Page[T]) HasPrevious() bool { return p.Number > 1 }

func (p Page[T]) HasNext() bool { return p.Number < p.NumPages }

func (p Page[T]) HasOtherPages() bool { return p.HasPrevious() || p.HasNext() }

func (p Page[T]) PreviousNumber() int { return p.Number - 1 }

func (p Page[T]) NextNumber() int { return p.Number + 1 }

// StartIndex is the 1-based index of the first item on the page, 0 when empty.
func (p Page[T]) StartIndex() int {
	if p.Total == 0 {
		return 0
	}
	return Offset(p.Number, p.PerPage) + 1
}

// EndIndex is the 1-based index of the last item on the page.
func (p Page[T]) EndIndex() int {
	return Offset(p.Number, p.PerPage) + len(p.Items)
}
