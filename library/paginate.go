package library

// Page is one page of a filtered sequence.
type Page[T any] struct {
	// Items is the slice of the input shown on this page.
	Items []T `json:"items"`

	// Number is the effective 1-based page number after clamping.
	Number int `json:"page"`

	// TotalPages is at least 1, even for an empty input.
	TotalPages int `json:"totalPages"`

	// Total is the length of the paginated input.
	Total int `json:"total"`
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a next page exists. Callers must not advance
// past the last page; Paginate itself only clamps.
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }

// Paginate returns page requestedPage of items split into pages of pageSize.
//
// pageSize below 1 is treated as 1. requestedPage is clamped into
// [1, TotalPages]; out-of-range values never fail.
func Paginate[T any](items []T, pageSize, requestedPage int) Page[T] {
	pageSize = max(pageSize, 1)

	total := len(items)
	totalPages := max(1, (total+pageSize-1)/pageSize)
	page := min(max(requestedPage, 1), totalPages)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	return Page[T]{
		Items:      items[start:end:end],
		Number:     page,
		TotalPages: totalPages,
		Total:      total,
	}
}
