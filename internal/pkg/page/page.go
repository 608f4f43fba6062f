// Package page slices in-memory listings into numbered pages.
package page

// Meta is the pagination block returned next to a page of items.
type Meta struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	Total       int  `json:"total"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// Slice returns the requested page of items. page is clamped to at least 1
// and limit to [1, maxLimit], with def used when limit is not positive. A page past
// the end yields an empty, non-nil slice.
func Slice[T any](items []T, page, limit, def, maxLimit int) ([]T, Meta) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	total := len(items)
	totalPages := (total + limit - 1) / limit
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, Meta{
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}
