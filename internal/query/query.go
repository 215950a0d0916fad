// Package query filters, orders and paginates book and sale listings.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/bookdesk/internal/model"
)

// PageSize is the number of rows shown per page.
const PageSize = 10

const dateLayout = "2006-01-02"

// FilterFunc returns true when an item should be kept.
type FilterFunc[T any] func(T) bool

// Result is one page of a filtered listing.
type Result[T any] struct {
	Items      []T
	Page       int
	TotalPages int
	Matches    int
}

// Options holds the user-entered criteria of a listing.
type Options struct {
	Search string
	// From and To are inclusive local dates. Zero values leave that side open.
	From time.Time
	To   time.Time
}

// Filter keeps the items accepted by keep, preserving their order.
func Filter[T any](items []T, keep FilterFunc[T]) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep == nil || keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Paginate returns the 1-based page of items and the page count. A page
// outside [1, totalPages] yields an empty slice.
func Paginate[T any](items []T, page, pageSize int) ([]T, int) {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	totalPages := (len(items) + pageSize - 1) / pageSize
	if page < 1 || page > totalPages {
		return []T{}, totalPages
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], totalPages
}

// ClampPage keeps page within [1, max(totalPages, 1)].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// ParseDate parses a YYYY-MM-DD bound in loc. Blank input returns the zero time.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return t, nil
}

// Contains reports whether text contains search, ignoring case. The search
// is matched literally, spaces included. An empty search matches everything.
func Contains(text, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(search))
}

// Books filters the catalog by title and author and returns the requested page.
func Books(books []model.Book, opts Options, page int) Result[model.Book] {
	matched := Filter(books, func(b model.Book) bool {
		return Contains(b.Title+" "+b.Author, opts.Search)
	})
	return pageOf(matched, page)
}

// Sales orders sales newest first, filters them by book title, seller name
// and local date range, and returns the requested page.
func Sales(sales []model.Sale, opts Options, page int, loc *time.Location) Result[model.Sale] {
	if loc == nil {
		loc = time.Local
	}
	ordered := append([]model.Sale(nil), sales...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.After(ordered[j].Date)
	})

	from := dayKey(opts.From, loc)
	to := dayKey(opts.To, loc)
	matched := Filter(ordered, func(s model.Sale) bool {
		if !Contains(s.Book.Title+"\x1f"+s.User.Name, opts.Search) {
			return false
		}
		if from == "" && to == "" {
			return true
		}
		if s.Date.IsZero() {
			return false
		}
		day := s.Date.In(loc).Format(dateLayout)
		if from != "" && day < from {
			return false
		}
		if to != "" && day > to {
			return false
		}
		return true
	})
	return pageOf(matched, page)
}

func pageOf[T any](matched []T, page int) Result[T] {
	items, total := Paginate(matched, page, PageSize)
	return Result[T]{
		Items:      items,
		Page:       page,
		TotalPages: total,
		Matches:    len(matched),
	}
}

// dayKey renders a bound as a comparable local date key.
func dayKey(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Format(dateLayout)
}
