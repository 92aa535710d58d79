// Package query translates collection query parameters into SQL predicates,
// orderings and page bounds.
package query

import (
	"math"
	"net/url"
	"strconv"

	"github.com/erazemk/shoplist/internal/model"
)

// Defaults applied when limit or page is absent or invalid.
const (
	DefaultLimit = 20
	DefaultPage  = 1
)

// Params are the recognized collection query parameters.
type Params struct {
	Filter string
	Search string
	SortBy string
	Desc   bool
	Page   int
	Limit  int
}

// Parse reads filter, search, sortBy, order, page and limit from v.
// Non-numeric or non-positive page and limit values fall back to defaults.
func Parse(v url.Values) Params {
	return Params{
		Filter: v.Get("filter"),
		Search: v.Get("search"),
		SortBy: v.Get("sortBy"),
		Desc:   v.Get("order") == "desc",
		Page:   positiveInt(v.Get("page"), DefaultPage),
		Limit:  positiveInt(v.Get("limit"), DefaultLimit),
	}
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Values is the canonical encoding of p. Parse(p.Values()) == p, and requests
// that parse to the same Params encode identically.
func (p Params) Values() url.Values {
	v := url.Values{
		"page":  {strconv.Itoa(p.Page)},
		"limit": {strconv.Itoa(p.Limit)},
	}
	if p.Filter != "" {
		v.Set("filter", p.Filter)
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.SortBy != "" {
		v.Set("sortBy", p.SortBy)
	}
	if p.Desc {
		v.Set("order", "desc")
	}
	return v
}

// Offset returns the number of records skipped before the current page. It
// saturates at math.MaxInt for pages too far out to address.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Searching reports whether both a filter and a search term were given.
func (p Params) Searching() bool {
	return p.Filter != "" && p.Search != ""
}

// TotalPages returns ceil(total/limit), or 0 when there are no records.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	n := total / limit
	if total%limit != 0 {
		n++
	}
	return n
}

// NewPage wraps records in a pagination envelope.
func NewPage[T any](records []T, total int, p Params) model.Page[T] {
	if records == nil {
		records = []T{}
	}
	return model.Page[T]{
		Records:     records,
		TotalCount:  total,
		CurrentPage: p.Page,
		TotalPages:  TotalPages(total, p.Limit),
	}
}
