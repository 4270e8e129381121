// Package pagination reads optional windowing parameters from list
// requests. List endpoints return everything by default; callers opt
// in to a page with limit and offset query parameters.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// MaxLimit caps a requested page size.
const MaxLimit = 500

// Params holds the window extracted from a request. A zero Limit means
// the caller did not ask for a page.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts windowing parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 0 {
		limit = 0
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Bounds clips the window to a list of n items, returning the half-open
// range [lo, hi). A zero limit runs from the offset to the end.
func (p Params) Bounds(n int) (int, int) {
	lo := p.Offset
	if lo > n {
		lo = n
	}
	hi := n
	if p.Limit > 0 && lo+p.Limit < n {
		hi = lo + p.Limit
	}
	return lo, hi
}
