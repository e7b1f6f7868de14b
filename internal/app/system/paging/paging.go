// internal/app/system/paging/paging.go
package paging

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/waffle/pantry/query"
)

const (
	// DefaultLimit is the page size used when the caller does not ask for one.
	DefaultLimit = 10
	// MaxLimit caps how many rows a single page may return.
	MaxLimit = 50
)

// Params is a 1-based page number and page size.
type Params struct {
	Page  int
	Limit int
}

// Normalize fills defaults for zero or negative values and caps Limit.
// Services call it so callers that bypass HTTP parsing still get sane pages.
func Normalize(page, limit int) Params {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Skip is the number of rows before this page, for Find().SetSkip().
func (p Params) Skip() int64 {
	return int64((p.Page - 1) * p.Limit)
}

// Parse reads "page" and "limit" query parameters.
// Missing values take defaults; malformed or out-of-range values are a
// validation error rather than being silently clamped.
func Parse(r *http.Request) (Params, error) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		return Params{}, err
	}
	limit, err := intParam(r, "limit", DefaultLimit)
	if err != nil {
		return Params{}, err
	}
	if page < 1 {
		return Params{}, apperr.Validation("page must be at least 1")
	}
	if limit < 1 || limit > MaxLimit {
		return Params{}, apperr.Validation(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	return Params{Page: page, Limit: limit}, nil
}

func intParam(r *http.Request, key string, def int) (int, error) {
	s := query.Get(r, key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.Validation(key + " must be a number")
	}
	return n, nil
}

// Meta describes a page of results for API responses.
type Meta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// NewMeta computes Meta for p given the total number of matching rows.
func NewMeta(p Params, total int64) Meta {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Meta{Total: total, Page: p.Page, Limit: p.Limit, Pages: pages}
}

// Page is one page of results plus its metadata.
type Page[T any] struct {
	Items []T
	Meta  Meta
}
