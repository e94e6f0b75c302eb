// Package pagination parses page-number query parameters for list endpoints.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/kalaghar/api/internal/domain"
)

const (
	// DefaultLimit is used when the client omits limit.
	DefaultLimit = 10
	// DefaultMaxLimit caps limit to keep queries bounded.
	DefaultMaxLimit = 100
)

var (
	ErrInvalidPage  = errors.New("pagination: invalid page")
	ErrInvalidLimit = errors.New("pagination: invalid limit")
)

// Params is a validated page request.
type Params struct {
	Page  int
	Limit int
}

// Options control defaults for one endpoint.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// FromRequest parses page and limit from the request query.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads page (1-based) and limit. Missing values take defaults, limits above the
// maximum are clamped, and non-positive or non-numeric values are rejected.
func Parse(values url.Values, opts Options) (Params, error) {
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	page, err := parsePositive(values.Get("page"), 1, ErrInvalidPage)
	if err != nil {
		return Params{}, err
	}
	limit, err := parsePositive(values.Get("limit"), defaultLimit, ErrInvalidLimit)
	if err != nil {
		return Params{}, err
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Params{Page: page, Limit: limit}, nil
}

// PageRequest converts the params for repository queries.
func (p Params) PageRequest() domain.PageRequest {
	return domain.PageRequest{Page: p.Page, Limit: p.Limit}
}

func parsePositive(raw string, fallback int, sentinel error) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", sentinel)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", sentinel)
	}
	return value, nil
}
