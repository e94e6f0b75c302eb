package pagination

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Page != 1 || params.Limit != DefaultLimit {
		t.Fatalf("expected page 1 limit %d, got %+v", DefaultLimit, params)
	}
}

func TestParseClampsLimit(t *testing.T) {
	values := url.Values{}
	values.Set("page", "3")
	values.Set("limit", "500")

	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Page != 3 || params.Limit != DefaultMaxLimit {
		t.Fatalf("unexpected params %+v", params)
	}
	if got := params.PageRequest().Offset(); got != 2*DefaultMaxLimit {
		t.Fatalf("expected offset %d, got %d", 2*DefaultMaxLimit, got)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		raw  string
		want error
	}{
		{"non numeric page", "page", "abc", ErrInvalidPage},
		{"zero page", "page", "0", ErrInvalidPage},
		{"negative limit", "limit", "-5", ErrInvalidLimit},
		{"fractional limit", "limit", "2.5", ErrInvalidLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := url.Values{}
			values.Set(tc.key, tc.raw)
			if _, err := Parse(values, Options{}); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFromRequestUsesEndpointDefaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	params, err := FromRequest(req, Options{DefaultLimit: 25, MaxLimit: 20})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.Limit != 20 {
		t.Fatalf("expected default to be capped at max, got %d", params.Limit)
	}
}
