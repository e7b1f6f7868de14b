package paging

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        Params
	}{
		{"defaults", 0, 0, Params{Page: 1, Limit: DefaultLimit}},
		{"negative page", -3, 5, Params{Page: 1, Limit: 5}},
		{"caps limit", 2, 500, Params{Page: 2, Limit: MaxLimit}},
		{"keeps valid", 3, 20, Params{Page: 3, Limit: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.page, tt.limit); got != tt.want {
				t.Errorf("Normalize(%d, %d) = %+v, want %+v", tt.page, tt.limit, got, tt.want)
			}
		})
	}
}

func TestSkip(t *testing.T) {
	if got := (Params{Page: 1, Limit: 10}).Skip(); got != 0 {
		t.Errorf("Skip() page 1 = %d, want 0", got)
	}
	if got := (Params{Page: 3, Limit: 10}).Skip(); got != 20 {
		t.Errorf("Skip() page 3 = %d, want 20", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Params
		wantErr bool
	}{
		{"no params", "/x", Params{Page: 1, Limit: DefaultLimit}, false},
		{"explicit", "/x?page=2&limit=25", Params{Page: 2, Limit: 25}, false},
		{"max limit", "/x?limit=50", Params{Page: 1, Limit: 50}, false},
		{"limit too large", "/x?limit=51", Params{}, true},
		{"zero limit", "/x?limit=0", Params{}, true},
		{"zero page", "/x?page=0", Params{}, true},
		{"not a number", "/x?page=abc", Params{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(httptest.NewRequest("GET", tt.url, nil))
			if tt.wantErr {
				if apperr.KindOf(err) != apperr.KindValidation {
					t.Errorf("Parse(%q) error = %v, want validation error", tt.url, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
		})
	}
}

func TestNewMeta(t *testing.T) {
	m := NewMeta(Params{Page: 2, Limit: 10}, 25)
	if m.Pages != 3 || m.Total != 25 || m.Page != 2 || m.Limit != 10 {
		t.Errorf("NewMeta() = %+v", m)
	}
	if got := NewMeta(Params{Page: 1, Limit: 10}, 0).Pages; got != 0 {
		t.Errorf("Pages for empty result = %d, want 0", got)
	}
}
