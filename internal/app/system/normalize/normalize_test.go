package normalize

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "user@example.com"},
		{"USER@EXAMPLE.COM", "user@example.com"},
		{"  User@Example.Com  ", "user@example.com"},
		{"", ""},
		{"   ", ""},
		{"Mixed.Case@Domain.ORG", "mixed.case@domain.org"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Email(tt.input)
			if got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"John Doe", "John Doe"},
		{"  John Doe  ", "John Doe"},
		{"", ""},
		{"   ", ""},
		{"UPPERCASE NAME", "UPPERCASE NAME"}, // Name preserves case
		{"lowercase name", "lowercase name"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Name(tt.input)
			if got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQueryParam(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"search term", "search term"},
		{"  trimmed  ", "trimmed"},
		{"", ""},
		{"   ", ""},
		{"UPPERCASE", "UPPERCASE"}, // Preserves case
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := QueryParam(tt.input)
			if got != tt.want {
				t.Errorf("QueryParam(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestProjectKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Alpha", "alpha"},
		{" alpha ", "alpha"},
		{"Sprint 12", "sprint 12"},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ProjectKey(tt.input); got != tt.want {
				t.Errorf("ProjectKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSearchPattern(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Fix", "fix"},
		{"  ", ""},
		{"a.b*", `a\.b\*`},
		{"(urgent)", `\(urgent\)`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SearchPattern(tt.input); got != tt.want {
				t.Errorf("SearchPattern(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestObjectIDs(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	got, err := ObjectIDs([]string{a.Hex(), " " + b.Hex() + " ", a.Hex()})
	if err != nil {
		t.Fatalf("ObjectIDs() error = %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("ObjectIDs() = %v, want [%v %v]", got, a, b)
	}

	if _, err := ObjectIDs([]string{a.Hex(), "not-an-id"}); err == nil {
		t.Error("ObjectIDs() should reject a malformed id")
	}
}
