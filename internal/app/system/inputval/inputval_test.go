package inputval

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		// Valid emails
		{"user@example.com", true},
		{"user.name@example.com", true},
		{"user+tag@example.com", true},
		{"user@subdomain.example.com", true},
		{"user123@example.co.uk", true},
		{"a@b.co", true},

		// Invalid emails - empty/whitespace
		{"", false},
		{"   ", false},

		// Invalid emails - missing parts
		{"user", false},
		{"user@", false},
		{"@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got := IsValidEmail(tt.email)
			if got != tt.want {
				t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestIsValidObjectID(t *testing.T) {
	if !IsValidObjectID("507f1f77bcf86cd799439011") {
		t.Error("expected 24-hex id to be valid")
	}
	for _, bad := range []string{"", "507f1f77bcf86cd79943901", "zzzf1f77bcf86cd799439011"} {
		if IsValidObjectID(bad) {
			t.Errorf("IsValidObjectID(%q) = true, want false", bad)
		}
	}
}

func TestValidate(t *testing.T) {
	type input struct {
		Name      string   `json:"name" validate:"notblank,max=10" label:"Full name"`
		Email     string   `json:"email" validate:"required,email"`
		Assignees []string `json:"assignees" validate:"min=1,dive,objectid" label:"Assignees"`
		Priority  string   `json:"priority" validate:"omitempty,oneof=low medium high" label:"Priority"`
	}
	ok := input{Name: "John", Email: "john@example.com", Assignees: []string{"507f1f77bcf86cd799439011"}}

	tests := []struct {
		name      string
		mutate    func(*input)
		wantFirst string
	}{
		{"valid", func(*input) {}, ""},
		{"blank name", func(in *input) { in.Name = "   " }, "Full name is required."},
		{"name too long", func(in *input) { in.Name = "VeryLongNameIndeed" }, "Full name must be at most 10 characters."},
		{"bad email", func(in *input) { in.Email = "nope" }, "A valid email address is required."},
		{"no assignees", func(in *input) { in.Assignees = []string{} }, "Assignees must contain at least 1 item(s)."},
		{"bad assignee id", func(in *input) { in.Assignees = []string{"123"} }, "Assignees[0] must be a valid id."},
		{"bad priority", func(in *input) { in.Priority = "urgent" }, "Priority must be one of: low, medium, high."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ok
			in.Assignees = append([]string(nil), ok.Assignees...)
			tt.mutate(&in)
			res := Validate(in)
			if got := res.First(); got != tt.wantFirst {
				t.Errorf("First() = %q, want %q", got, tt.wantFirst)
			}
			if (tt.wantFirst != "") != res.HasErrors() {
				t.Errorf("HasErrors() = %v", res.HasErrors())
			}
		})
	}
}

func TestResult_AllAndErr(t *testing.T) {
	r := &Result{}
	if r.All() != "" || r.Err() != nil {
		t.Error("empty result should have no message and no error")
	}
	r.Errors = []FieldError{{Message: "Error 1"}, {Message: "Error 2"}}
	if got := r.All(); got != "Error 1; Error 2" {
		t.Errorf("All() = %q", got)
	}
	if r.Err() == nil {
		t.Error("Err() should be non-nil when there are errors")
	}
}

func TestBind(t *testing.T) {
	type input struct {
		Email string `json:"email" validate:"required,email"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"a@b.co"}`, false},
		{"fails validation", `{"email":"nope"}`, true},
		{"malformed json", `{"email":`, true},
		{"unknown field", `{"email":"a@b.co","admin":true}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
			var in input
			err := Bind(r, &in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Bind err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && apperr.KindOf(err) != apperr.KindValidation {
				t.Errorf("kind = %v, want validation", apperr.KindOf(err))
			}
		})
	}
}

func TestParseID(t *testing.T) {
	if _, err := ParseID("nope", "projectId"); err == nil || err.Error() == "" {
		t.Error("expected an error for a malformed id")
	} else if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("kind = %v", apperr.KindOf(err))
	}
	id, err := ParseID("507f1f77bcf86cd799439011", "projectId")
	if err != nil || id.Hex() != "507f1f77bcf86cd799439011" {
		t.Errorf("ParseID = %v, %v", id, err)
	}
	if got := ParseIDs([]string{"507f1f77bcf86cd799439011", "bad"}); len(got) != 1 {
		t.Errorf("ParseIDs kept %d ids", len(got))
	}
}
