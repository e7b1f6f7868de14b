package mailer

import (
	"context"
	"strings"
	"testing"
)

func TestBuildCodeEmail(t *testing.T) {
	e := BuildCodeEmail("ann@example.com", CodeEmailData{
		SiteName:  "TaskHub",
		Code:      "123456",
		Action:    "reset your password",
		ExpiresIn: "5 minutes",
	})

	if e.To != "ann@example.com" {
		t.Errorf("To = %q", e.To)
	}
	if e.Subject != "Your TaskHub code" {
		t.Errorf("Subject = %q", e.Subject)
	}
	for _, body := range []string{e.TextBody, e.HTMLBody} {
		if !strings.Contains(body, "123456") {
			t.Error("body should contain the code")
		}
		if !strings.Contains(body, "reset your password") {
			t.Error("body should contain the action")
		}
		if !strings.Contains(body, "5 minutes") {
			t.Error("body should contain the expiry")
		}
	}
}

func TestBuildCodeEmail_EscapesHTML(t *testing.T) {
	e := BuildCodeEmail("a@b.co", CodeEmailData{SiteName: "<b>x</b>", Code: "1"})
	if strings.Contains(e.HTMLBody, "<b>x</b>") {
		t.Error("site name should be escaped in the HTML body")
	}
}

func TestMailer_Disabled(t *testing.T) {
	m := New(Config{}, nil)
	if m.Enabled() {
		t.Fatal("mailer without host should be disabled")
	}
	if err := m.Send(context.Background(), Email{To: "a@b.co", Subject: "hi"}); err != nil {
		t.Errorf("Send on disabled mailer: %v", err)
	}
}

func TestMailer_EmptyRecipient(t *testing.T) {
	m := New(Config{}, nil)
	if err := m.Send(context.Background(), Email{Subject: "hi"}); err == nil {
		t.Error("expected error for empty recipient")
	}
}

func TestMailer_CanceledContext(t *testing.T) {
	m := New(Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, Email{To: "a@b.co"}); err == nil {
		t.Error("expected error for canceled context")
	}
}
