package testutil

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/mailer"
)

// Mailer records sent email. Set Fail to make Send return an error.
type Mailer struct {
	mu   sync.Mutex
	sent []mailer.Email
	Fail error
}

func (m *Mailer) Send(_ context.Context, e mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.sent = append(m.sent, e)
	return nil
}

// Sent returns a copy of every delivered message.
func (m *Mailer) Sent() []mailer.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Email(nil), m.sent...)
}

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

// LastCode returns the one-time code in the most recent message to to.
func (m *Mailer) LastCode(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To != to {
			continue
		}
		if match := codeRe.FindStringSubmatch(m.sent[i].TextBody); match != nil {
			return match[1]
		}
	}
	t.Fatalf("no code email sent to %s", to)
	return ""
}
