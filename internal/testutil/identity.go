package testutil

import (
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/identity"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TestSecret signs tokens in tests.
const TestSecret = "test-secret-that-is-at-least-32-bytes"

// Identity is an identity service over a MemStore that captures mail.
type Identity struct {
	Service *identity.Service
	Issuer  *tokens.Issuer
	Mail    *Mailer
	Auth    *auth.Middleware
}

// NewIdentity wires identity.Service to mem with a cheap bcrypt cost.
func NewIdentity(t *testing.T, mem *MemStore) *Identity {
	t.Helper()
	issuer, err := tokens.NewIssuer(TestSecret, time.Hour, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	mail := &Mailer{}
	svc := identity.New(mem.Users, mem.OTPs, mem.Blacklist, mail, issuer,
		identity.Config{BcryptCost: bcrypt.MinCost}, zap.NewNop())
	t.Cleanup(svc.Wait)
	return &Identity{
		Service: svc,
		Issuer:  issuer,
		Mail:    mail,
		Auth:    auth.NewMiddleware(svc, issuer, zap.NewNop()),
	}
}

// SessionToken issues a session token for u as stored.
func (id *Identity) SessionToken(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := id.Issuer.Issue(u.ID, u.TokenVersion, tokens.PurposeSession)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok.Value
}
