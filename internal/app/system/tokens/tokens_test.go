package tokens

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer("test-secret-that-is-at-least-32-bytes", 24*time.Hour, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour, time.Minute); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestIssueAndParse(t *testing.T) {
	iss := newIssuer(t)
	uid := primitive.NewObjectID()

	tok, err := iss.Issue(uid, 3, PurposeSession)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.ID == "" {
		t.Error("token id should be set")
	}

	claims, err := iss.Parse(tok.Value, PurposeSession)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, _ := claims.UserID()
	if got != uid {
		t.Errorf("UserID = %s, want %s", got.Hex(), uid.Hex())
	}
	if claims.TokenVersion != 3 {
		t.Errorf("TokenVersion = %d, want 3", claims.TokenVersion)
	}
	if claims.ID != tok.ID {
		t.Errorf("jti = %q, want %q", claims.ID, tok.ID)
	}
}

func TestIssue_UniqueIDs(t *testing.T) {
	iss := newIssuer(t)
	uid := primitive.NewObjectID()
	a, _ := iss.Issue(uid, 0, PurposeSession)
	b, _ := iss.Issue(uid, 0, PurposeSession)
	if a.Value == b.Value {
		t.Error("two tokens issued in the same second should differ")
	}
}

func TestParse_Rejects(t *testing.T) {
	iss := newIssuer(t)
	uid := primitive.NewObjectID()
	session, _ := iss.Issue(uid, 0, PurposeSession)
	verify, _ := iss.Issue(uid, 0, PurposeVerify)

	other, _ := NewIssuer("a-completely-different-secret-of-32-bytes", time.Hour, time.Minute)
	foreign, _ := other.Issue(uid, 0, PurposeSession)

	tests := []struct {
		name    string
		raw     string
		purpose Purpose
	}{
		{"garbage", "not-a-jwt", PurposeSession},
		{"wrong purpose", verify.Value, PurposeSession},
		{"session used as verify", session.Value, PurposeVerify},
		{"wrong secret", foreign.Value, PurposeSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Parse(tt.raw, tt.purpose)
			if !errors.Is(err, apperr.ErrInvalidToken) {
				t.Errorf("Parse err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestParse_Expired(t *testing.T) {
	iss := newIssuer(t)
	start := time.Now()
	iss.SetClock(func() time.Time { return start })

	tok, err := iss.Issue(primitive.NewObjectID(), 0, PurposeVerify)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := iss.Parse(tok.Value, PurposeVerify); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	iss.SetClock(func() time.Time { return start.Add(6 * time.Minute) })
	if _, err := iss.Parse(tok.Value, PurposeVerify); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Errorf("expired token err = %v, want ErrInvalidToken", err)
	}
}
