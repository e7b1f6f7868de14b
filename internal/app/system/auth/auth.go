package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what the middleware injects into r.Context().
type SessionUser struct {
	ID        primitive.ObjectID
	Name      string
	Email     string
	Token     string // raw bearer token, needed to blacklist it on logout
	TokenID   string
	ExpiresAt time.Time
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithUser stores u in ctx. Handlers read it back with CurrentUser.
func WithUser(ctx context.Context, u *SessionUser) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionAuthenticator resolves a session token to its user, rejecting
// blacklisted tokens and tokens minted before the user's last credential
// change.
type SessionAuthenticator interface {
	AuthenticateSession(ctx context.Context, raw string) (*models.User, *tokens.Claims, error)
}

// VerifyTokenParser checks short-lived verification tokens.
type VerifyTokenParser interface {
	Parse(raw string, purpose tokens.Purpose) (*tokens.Claims, error)
}

// Middleware guards routes with bearer tokens.
type Middleware struct {
	sessions SessionAuthenticator
	verify   VerifyTokenParser
	log      *zap.Logger
}

// NewMiddleware wires the token checks.
func NewMiddleware(sessions SessionAuthenticator, verify VerifyTokenParser, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{sessions: sessions, verify: verify, log: logger}
}

var errMissingToken = apperr.ErrInvalidToken.WithMessage("Authorization token missing")

// RequireSignedIn accepts only valid session tokens.
func (m *Middleware) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r)
		if !ok {
			respond.Error(w, r, m.log, errMissingToken)
			return
		}
		user, claims, err := m.sessions.AuthenticateSession(r.Context(), raw)
		if err != nil {
			respond.Error(w, r, m.log, err)
			return
		}
		su := &SessionUser{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Token:     raw,
			TokenID:   claims.ID,
			ExpiresAt: expiry(claims),
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), su)))
	})
}

// RequireVerification accepts only verification tokens. The user is
// identified by id alone; the OTP itself is the second factor.
func (m *Middleware) RequireVerification(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r)
		if !ok {
			respond.Error(w, r, m.log, apperr.ErrInvalidToken.WithMessage("Verification token missing"))
			return
		}
		claims, err := m.verify.Parse(raw, tokens.PurposeVerify)
		if err != nil {
			respond.Error(w, r, m.log, err)
			return
		}
		uid, _ := claims.UserID()
		su := &SessionUser{ID: uid, Token: raw, TokenID: claims.ID, ExpiresAt: expiry(claims)}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), su)))
	})
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func expiry(c *tokens.Claims) time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
