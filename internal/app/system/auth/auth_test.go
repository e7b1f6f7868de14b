package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeSessions struct {
	issuer *tokens.Issuer
	users  map[primitive.ObjectID]*models.User
}

func (f *fakeSessions) AuthenticateSession(_ context.Context, raw string) (*models.User, *tokens.Claims, error) {
	c, err := f.issuer.Parse(raw, tokens.PurposeSession)
	if err != nil {
		return nil, nil, err
	}
	uid, _ := c.UserID()
	u, ok := f.users[uid]
	if !ok || u.TokenVersion != c.TokenVersion {
		return nil, nil, apperr.ErrInvalidToken
	}
	return u, c, nil
}

func setup(t *testing.T) (*auth.Middleware, *tokens.Issuer, *models.User) {
	t.Helper()
	iss, err := tokens.NewIssuer("test-secret-that-is-at-least-32-bytes", time.Hour, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	u := &models.User{ID: primitive.NewObjectID(), Name: "Ann", Email: "ann@example.com", TokenVersion: 1}
	fs := &fakeSessions{issuer: iss, users: map[primitive.ObjectID]*models.User{u.ID: u}}
	return auth.NewMiddleware(fs, iss, zap.NewNop()), iss, u
}

func protected(t *testing.T, wantID *primitive.ObjectID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		su, ok := auth.CurrentUser(r)
		if !ok {
			t.Error("expected user in context")
		} else if wantID != nil && su.ID != *wantID {
			t.Errorf("user id = %s, want %s", su.ID.Hex(), wantID.Hex())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireSignedIn(t *testing.T) {
	mw, iss, u := setup(t)

	good, _ := iss.Issue(u.ID, 1, tokens.PurposeSession)
	stale, _ := iss.Issue(u.ID, 0, tokens.PurposeSession)
	verify, _ := iss.Issue(u.ID, 1, tokens.PurposeVerify)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + good.Value, http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"stale token version", "Bearer " + stale.Value, http.StatusUnauthorized},
		{"verify token", "Bearer " + verify.Value, http.StatusUnauthorized},
		{"valid", "Bearer " + good.Value, http.StatusOK},
		{"lowercase scheme", "bearer " + good.Value, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mw.RequireSignedIn(protected(t, &u.ID))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRequireSignedIn_CarriesToken(t *testing.T) {
	mw, iss, u := setup(t)
	tok, _ := iss.Issue(u.ID, 1, tokens.PurposeSession)

	h := mw.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		su, _ := auth.CurrentUser(r)
		if su.Token != tok.Value {
			t.Error("raw token not carried")
		}
		if su.TokenID != tok.ID {
			t.Errorf("TokenID = %q, want %q", su.TokenID, tok.ID)
		}
		if su.ExpiresAt.IsZero() {
			t.Error("ExpiresAt not set")
		}
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequireVerification(t *testing.T) {
	mw, iss, u := setup(t)
	verify, _ := iss.Issue(u.ID, 1, tokens.PurposeVerify)
	session, _ := iss.Issue(u.ID, 1, tokens.PurposeSession)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"session token", "Bearer " + session.Value, http.StatusUnauthorized},
		{"verify token", "Bearer " + verify.Value, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mw.RequireVerification(protected(t, &u.ID))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify-otp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCurrentUser_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := auth.CurrentUser(req); ok {
		t.Error("expected no user")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		got, ok := auth.BearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
