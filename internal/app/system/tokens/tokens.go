// Package tokens signs and verifies the bearer tokens the API hands out.
//
// Two purposes exist. Session tokens authenticate ordinary API calls and carry
// the user's token version so a password reset or email change invalidates
// every older session. Verify tokens are short-lived and only unlock the OTP
// endpoints of the register and forgot-password flows.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Purpose says what a token may be used for.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeVerify  Purpose = "verify"
)

const issuerName = "taskhub"

// Claims is the JWT payload.
type Claims struct {
	TokenVersion int     `json:"tv"`
	Purpose      Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(c.Subject)
}

// Token is a signed token plus the facts callers need about it.
type Token struct {
	Value     string    `json:"token"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer signs and verifies HS256 tokens with one shared secret.
type Issuer struct {
	secret     []byte
	sessionTTL time.Duration
	verifyTTL  time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer. The secret must not be empty.
func NewIssuer(secret string, sessionTTL, verifyTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("tokens: empty signing secret")
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	if verifyTTL <= 0 {
		verifyTTL = 5 * time.Minute
	}
	return &Issuer{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		verifyTTL:  verifyTTL,
		now:        time.Now,
	}, nil
}

// SetClock replaces the time source. Tests only.
func (i *Issuer) SetClock(now func() time.Time) { i.now = now }

// Issue signs a token for userID.
func (i *Issuer) Issue(userID primitive.ObjectID, tokenVersion int, purpose Purpose) (Token, error) {
	ttl := i.sessionTTL
	if purpose == PurposeVerify {
		ttl = i.verifyTTL
	}
	now := i.now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		TokenVersion: tokenVersion,
		Purpose:      purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   userID.Hex(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ID: jti, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Parse verifies raw and requires the given purpose. Every failure is
// reported as apperr.ErrInvalidToken with the parse error wrapped.
func (i *Issuer) Parse(raw string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, apperr.ErrInvalidToken.Wrap(err)
	}
	if claims.Purpose != purpose {
		return nil, apperr.ErrInvalidToken.Wrap(fmt.Errorf("token purpose %q, want %q", claims.Purpose, purpose))
	}
	if _, err := claims.UserID(); err != nil {
		return nil, apperr.ErrInvalidToken.Wrap(err)
	}
	return claims, nil
}
