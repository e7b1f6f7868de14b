// Package identity owns accounts and credentials: registration with an
// emailed code, login, logout, password reset and email change. It also
// resolves session tokens for the auth middleware.
//
// Passwords and codes are bcrypt hashes. Session tokens carry the user's
// token version; resetting the password or changing the email bumps the
// version, which retires every session issued before.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/mailer"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRepo is implemented by userstore.Store.
type UserRepo interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsNameOrEmail(ctx context.Context, name, email string) (bool, error)
	EmailTaken(ctx context.Context, email string, exclude primitive.ObjectID) (bool, error)
	Create(ctx context.Context, u *models.User) error
	SetVerified(ctx context.Context, id primitive.ObjectID) error
	SetResetWindow(ctx context.Context, id primitive.ObjectID, until *time.Time) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	UpdateEmail(ctx context.Context, id primitive.ObjectID, email string) error
	Search(ctx context.Context, pattern string, limit int64) ([]models.UserSummary, error)
	CountVerifiedActive(ctx context.Context, ids []primitive.ObjectID) (int64, error)
}

// OTPs issues and checks one-time codes; otps.Store implements it.
type OTPs interface {
	Issue(ctx context.Context, userID primitive.ObjectID, purpose models.OTPPurpose, targetEmail string) (string, error)
	Verify(ctx context.Context, userID primitive.ObjectID, purpose models.OTPPurpose, code string) (*models.OTP, error)
}

// Blacklist records revoked token ids.
type Blacklist interface {
	Add(ctx context.Context, tokenID string, expiresAt time.Time) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, e mailer.Email) error
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID primitive.ObjectID, tokenVersion int, purpose tokens.Purpose) (tokens.Token, error)
	Parse(raw string, purpose tokens.Purpose) (*tokens.Claims, error)
}

// Config tunes the service.
type Config struct {
	SiteName    string
	ResetWindow time.Duration // how long a verified reset code allows a reset
	CodeTTL     time.Duration // shown in emails
	MailTimeout time.Duration
	BcryptCost  int
}

const (
	DefaultResetWindow = 5 * time.Minute
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

type Service struct {
	users     UserRepo
	otps      OTPs
	blacklist Blacklist
	mail      Mailer
	tokens    TokenIssuer
	cfg       Config
	log       *zap.Logger
	now       func() time.Time

	mailWG sync.WaitGroup
}

func New(users UserRepo, otps OTPs, blacklist Blacklist, mail Mailer, issuer TokenIssuer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "TaskHub"
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = DefaultResetWindow
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = 30 * time.Second
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:     users,
		otps:      otps,
		blacklist: blacklist,
		mail:      mail,
		tokens:    issuer,
		cfg:       cfg,
		log:       logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Wait blocks until queued emails have been handed to the mailer.
func (s *Service) Wait() { s.mailWG.Wait() }

// RegisterResult is returned by Register.
type RegisterResult struct {
	User        *models.User
	VerifyToken tokens.Token
}

// LoginResult is returned by Login.
type LoginResult struct {
	User  *models.User
	Token tokens.Token
}

/*─────────────────────────────────────────────────────────────────────────────*
| Registration                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// Register creates an unverified account, emails a register code and
// returns a verification token for the code endpoints.
func (s *Service) Register(ctx context.Context, name, email, password string) (*RegisterResult, error) {
	name = normalize.Name(name)
	email = normalize.Email(email)

	taken, err := s.users.ExistsNameOrEmail(ctx, name, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.ErrUserExists
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if err := s.sendCode(ctx, u, models.OTPRegister, u.Email, "verify your account"); err != nil {
		return nil, err
	}
	tok, err := s.tokens.Issue(u.ID, u.TokenVersion, tokens.PurposeVerify)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: u, VerifyToken: tok}, nil
}

// ResendRegisterCode replaces the pending register code.
func (s *Service) ResendRegisterCode(ctx context.Context, userID primitive.ObjectID) error {
	u, err := s.liveUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return apperr.ErrAlreadyVerified
	}
	return s.sendCode(ctx, u, models.OTPRegister, u.Email, "verify your account")
}

// VerifyRegisterCode checks the register code and marks the account
// verified.
func (s *Service) VerifyRegisterCode(ctx context.Context, userID primitive.ObjectID, code string) (*models.User, error) {
	u, err := s.liveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsVerified {
		return nil, apperr.ErrAlreadyVerified
	}
	if _, err := s.otps.Verify(ctx, u.ID, models.OTPRegister, code); err != nil {
		return nil, err
	}
	if err := s.users.SetVerified(ctx, u.ID); err != nil {
		return nil, err
	}
	u.IsVerified = true
	return u, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Sessions                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// VerifyCredentials returns the account that email and password
// identify. Unknown email and wrong password fail identically.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.users.GetByEmail(ctx, normalize.Email(email))
	if errors.Is(err, apperr.ErrUserNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.IsDeleted || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if !u.IsVerified {
		return nil, apperr.ErrAccountNotVerified
	}
	return u, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Issue(u.ID, u.TokenVersion, tokens.PurposeSession)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Token: tok}, nil
}

// Logout revokes the session token with id tokenID until it would have
// expired anyway.
func (s *Service) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return apperr.ErrInvalidToken
	}
	return s.blacklist.Add(ctx, tokenID, expiresAt)
}

// AuthenticateSession resolves a session token to its user. Revoked tokens,
// tokens of deleted users and tokens older than the user's last credential
// change are rejected.
func (s *Service) AuthenticateSession(ctx context.Context, raw string) (*models.User, *tokens.Claims, error) {
	claims, err := s.tokens.Parse(raw, tokens.PurposeSession)
	if err != nil {
		return nil, nil, err
	}
	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, apperr.ErrInvalidToken
	}
	uid, _ := claims.UserID()
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, apperr.ErrUserNotFound) {
		return nil, nil, apperr.ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	if u.IsDeleted || u.TokenVersion != claims.TokenVersion {
		return nil, nil, apperr.ErrInvalidToken
	}
	return u, claims, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Password reset                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// ForgotPassword emails a reset code and returns a verification token.
func (s *Service) ForgotPassword(ctx context.Context, email string) (tokens.Token, error) {
	u, err := s.users.GetByEmail(ctx, normalize.Email(email))
	if err != nil {
		return tokens.Token{}, err
	}
	if u.IsDeleted {
		return tokens.Token{}, apperr.ErrUserNotFound
	}
	if err := s.sendCode(ctx, u, models.OTPForgotPassword, u.Email, "reset your password"); err != nil {
		return tokens.Token{}, err
	}
	return s.tokens.Issue(u.ID, u.TokenVersion, tokens.PurposeVerify)
}

// VerifyResetCode checks the reset code and opens the reset window.
func (s *Service) VerifyResetCode(ctx context.Context, userID primitive.ObjectID, code string) error {
	u, err := s.liveUser(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.otps.Verify(ctx, u.ID, models.OTPForgotPassword, code); err != nil {
		return err
	}
	until := s.now().UTC().Add(s.cfg.ResetWindow)
	return s.users.SetResetWindow(ctx, u.ID, &until)
}

// ResetPassword sets a new password while the reset window is open. Every
// existing session stops working.
func (s *Service) ResetPassword(ctx context.Context, userID primitive.ObjectID, password string) error {
	u, err := s.liveUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.ResetAllowed(s.now()) {
		return apperr.ErrResetNotVerified
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, u.ID, hash)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Email change                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// RequestEmailChange emails a code to the new address.
func (s *Service) RequestEmailChange(ctx context.Context, userID primitive.ObjectID, newEmail string) error {
	u, err := s.liveUser(ctx, userID)
	if err != nil {
		return err
	}
	newEmail = normalize.Email(newEmail)
	if newEmail == u.Email {
		return apperr.Validation("The new email matches the current one.")
	}
	taken, err := s.users.EmailTaken(ctx, newEmail, u.ID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.ErrEmailTaken
	}
	return s.sendCode(ctx, u, models.OTPChangeEmail, newEmail, "confirm your new email address")
}

// ConfirmEmailChange applies the pending change and returns a fresh session
// token, since the change retires the old ones.
func (s *Service) ConfirmEmailChange(ctx context.Context, userID primitive.ObjectID, code string) (*LoginResult, error) {
	u, err := s.liveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	otp, err := s.otps.Verify(ctx, u.ID, models.OTPChangeEmail, code)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateEmail(ctx, u.ID, otp.TargetEmail); err != nil {
		return nil, err
	}
	u, err = s.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Issue(u.ID, u.TokenVersion, tokens.PurposeSession)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Token: tok}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Directory                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.liveUser(ctx, userID)
}

// IsVerifiedActiveUser reports whether userID may be referenced by projects
// and tasks.
func (s *Service) IsVerifiedActiveUser(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	n, err := s.users.CountVerifiedActive(ctx, []primitive.ObjectID{userID})
	return n == 1, err
}

// BulkExistsVerifiedActive counts how many of ids are verified, live users.
func (s *Service) BulkExistsVerifiedActive(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	return s.users.CountVerifiedActive(ctx, models.DedupeIDs(ids))
}

// SearchUsers finds verified users by name or email substring.
func (s *Service) SearchUsers(ctx context.Context, query string, limit int) ([]models.UserSummary, error) {
	if limit < 1 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return s.users.Search(ctx, normalize.SearchPattern(query), int64(limit))
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (s *Service) liveUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted {
		return nil, apperr.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// sendCode stores a fresh code and mails it in the background. A mail
// failure is logged; the code stays valid so the user can ask for a resend.
func (s *Service) sendCode(ctx context.Context, u *models.User, purpose models.OTPPurpose, to, action string) error {
	code, err := s.otps.Issue(ctx, u.ID, purpose, targetFor(purpose, to))
	if err != nil {
		return err
	}
	email := mailer.BuildCodeEmail(to, mailer.CodeEmailData{
		SiteName:  s.cfg.SiteName,
		Code:      code,
		Action:    action,
		ExpiresIn: humanDuration(s.cfg.CodeTTL),
	})

	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		mctx, cancel := context.WithTimeout(context.Background(), s.cfg.MailTimeout)
		defer cancel()
		if err := s.mail.Send(mctx, email); err != nil {
			s.log.Warn("code email failed",
				zap.String("user_id", u.ID.Hex()),
				zap.String("purpose", string(purpose)),
				zap.Error(err))
		}
	}()
	return nil
}

func targetFor(purpose models.OTPPurpose, to string) string {
	if purpose == models.OTPChangeEmail {
		return to
	}
	return ""
}

func humanDuration(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	switch {
	case m <= 1:
		return "1 minute"
	case m < 60:
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
