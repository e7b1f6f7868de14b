// internal/app/features/login/handler.go
package login

// The /auth endpoints: registration, sign in and out, password reset and
// email change. Code verification endpoints take the short-lived
// verification token returned by register and forgot-password.

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/services/identity"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Identity *identity.Service
	Audit    *auditlog.Logger
	Metrics  *metrics.Metrics
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(id *identity.Service, audit *auditlog.Logger, m *metrics.Metrics, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errLog == nil {
		errLog = uierrors.NewErrorLogger(logger)
	}
	return &Handler{Identity: id, Audit: audit, Metrics: m, ErrLog: errLog, Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request and response bodies                                                |
*─────────────────────────────────────────────────────────────────────────────*/

type registerInput struct {
	Name     string `json:"name" validate:"notblank,min=2,max=100" label:"Name"`
	Email    string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password string `json:"password" validate:"required,min=6,max=72" label:"Password"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type emailInput struct {
	Email string `json:"email" validate:"required,email,max=254" label:"Email"`
}

type otpInput struct {
	OTP string `json:"otp" validate:"required,len=6,numeric" label:"OTP"`
}

type resetInput struct {
	NewPassword string `json:"new_password" validate:"required,min=6,max=72" label:"New password"`
}

// sessionView pairs an account with a token for it.
type sessionView struct {
	User *models.User `json:"user"`
	tokens.Token
}

type messageView struct {
	Message string `json:"message"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// caller returns the user the auth middleware resolved.
func caller(w http.ResponseWriter, r *http.Request, errLog *uierrors.ErrorLogger) (*auth.SessionUser, bool) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		errLog.Write(w, r, apperr.ErrInvalidToken)
		return nil, false
	}
	return su, true
}

// fail renders err and records a failed auth event.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, su *auth.SessionUser, event, metric string, err error) {
	h.Metrics.AuthEvent(metric, "failure")
	if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindCredential && su != nil {
		h.Audit.Auth(r.Context(), r, event, su.ID, false, ae.Code, nil)
	}
	h.ErrLog.Write(w, r, err)
}

// RateLimited answers requests rejected by the auth limiter.
func (h *Handler) RateLimited(w http.ResponseWriter, r *http.Request) {
	h.Metrics.AuthEvent("rate_limited", "failure")
	h.Audit.Auth(r.Context(), r, audit.EventLoginRateLimited, primitive.NilObjectID, false, "rate_limited",
		map[string]string{"path": r.URL.Path})
	h.ErrLog.Write(w, r, apperr.ErrRateLimited)
}

func ok(w http.ResponseWriter, msg string) {
	respond.OK(w, messageView{Message: msg})
}
