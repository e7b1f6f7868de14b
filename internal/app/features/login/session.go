package login

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
)

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login")
	defer cancel()

	res, err := h.Identity.Login(ctx, in.Email, in.Password)
	if err != nil {
		h.Metrics.AuthEvent("login", "failure")
		if ae, isDomain := apperr.As(err); isDomain && ae.Kind == apperr.KindCredential {
			h.Audit.LoginFailed(ctx, r, normalize.Email(in.Email), ae.Code)
		}
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Metrics.AuthEvent("login", "success")
	h.Audit.LoginSuccess(ctx, r, res.User.ID)
	respond.OK(w, sessionView{User: res.User, Token: res.Token})
}

// Logout handles POST /auth/logout. The presented token is revoked until
// it would have expired.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	su, found := caller(w, r, h.ErrLog)
	if !found {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "logout")
	defer cancel()

	if err := h.Identity.Logout(ctx, su.TokenID, su.ExpiresAt); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Metrics.AuthEvent("logout", "success")
	h.Audit.Logout(ctx, r, su.ID)
	ok(w, "Signed out.")
}
