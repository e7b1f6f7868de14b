package login

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
)

// ChangeEmail handles POST /auth/change-email. The code goes to the new
// address.
func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	su, found := caller(w, r, h.ErrLog)
	if !found {
		return
	}
	var in emailInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "request email change")
	defer cancel()

	if err := h.Identity.RequestEmailChange(ctx, su.ID, in.Email); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Auth(ctx, r, audit.EventEmailChangeRequest, su.ID, true, "", nil)
	ok(w, "A code has been sent to the new address.")
}

// ConfirmEmailChange handles POST /auth/change-email/confirm. Older
// sessions stop working, so a new token is returned.
func (h *Handler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	su, found := caller(w, r, h.ErrLog)
	if !found {
		return
	}
	var in otpInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "confirm email change")
	defer cancel()

	res, err := h.Identity.ConfirmEmailChange(ctx, su.ID, in.OTP)
	if err != nil {
		h.fail(w, r, su, audit.EventOTPFailed, "change_email", err)
		return
	}
	h.Metrics.AuthEvent("change_email", "success")
	h.Audit.Auth(ctx, r, audit.EventEmailChanged, su.ID, true, "", nil)
	respond.OK(w, sessionView{User: res.User, Token: res.Token})
}
