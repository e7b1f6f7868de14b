package login

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
)

// Register handles POST /auth/register. The response carries a
// verification token for the verify-otp and resend-otp endpoints.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "register")
	defer cancel()

	res, err := h.Identity.Register(ctx, in.Name, in.Email, in.Password)
	if err != nil {
		h.fail(w, r, nil, audit.EventRegistered, "register", err)
		return
	}
	h.Metrics.AuthEvent("register", "success")
	h.Audit.Auth(ctx, r, audit.EventRegistered, res.User.ID, true, "", nil)
	respond.Created(w, sessionView{User: res.User, Token: res.VerifyToken})
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	su, found := caller(w, r, h.ErrLog)
	if !found {
		return
	}
	var in otpInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "verify register code")
	defer cancel()

	u, err := h.Identity.VerifyRegisterCode(ctx, su.ID, in.OTP)
	if err != nil {
		h.fail(w, r, su, audit.EventOTPFailed, "verify_account", err)
		return
	}
	h.Metrics.AuthEvent("verify_account", "success")
	h.Audit.Auth(ctx, r, audit.EventAccountVerified, u.ID, true, "", nil)
	respond.OK(w, u)
}

// ResendOTP handles POST /auth/resend-otp.
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	su, found := caller(w, r, h.ErrLog)
	if !found {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "resend register code")
	defer cancel()

	if err := h.Identity.ResendRegisterCode(ctx, su.ID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Auth(ctx, r, audit.EventOTPSent, su.ID, true, "", map[string]string{"purpose": "register"})
	ok(w, "A new code has been sent.")
}
