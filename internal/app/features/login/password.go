package login

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
)

// ForgotPassword handles POST /auth/forgot-password. It mails a reset code
// and returns a verification token for the next two steps.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in emailInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "forgot password")
	defer cancel()

	tok, err := h.Identity.ForgotPassword(ctx, in.Email)
	if err != nil {
		h.fail(w, r, nil, audit.EventOTPSent, "forgot_password", err)
		return
	}
	h.Metrics.AuthEvent("forgot_password", "success")
	respond.OK(w, tok)
}

// VerifyForgotOTP handles POST /auth/verify-forgot-otp. A correct code
// opens a short window in which reset-password is accepted.
func (h *Handler) VerifyForgotOTP(w http.ResponseWriter, r *http.Request) {
	su, found := caller(w, r, h.ErrLog)
	if !found {
		return
	}
	var in otpInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "verify reset code")
	defer cancel()

	if err := h.Identity.VerifyResetCode(ctx, su.ID, in.OTP); err != nil {
		h.fail(w, r, su, audit.EventOTPFailed, "verify_reset", err)
		return
	}
	h.Metrics.AuthEvent("verify_reset", "success")
	ok(w, "Code verified. Choose a new password.")
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	su, found := caller(w, r, h.ErrLog)
	if !found {
		return
	}
	var in resetInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "reset password")
	defer cancel()

	if err := h.Identity.ResetPassword(ctx, su.ID, in.NewPassword); err != nil {
		h.fail(w, r, su, audit.EventPasswordReset, "reset_password", err)
		return
	}
	h.Metrics.AuthEvent("reset_password", "success")
	h.Audit.Auth(ctx, r, audit.EventPasswordReset, su.ID, true, "", nil)
	ok(w, "Password reset. Sign in with the new password.")
}
