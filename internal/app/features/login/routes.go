// internal/app/features/login/routes.go
package login

import (
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /auth subrouter. limiter guards the endpoints that
// take an email from an anonymous caller.
func Routes(h *Handler, mw *auth.Middleware, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware(h.RateLimited))
		r.Post("/login", h.Login)
		r.Post("/forgot-password", h.ForgotPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireVerification)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/resend-otp", h.ResendOTP)
		r.Post("/verify-forgot-otp", h.VerifyForgotOTP)
		r.Post("/reset-password", h.ResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSignedIn)
		r.Post("/logout", h.Logout)
		r.Post("/change-email", h.ChangeEmail)
		r.Post("/change-email/confirm", h.ConfirmEmailChange)
	})
	return r
}
