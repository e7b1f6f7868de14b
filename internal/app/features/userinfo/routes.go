// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// Routes returns the /users subrouter. The caller mounts it behind
// RequireSignedIn.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/me", h.ServeMe)
	r.Get("/search", h.ServeSearch)
	return r
}
