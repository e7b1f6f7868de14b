// internal/app/features/projects/routes.go
package projects

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the /projects subrouter. tasks, when non-nil, is mounted
// at /{projectId}/tasks. The caller mounts the result behind
// RequireSignedIn.
func Routes(h *Handler, tasks http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)

	r.Route("/{projectId}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)

		r.Post("/members", h.AddMembers)
		r.Delete("/members/{userId}", h.RemoveMember)
		r.Post("/admins", h.AddAdmins)
		r.Delete("/admins/{userId}", h.RemoveAdmin)

		if tasks != nil {
			r.Mount("/tasks", tasks)
		}
	})
	return r
}
