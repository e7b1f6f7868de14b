// internal/app/features/tasks/routes.go
package tasks

import "github.com/go-chi/chi/v5"

// ProjectRoutes serves the tasks of one project. Mount it at
// /projects/{projectId}/tasks so the projectId parameter is set.
func ProjectRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.ListProject)
	r.Get("/{taskId}", h.ShowInProject)
	return r
}

// Routes returns the /tasks subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/my", h.ListMine)
	r.Get("/created", h.ListCreated)

	r.Route("/{taskId}", func(r chi.Router) {
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Put("/self-complete", h.SelfComplete)
		r.Post("/assignees", h.AddAssignees)
		r.Delete("/assignees/{userId}", h.RemoveAssignee)
	})
	return r
}
