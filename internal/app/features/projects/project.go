package projects

import (
	"net/http"
	"strconv"

	projectsvc "github.com/dalemusser/taskhub/internal/app/services/projects"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/paging"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// Create handles POST /projects. The caller becomes the owner.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.ErrInvalidToken)
		return
	}
	var in createInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create project")
	defer cancel()

	p, err := h.Projects.Create(ctx, actor.ID, projectsvc.CreateInput{
		Name:        in.Name,
		Description: in.Description,
		Admins:      inputval.ParseIDs(in.Admins),
		Members:     inputval.ParseIDs(in.Members),
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Project(ctx, r, audit.EventProjectCreated, actor.ID, p.ID, nil, map[string]string{"name": p.Name})
	respond.Created(w, p)
}

// List handles GET /projects?page=&limit=&search=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.ErrInvalidToken)
		return
	}
	pg, err := paging.Parse(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list projects")
	defer cancel()

	page, err := h.Projects.ListMine(ctx, actor.ID, projectsvc.Query{
		Page:   pg.Page,
		Limit:  pg.Limit,
		Search: query.Get(r, "search"),
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []models.Project{}
	}
	respond.List(w, page.Items, page.Meta)
}

// Show handles GET /projects/{projectId}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get project")
	defer cancel()

	view, err := h.Projects.Get(ctx, projectID, actor.ID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.OK(w, view)
}

// Update handles PUT /projects/{projectId}. Absent fields are left alone.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.target(w, r)
	if !ok {
		return
	}
	var in updateInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "update project")
	defer cancel()

	p, err := h.Projects.Update(ctx, projectID, actor.ID, projectsvc.Patch{Name: in.Name, Description: in.Description})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Project(ctx, r, audit.EventProjectUpdated, actor.ID, p.ID, nil, nil)
	respond.OK(w, p)
}

// Delete handles DELETE /projects/{projectId}. Owner only; the project's
// tasks are deleted with it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.target(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete project")
	defer cancel()

	n, err := h.Projects.Delete(ctx, projectID, actor.ID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Project(ctx, r, audit.EventProjectDeleted, actor.ID, projectID, nil,
		map[string]string{"tasks_deleted": strconv.FormatInt(n, 10)})
	respond.OK(w, deleteView{Deleted: true, TasksDeleted: n})
}
