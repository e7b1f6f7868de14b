package tasks

import (
	"context"
	"net/http"

	tasksvc "github.com/dalemusser/taskhub/internal/app/services/tasks"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/paging"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Create handles POST /projects/{projectId}/tasks.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := h.pathID(w, r, "projectId")
	if !ok {
		return
	}
	var in createInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create task")
	defer cancel()

	t, err := h.Tasks.Create(ctx, projectID, su.ID, tasksvc.CreateInput{
		Title:       in.Title,
		Description: in.Description,
		Assignees:   inputval.ParseIDs(in.Assignees),
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.changed(r, audit.EventTaskCreated, "create", su.ID, t, nil)
	respond.Created(w, t)
}

// ListProject handles GET /projects/{projectId}/tasks.
func (h *Handler) ListProject(w http.ResponseWriter, r *http.Request) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := h.pathID(w, r, "projectId")
	if !ok {
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list project tasks")
	defer cancel()

	page, err := h.Tasks.ListProject(ctx, projectID, su.ID, q)
	h.writePage(w, r, page, err)
}

// ShowInProject handles GET /projects/{projectId}/tasks/{taskId}.
func (h *Handler) ShowInProject(w http.ResponseWriter, r *http.Request) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	projectID, ok := h.pathID(w, r, "projectId")
	if !ok {
		return
	}
	taskID, ok := h.pathID(w, r, "taskId")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get task")
	defer cancel()

	view, err := h.Tasks.GetInProject(ctx, projectID, taskID, su.ID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.OK(w, view)
}

// ListMine handles GET /tasks/my.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.listScoped(w, r, "list my tasks", h.Tasks.ListMine)
}

// ListCreated handles GET /tasks/created.
func (h *Handler) ListCreated(w http.ResponseWriter, r *http.Request) {
	h.listScoped(w, r, "list created tasks", h.Tasks.ListCreatedByMe)
}

type scopedList func(ctx context.Context, actorID primitive.ObjectID, q tasksvc.Query) (paging.Page[models.Task], error)

func (h *Handler) listScoped(w http.ResponseWriter, r *http.Request, op string, list scopedList) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, op)
	defer cancel()

	page, err := list(ctx, su.ID, q)
	h.writePage(w, r, page, err)
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, page paging.Page[models.Task], err error) {
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []models.Task{}
	}
	respond.List(w, page.Items, page.Meta)
}

// Update handles PATCH /tasks/{taskId}. Owners, admins and the creator may
// overwrite any listed field, status included.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := h.pathID(w, r, "taskId")
	if !ok {
		return
	}
	var in updateInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "update task")
	defer cancel()

	t, err := h.Tasks.Update(ctx, taskID, su.ID, tasksvc.Patch{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		Status:      in.Status,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.changed(r, audit.EventTaskUpdated, "update", su.ID, t, nil)
	respond.OK(w, t)
}

// Delete handles DELETE /tasks/{taskId}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := h.pathID(w, r, "taskId")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete task")
	defer cancel()

	t, err := h.Tasks.Delete(ctx, taskID, su.ID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.changed(r, audit.EventTaskDeleted, "delete", su.ID, t, nil)
	respond.OK(w, deleteView{Deleted: true})
}
