package tasks

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
)

// SelfComplete handles PUT /tasks/{taskId}/self-complete. An assignee marks
// their own entry done; an owner or admin completes every entry.
func (h *Handler) SelfComplete(w http.ResponseWriter, r *http.Request) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := h.pathID(w, r, "taskId")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "complete task")
	defer cancel()

	t, err := h.Tasks.SelfComplete(ctx, taskID, su.ID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.changed(r, audit.EventTaskSelfComplete, "complete", su.ID, t, nil)
	respond.OK(w, t)
}

// AddAssignees handles POST /tasks/{taskId}/assignees.
func (h *Handler) AddAssignees(w http.ResponseWriter, r *http.Request) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := h.pathID(w, r, "taskId")
	if !ok {
		return
	}
	var in assigneesInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "add assignees")
	defer cancel()

	t, err := h.Tasks.AddAssignees(ctx, taskID, su.ID, inputval.ParseIDs(in.Assignees))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.changed(r, audit.EventAssigneesAdded, "add_assignees", su.ID, t, nil)
	respond.OK(w, t)
}

// RemoveAssignee handles DELETE /tasks/{taskId}/assignees/{userId}.
func (h *Handler) RemoveAssignee(w http.ResponseWriter, r *http.Request) {
	su, ok := h.actor(w, r)
	if !ok {
		return
	}
	taskID, ok := h.pathID(w, r, "taskId")
	if !ok {
		return
	}
	userID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "remove assignee")
	defer cancel()

	t, err := h.Tasks.RemoveAssignee(ctx, taskID, su.ID, userID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.changed(r, audit.EventAssigneeRemoved, "remove_assignee", su.ID, t, &userID)
	respond.OK(w, t)
}
