package projects

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
)

// AddMembers handles POST /projects/{projectId}/members.
func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.target(w, r)
	if !ok {
		return
	}
	var in membersInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "add members")
	defer cancel()

	p, err := h.Projects.AddMembers(ctx, projectID, actor.ID, inputval.ParseIDs(in.Members))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Project(ctx, r, audit.EventMembersAdded, actor.ID, projectID, nil,
		map[string]string{"count": strconv.Itoa(len(in.Members))})
	respond.OK(w, p)
}

// RemoveMember handles DELETE /projects/{projectId}/members/{userId}.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.target(w, r)
	if !ok {
		return
	}
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "remove member")
	defer cancel()

	p, err := h.Projects.RemoveMember(ctx, projectID, actor.ID, userID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Project(ctx, r, audit.EventMemberRemoved, actor.ID, projectID, &userID, nil)
	respond.OK(w, p)
}

// AddAdmins handles POST /projects/{projectId}/admins. Owner only.
func (h *Handler) AddAdmins(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.target(w, r)
	if !ok {
		return
	}
	var in adminsInput
	if err := inputval.Bind(r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "add admins")
	defer cancel()

	p, err := h.Projects.AddAdmins(ctx, projectID, actor.ID, inputval.ParseIDs(in.Admins))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Project(ctx, r, audit.EventAdminsAdded, actor.ID, projectID, nil,
		map[string]string{"count": strconv.Itoa(len(in.Admins))})
	respond.OK(w, p)
}

// RemoveAdmin handles DELETE /projects/{projectId}/admins/{userId}. The
// user stays a member.
func (h *Handler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.target(w, r)
	if !ok {
		return
	}
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "remove admin")
	defer cancel()

	p, err := h.Projects.RemoveAdmin(ctx, projectID, actor.ID, userID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.Project(ctx, r, audit.EventAdminRemoved, actor.ID, projectID, &userID, nil)
	respond.OK(w, p)
}
