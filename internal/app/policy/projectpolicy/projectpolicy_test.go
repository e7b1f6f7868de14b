package projectpolicy

import (
	"errors"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type cast struct {
	owner, admin, member, creator, stranger primitive.ObjectID
	project                                 *models.Project
	task                                    *models.Task
}

func newCast() cast {
	c := cast{
		owner:    primitive.NewObjectID(),
		admin:    primitive.NewObjectID(),
		member:   primitive.NewObjectID(),
		creator:  primitive.NewObjectID(),
		stranger: primitive.NewObjectID(),
	}
	c.project = &models.Project{
		ID:      primitive.NewObjectID(),
		Owner:   c.owner,
		Admins:  []primitive.ObjectID{c.admin},
		Members: []primitive.ObjectID{c.admin, c.member, c.creator},
	}
	c.task = &models.Task{ID: primitive.NewObjectID(), ProjectID: c.project.ID, CreatedBy: c.creator}
	return c
}

func TestRoleOf(t *testing.T) {
	c := newCast()
	tests := []struct {
		name string
		user primitive.ObjectID
		want Role
	}{
		{"owner", c.owner, RoleOwner},
		{"admin", c.admin, RoleAdmin},
		{"member", c.member, RoleMember},
		{"stranger", c.stranger, RoleNone},
		{"zero id", primitive.NilObjectID, RoleNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleOf(c.project, tt.user); got != tt.want {
				t.Errorf("RoleOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoleOf_OwnerWinsOverListedRoles(t *testing.T) {
	c := newCast()
	// Corrupt data: owner also listed as admin.
	c.project.Admins = append(c.project.Admins, c.owner)
	if got := RoleOf(c.project, c.owner); got != RoleOwner {
		t.Errorf("RoleOf() = %q, want owner", got)
	}
}

func TestPolicyMatrix(t *testing.T) {
	c := newCast()

	type row struct {
		user                                     primitive.ObjectID
		manage, del, admins, members, task, view bool
	}
	rows := map[string]row{
		"owner":    {c.owner, true, true, true, true, true, true},
		"admin":    {c.admin, true, false, false, true, true, true},
		"member":   {c.member, false, false, false, false, false, true},
		"creator":  {c.creator, false, false, false, false, true, true},
		"stranger": {c.stranger, false, false, false, false, false, false},
	}

	for name, r := range rows {
		t.Run(name, func(t *testing.T) {
			if got := CanManageProject(c.project, r.user); got != r.manage {
				t.Errorf("CanManageProject = %v, want %v", got, r.manage)
			}
			if got := CanDeleteProject(c.project, r.user); got != r.del {
				t.Errorf("CanDeleteProject = %v, want %v", got, r.del)
			}
			if got := CanManageAdmins(c.project, r.user); got != r.admins {
				t.Errorf("CanManageAdmins = %v, want %v", got, r.admins)
			}
			if got := CanManageMembers(c.project, r.user); got != r.members {
				t.Errorf("CanManageMembers = %v, want %v", got, r.members)
			}
			if got := CanManageTask(c.project, c.task, r.user); got != r.task {
				t.Errorf("CanManageTask = %v, want %v", got, r.task)
			}
			if got := CanViewProject(c.project, r.user); got != r.view {
				t.Errorf("CanViewProject = %v, want %v", got, r.view)
			}
		})
	}
}

func TestRequire_ReturnsNotAuthorized(t *testing.T) {
	c := newCast()
	if err := RequireDeleteProject(c.project, c.admin); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("RequireDeleteProject(admin) = %v, want ErrNotAuthorized", err)
	}
	if err := RequireDeleteProject(c.project, c.owner); err != nil {
		t.Errorf("RequireDeleteProject(owner) = %v, want nil", err)
	}
	if err := RequireViewProject(c.project, c.stranger); apperr.KindOf(err) != apperr.KindNotAuthorized {
		t.Errorf("RequireViewProject(stranger) kind = %q", apperr.KindOf(err))
	}
}
