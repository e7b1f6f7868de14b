// internal/app/policy/projectpolicy/projectpolicy.go
package projectpolicy

import (
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a user's standing within one project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleNone   Role = "none"
)

// RoleOf returns the strongest role userID holds in p.
// Owner takes precedence over admin, and admin over member.
func RoleOf(p *models.Project, userID primitive.ObjectID) Role {
	switch {
	case p == nil || userID.IsZero():
		return RoleNone
	case p.Owner == userID:
		return RoleOwner
	case p.IsAdmin(userID):
		return RoleAdmin
	case p.IsMember(userID):
		return RoleMember
	}
	return RoleNone
}

// InProject reports whether userID is the owner, an admin, or a member.
// Only such users may be assigned to the project's tasks.
func InProject(p *models.Project, userID primitive.ObjectID) bool {
	return RoleOf(p, userID) != RoleNone
}

// CanManageProject: owner or admin.
func CanManageProject(p *models.Project, userID primitive.ObjectID) bool {
	r := RoleOf(p, userID)
	return r == RoleOwner || r == RoleAdmin
}

// CanDeleteProject: owner only.
func CanDeleteProject(p *models.Project, userID primitive.ObjectID) bool {
	return RoleOf(p, userID) == RoleOwner
}

// CanManageAdmins: owner only.
func CanManageAdmins(p *models.Project, userID primitive.ObjectID) bool {
	return RoleOf(p, userID) == RoleOwner
}

// CanManageMembers: owner or admin.
func CanManageMembers(p *models.Project, userID primitive.ObjectID) bool {
	return CanManageProject(p, userID)
}

// CanManageTask: owner, admin, or the user who created the task.
func CanManageTask(p *models.Project, t *models.Task, userID primitive.ObjectID) bool {
	if CanManageProject(p, userID) {
		return true
	}
	return t != nil && !userID.IsZero() && t.CreatedBy == userID
}

// CanViewProject: owner, admin, or member.
func CanViewProject(p *models.Project, userID primitive.ObjectID) bool {
	return InProject(p, userID)
}

// require converts a policy decision into apperr.ErrNotAuthorized.
func require(ok bool) error {
	if ok {
		return nil
	}
	return apperr.ErrNotAuthorized
}

// RequireManageProject returns ErrNotAuthorized unless CanManageProject.
func RequireManageProject(p *models.Project, userID primitive.ObjectID) error {
	return require(CanManageProject(p, userID))
}

// RequireDeleteProject returns ErrNotAuthorized unless CanDeleteProject.
func RequireDeleteProject(p *models.Project, userID primitive.ObjectID) error {
	return require(CanDeleteProject(p, userID))
}

// RequireManageAdmins returns ErrNotAuthorized unless CanManageAdmins.
func RequireManageAdmins(p *models.Project, userID primitive.ObjectID) error {
	return require(CanManageAdmins(p, userID))
}

// RequireManageMembers returns ErrNotAuthorized unless CanManageMembers.
func RequireManageMembers(p *models.Project, userID primitive.ObjectID) error {
	return require(CanManageMembers(p, userID))
}

// RequireManageTask returns ErrNotAuthorized unless CanManageTask.
func RequireManageTask(p *models.Project, t *models.Task, userID primitive.ObjectID) error {
	return require(CanManageTask(p, t, userID))
}

// RequireViewProject returns ErrNotAuthorized unless CanViewProject.
func RequireViewProject(p *models.Project, userID primitive.ObjectID) error {
	return require(CanViewProject(p, userID))
}
