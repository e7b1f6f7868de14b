// Package projects implements the project lifecycle: creation, patching,
// deletion with its task cascade, and the owner/admin/member sets.
//
// Every operation loads the project first, so a missing or soft-deleted
// project is reported as not found before any permission check runs.
package projects

import (
	"context"
	"strings"

	"github.com/dalemusser/taskhub/internal/app/policy/projectpolicy"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/paging"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProjectRepo is the persistence the service needs; projectstore.Store
// implements it.
type ProjectRepo interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
	ExistsName(ctx context.Context, owner primitive.ObjectID, nameLower string, exclude primitive.ObjectID) (bool, error)
	Create(ctx context.Context, p *models.Project) error
	Save(ctx context.Context, p *models.Project) error
	SoftDelete(ctx context.Context, p *models.Project) error
	ListForUser(ctx context.Context, f models.ProjectFilter) ([]models.Project, int64, error)
}

// UserDirectory answers questions about referenced users.
type UserDirectory interface {
	CountVerifiedActive(ctx context.Context, ids []primitive.ObjectID) (int64, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) ([]models.UserSummary, error)
}

// TaskCascade soft-deletes the tasks of deleted projects.
type TaskCascade interface {
	SoftDeleteByProjects(ctx context.Context, projectIDs []primitive.ObjectID) (int64, error)
}

// Transactor runs fn as one unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	projects ProjectRepo
	users    UserDirectory
	tasks    TaskCascade
	tx       Transactor
	log      *zap.Logger
}

func New(projects ProjectRepo, users UserDirectory, tasks TaskCascade, tx Transactor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{projects: projects, users: users, tasks: tasks, tx: tx, log: logger}
}

// CreateInput carries the fields of a new project.
type CreateInput struct {
	Name        string
	Description string
	Admins      []primitive.ObjectID
	Members     []primitive.ObjectID
}

// Patch lists the fields Update may change. Nil means unchanged.
type Patch struct {
	Name        *string
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil
}

// ProjectView is a project with its people resolved for display.
type ProjectView struct {
	models.Project
	OwnerUser   models.UserSummary   `json:"owner_user"`
	AdminUsers  []models.UserSummary `json:"admin_users"`
	MemberUsers []models.UserSummary `json:"member_users"`
	Role        projectpolicy.Role   `json:"role"`
}

// Query pages through the caller's projects.
type Query struct {
	Page   int
	Limit  int
	Search string
}

// Create makes ownerID the owner of a new project. The owner is never
// listed among admins or members, and every admin is also a member.
func (s *Service) Create(ctx context.Context, ownerID primitive.ObjectID, in CreateInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.ErrProjectNameRequired
	}
	key := normalize.ProjectKey(name)

	exists, err := s.projects.ExistsName(ctx, ownerID, key, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrProjectNameExists
	}

	admins := withoutOwner(in.Admins, ownerID)
	members := withoutOwner(in.Members, ownerID)
	if err := s.requireActive(ctx, models.DedupeIDs(append(append([]primitive.ObjectID{}, admins...), members...))); err != nil {
		return nil, err
	}

	p := &models.Project{
		Name:        name,
		NameLower:   key,
		Description: htmlsanitize.SanitizeText(in.Description),
		Owner:       ownerID,
		Admins:      admins,
		Members:     unionIDs(members, admins),
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies patch. Owners and admins may update; a new name is checked
// for uniqueness among the owner's other projects.
func (s *Service) Update(ctx context.Context, projectID, actorID primitive.ObjectID, patch Patch) (*models.Project, error) {
	if patch.Empty() {
		return nil, apperr.Validation("At least one field must be provided.")
	}
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageProject(p, actorID); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.ErrProjectNameRequired
		}
		key := normalize.ProjectKey(name)
		exists, err := s.projects.ExistsName(ctx, p.Owner, key, p.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperr.ErrProjectNameExists
		}
		p.Name = name
		p.NameLower = key
	}
	if patch.Description != nil {
		p.Description = htmlsanitize.SanitizeText(*patch.Description)
	}

	if err := s.projects.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete soft-deletes the project and its tasks. Only the owner may delete.
// Inside a transaction a failed task cascade rolls the whole delete back and
// is returned. Without one the project stays flagged, the failure is logged,
// and the cascade sweeper finishes the job. It returns how many tasks were
// soft-deleted.
func (s *Service) Delete(ctx context.Context, projectID, actorID primitive.ObjectID) (int64, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if err := projectpolicy.RequireDeleteProject(p, actorID); err != nil {
		return 0, err
	}

	var swept int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// The transaction may retry fn, so work on a fresh copy each time.
		cp := *p
		if err := s.projects.SoftDelete(ctx, &cp); err != nil {
			return err
		}
		n, err := s.tasks.SoftDeleteByProjects(ctx, []primitive.ObjectID{cp.ID})
		if err != nil {
			if txn.Active(ctx) {
				return err
			}
			s.log.Warn("task cascade failed; sweeper will retry",
				zap.String("project_id", cp.ID.Hex()), zap.Error(err))
			return nil
		}
		swept = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

// AddMembers adds verified, active users to the member set. The owner and
// ids already present are skipped.
func (s *Service) AddMembers(ctx context.Context, projectID, actorID primitive.ObjectID, ids []primitive.ObjectID) (*models.Project, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageMembers(p, actorID); err != nil {
		return nil, err
	}

	ids = withoutOwner(ids, p.Owner)
	if err := s.requireActive(ctx, ids); err != nil {
		return nil, err
	}
	merged := unionIDs(p.Members, ids)
	if len(merged) == len(p.Members) {
		return p, nil
	}
	p.Members = merged
	if err := s.projects.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveMember drops targetID from members and admins. Admins may remove
// plain members; only the owner may remove another admin.
func (s *Service) RemoveMember(ctx context.Context, projectID, actorID, targetID primitive.ObjectID) (*models.Project, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageMembers(p, actorID); err != nil {
		return nil, err
	}
	if targetID == p.Owner {
		return nil, apperr.ErrCannotRemoveOwner
	}
	if !p.IsMember(targetID) && !p.IsAdmin(targetID) {
		return nil, apperr.ErrMemberNotFound
	}
	if p.IsAdmin(targetID) && !projectpolicy.CanManageAdmins(p, actorID) {
		return nil, apperr.ErrNotAuthorized
	}

	p.Members = models.RemoveID(p.Members, targetID)
	p.Admins = models.RemoveID(p.Admins, targetID)
	if err := s.projects.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddAdmins promotes users to admin, adding them to members when absent.
// Repeating a promotion is a no-op.
func (s *Service) AddAdmins(ctx context.Context, projectID, actorID primitive.ObjectID, ids []primitive.ObjectID) (*models.Project, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageAdmins(p, actorID); err != nil {
		return nil, err
	}

	ids = withoutOwner(ids, p.Owner)
	if err := s.requireActive(ctx, ids); err != nil {
		return nil, err
	}
	admins := unionIDs(p.Admins, ids)
	members := unionIDs(p.Members, ids)
	if len(admins) == len(p.Admins) && len(members) == len(p.Members) {
		return p, nil
	}
	p.Admins = admins
	p.Members = members
	if err := s.projects.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveAdmin demotes targetID. The user stays a member.
func (s *Service) RemoveAdmin(ctx context.Context, projectID, actorID, targetID primitive.ObjectID) (*models.Project, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageAdmins(p, actorID); err != nil {
		return nil, err
	}
	if targetID == p.Owner {
		return nil, apperr.ErrCannotRemoveOwner
	}
	if !p.IsAdmin(targetID) {
		return nil, apperr.ErrAdminNotFound
	}

	p.Admins = models.RemoveID(p.Admins, targetID)
	if err := s.projects.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the project with owner, admins and members resolved.
func (s *Service) Get(ctx context.Context, projectID, actorID primitive.ObjectID) (*ProjectView, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireViewProject(p, actorID); err != nil {
		return nil, err
	}

	ids := models.DedupeIDs(append(append([]primitive.ObjectID{p.Owner}, p.Admins...), p.Members...))
	sums, err := s.users.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.UserSummary, len(sums))
	for _, u := range sums {
		byID[u.ID] = u
	}
	pick := func(ids []primitive.ObjectID) []models.UserSummary {
		out := make([]models.UserSummary, 0, len(ids))
		for _, id := range ids {
			if u, ok := byID[id]; ok {
				out = append(out, u)
			}
		}
		return out
	}

	return &ProjectView{
		Project:     *p,
		OwnerUser:   byID[p.Owner],
		AdminUsers:  pick(p.Admins),
		MemberUsers: pick(p.Members),
		Role:        projectpolicy.RoleOf(p, actorID),
	}, nil
}

// ListMine pages through projects the actor owns, administers or belongs
// to, newest first.
func (s *Service) ListMine(ctx context.Context, actorID primitive.ObjectID, q Query) (paging.Page[models.Project], error) {
	pg := paging.Normalize(q.Page, q.Limit)
	items, total, err := s.projects.ListForUser(ctx, models.ProjectFilter{
		UserID: actorID,
		Search: normalize.SearchPattern(q.Search),
		Skip:   pg.Skip(),
		Limit:  int64(pg.Limit),
	})
	if err != nil {
		return paging.Page[models.Project]{}, err
	}
	return paging.Page[models.Project]{Items: items, Meta: paging.NewMeta(pg, total)}, nil
}

// requireActive fails with ErrInvalidUsers unless every id is a verified,
// live user. ids must be deduplicated.
func (s *Service) requireActive(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := s.users.CountVerifiedActive(ctx, ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return apperr.ErrInvalidUsers
	}
	return nil
}

func withoutOwner(ids []primitive.ObjectID, owner primitive.ObjectID) []primitive.ObjectID {
	return models.RemoveID(models.DedupeIDs(ids), owner)
}

// unionIDs appends the ids of add missing from base, keeping base's order.
func unionIDs(base, add []primitive.ObjectID) []primitive.ObjectID {
	return models.DedupeIDs(append(append([]primitive.ObjectID{}, base...), add...))
}
