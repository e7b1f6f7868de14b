// Package tasks implements task creation, the assignee roster, and the
// derived aggregate status.
//
// Status is recomputed from the roster on every roster change. Update is
// the one path that may write a status directly, and it is limited to
// owners, admins and the task's creator.
package tasks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/policy/projectpolicy"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/paging"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TaskRepo is implemented by taskstore.Store.
type TaskRepo interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	Create(ctx context.Context, t *models.Task) error
	Save(ctx context.Context, t *models.Task) error
	SoftDelete(ctx context.Context, t *models.Task) error
	List(ctx context.Context, f models.TaskFilter) ([]models.Task, int64, error)
}

// ProjectReader loads live projects.
type ProjectReader interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
}

// UserDirectory answers questions about referenced users.
type UserDirectory interface {
	CountVerifiedActive(ctx context.Context, ids []primitive.ObjectID) (int64, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) ([]models.UserSummary, error)
}

type Service struct {
	tasks    TaskRepo
	projects ProjectReader
	users    UserDirectory
	log      *zap.Logger
	now      func() time.Time
}

func New(tasks TaskRepo, projects ProjectReader, users UserDirectory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tasks: tasks, projects: projects, users: users, log: logger, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateInput carries the fields of a new task.
type CreateInput struct {
	Title       string
	Description string
	Assignees   []primitive.ObjectID
	Priority    models.Priority
	DueDate     time.Time
}

// Patch lists the fields Update may change. Nil means unchanged.
type Patch struct {
	Title       *string
	Description *string
	Priority    *models.Priority
	DueDate     *time.Time
	Status      *models.TaskStatus
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.DueDate == nil && p.Status == nil
}

// Query filters and pages task listings.
type Query struct {
	Page     int
	Limit    int
	Status   models.TaskStatus
	Priority models.Priority
	Assignee primitive.ObjectID
	DueFrom  *time.Time
	DueTo    *time.Time
	Search   string
	SortBy   models.TaskSort
	Order    string // "asc" or "desc"; anything else means desc
}

// TaskView is a task with its assignees resolved for display.
type TaskView struct {
	models.Task
	AssigneeUsers []models.UserSummary `json:"assignee_users"`
}

// load fetches a live task and its live parent. A task whose project is
// gone reads as not found.
func (s *Service) load(ctx context.Context, taskID primitive.ObjectID) (*models.Task, *models.Project, error) {
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.projects.Get(ctx, t.ProjectID)
	if errors.Is(err, apperr.ErrProjectNotFound) {
		return nil, nil, apperr.ErrTaskNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

// Create adds a task to a project. Only owners and admins create tasks, and
// every assignee must already belong to the project.
func (s *Service) Create(ctx context.Context, projectID, actorID primitive.ObjectID, in CreateInput) (*models.Task, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageProject(p, actorID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("Title is required.")
	}
	if in.DueDate.IsZero() {
		return nil, apperr.Validation("Due date is required.")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperr.Validation("Priority must be one of: low, medium, high.")
	}
	assignees := models.DedupeIDs(in.Assignees)
	if len(assignees) == 0 {
		return nil, apperr.Validation("At least one assignee is required.")
	}
	if err := s.requireEligible(ctx, p, assignees); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &models.Task{
		Title:       title,
		TitleCI:     strings.ToLower(title),
		Description: htmlsanitize.SanitizeText(in.Description),
		ProjectID:   p.ID,
		Status:      models.StatusTodo,
		Priority:    priority,
		DueDate:     in.DueDate.UTC(),
		CreatedBy:   actorID,
	}
	for _, id := range assignees {
		t.Assignees = append(t.Assignees, models.Assignee{User: id, Status: models.AssigneeTodo, AssignedAt: now})
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one task with assignee summaries. Any project participant may
// read it.
func (s *Service) Get(ctx context.Context, taskID, actorID primitive.ObjectID) (*TaskView, error) {
	t, p, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireViewProject(p, actorID); err != nil {
		return nil, err
	}
	return s.view(ctx, t)
}

// GetInProject is Get for routes nested under a project; a task from a
// different project reads as not found.
func (s *Service) GetInProject(ctx context.Context, projectID, taskID, actorID primitive.ObjectID) (*TaskView, error) {
	v, err := s.Get(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	if v.ProjectID != projectID {
		return nil, apperr.ErrTaskNotFound
	}
	return v, nil
}

func (s *Service) view(ctx context.Context, t *models.Task) (*TaskView, error) {
	sums, err := s.users.Summaries(ctx, t.AssigneeIDs())
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.UserSummary, len(sums))
	for _, u := range sums {
		byID[u.ID] = u
	}
	users := make([]models.UserSummary, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		if u, ok := byID[a.User]; ok {
			users = append(users, u)
		}
	}
	return &TaskView{Task: *t, AssigneeUsers: users}, nil
}

// SelfComplete marks the actor's roster entry done. Owners and admins
// complete every entry at once, whether or not they are assigned.
func (s *Service) SelfComplete(ctx context.Context, taskID, actorID primitive.ObjectID) (*models.Task, error) {
	t, p, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	if projectpolicy.CanManageProject(p, actorID) {
		if t.AllDone() {
			return nil, apperr.ErrAlreadyCompleted
		}
		for i := range t.Assignees {
			markDone(&t.Assignees[i], now)
		}
	} else {
		i := t.Entry(actorID)
		if i < 0 {
			return nil, apperr.ErrUserNotAssigned
		}
		if t.Assignees[i].Status == models.AssigneeDone {
			return nil, apperr.ErrAlreadyCompleted
		}
		markDone(&t.Assignees[i], now)
	}

	t.Recompute()
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func markDone(a *models.Assignee, at time.Time) {
	if a.Status == models.AssigneeDone {
		return
	}
	a.Status = models.AssigneeDone
	a.CompletedAt = &at
}

// AddAssignees appends project participants to the roster. Ids already on
// the roster are skipped, even if they have since left the project. The
// actor may not add themself.
func (s *Service) AddAssignees(ctx context.Context, taskID, actorID primitive.ObjectID, ids []primitive.ObjectID) (*models.Task, error) {
	t, p, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageTask(p, t, actorID); err != nil {
		return nil, err
	}

	ids = models.DedupeIDs(ids)
	if len(ids) == 0 {
		return nil, apperr.Validation("At least one assignee is required.")
	}
	if models.ContainsID(ids, actorID) {
		return nil, apperr.ErrCannotAssignSelf
	}

	// Rostered ids are skipped before eligibility is checked, so a rostered
	// user who has since left the project does not block new additions.
	var fresh []primitive.ObjectID
	for _, id := range ids {
		if t.Entry(id) < 0 {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return t, nil
	}
	if err := s.requireEligible(ctx, p, fresh); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for _, id := range fresh {
		t.Assignees = append(t.Assignees, models.Assignee{User: id, Status: models.AssigneeTodo, AssignedAt: now})
	}

	t.Recompute()
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// RemoveAssignee takes targetID off the roster. The last entry can never be
// removed.
func (s *Service) RemoveAssignee(ctx context.Context, taskID, actorID, targetID primitive.ObjectID) (*models.Task, error) {
	t, p, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageTask(p, t, actorID); err != nil {
		return nil, err
	}

	i := t.Entry(targetID)
	if i < 0 {
		return nil, apperr.ErrUserNotAssigned
	}
	if len(t.Assignees) == 1 {
		return nil, apperr.ErrCannotRemoveLastAssignee
	}
	t.Assignees = append(t.Assignees[:i:i], t.Assignees[i+1:]...)

	t.Recompute()
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update writes the patched fields as given, status included.
func (s *Service) Update(ctx context.Context, taskID, actorID primitive.ObjectID, patch Patch) (*models.Task, error) {
	if patch.Empty() {
		return nil, apperr.Validation("At least one field must be provided.")
	}
	t, p, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageTask(p, t, actorID); err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Validation("Title is required.")
		}
		t.Title = title
		t.TitleCI = strings.ToLower(title)
	}
	if patch.Description != nil {
		t.Description = htmlsanitize.SanitizeText(*patch.Description)
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, apperr.Validation("Priority must be one of: low, medium, high.")
		}
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		if patch.DueDate.IsZero() {
			return nil, apperr.Validation("Due date is required.")
		}
		t.DueDate = patch.DueDate.UTC()
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperr.Validation("Status must be one of: todo, in_progress, done.")
		}
		t.Status = *patch.Status
	}

	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete soft-deletes the task and returns it as it was.
func (s *Service) Delete(ctx context.Context, taskID, actorID primitive.ObjectID) (*models.Task, error) {
	t, p, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := projectpolicy.RequireManageTask(p, t, actorID); err != nil {
		return nil, err
	}
	if err := s.tasks.SoftDelete(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListProject lists a project's tasks for any participant.
func (s *Service) ListProject(ctx context.Context, projectID, actorID primitive.ObjectID, q Query) (paging.Page[models.Task], error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return paging.Page[models.Task]{}, err
	}
	if err := projectpolicy.RequireViewProject(p, actorID); err != nil {
		return paging.Page[models.Task]{}, err
	}
	f := filterFor(q)
	f.ProjectID = p.ID
	return s.list(ctx, q, f)
}

// ListMine lists tasks the actor is assigned to.
func (s *Service) ListMine(ctx context.Context, actorID primitive.ObjectID, q Query) (paging.Page[models.Task], error) {
	f := filterFor(q)
	f.Assignees = models.DedupeIDs(append([]primitive.ObjectID{actorID}, f.Assignees...))
	return s.list(ctx, q, f)
}

// ListCreatedByMe lists tasks the actor created.
func (s *Service) ListCreatedByMe(ctx context.Context, actorID primitive.ObjectID, q Query) (paging.Page[models.Task], error) {
	f := filterFor(q)
	f.CreatedBy = actorID
	return s.list(ctx, q, f)
}

func (s *Service) list(ctx context.Context, q Query, f models.TaskFilter) (paging.Page[models.Task], error) {
	if f.Status != "" && !f.Status.Valid() {
		return paging.Page[models.Task]{}, apperr.Validation("Status must be one of: todo, in_progress, done.")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return paging.Page[models.Task]{}, apperr.Validation("Priority must be one of: low, medium, high.")
	}
	if !f.SortBy.Valid() {
		return paging.Page[models.Task]{}, apperr.Validation("Sort must be one of: created_at, due_date, priority.")
	}
	pg := paging.Normalize(q.Page, q.Limit)
	f.Skip = pg.Skip()
	f.Limit = int64(pg.Limit)

	items, total, err := s.tasks.List(ctx, f)
	if err != nil {
		return paging.Page[models.Task]{}, err
	}
	return paging.Page[models.Task]{Items: items, Meta: paging.NewMeta(pg, total)}, nil
}

func filterFor(q Query) models.TaskFilter {
	f := models.TaskFilter{
		Status:   q.Status,
		Priority: q.Priority,
		DueFrom:  q.DueFrom,
		DueTo:    q.DueTo,
		Search:   normalize.SearchPattern(q.Search),
		SortBy:   q.SortBy,
		Desc:     !strings.EqualFold(q.Order, "asc"),
	}
	if f.SortBy == "" {
		f.SortBy = models.SortCreatedAt
	}
	if !q.Assignee.IsZero() {
		f.Assignees = []primitive.ObjectID{q.Assignee}
	}
	return f
}

// requireEligible checks that every id participates in p and is a
// verified, live user. ids must be deduplicated.
func (s *Service) requireEligible(ctx context.Context, p *models.Project, ids []primitive.ObjectID) error {
	for _, id := range ids {
		if !projectpolicy.InProject(p, id) {
			return apperr.ErrUserNotInProject
		}
	}
	n, err := s.users.CountVerifiedActive(ctx, ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return apperr.ErrInvalidAssignees
	}
	return nil
}
