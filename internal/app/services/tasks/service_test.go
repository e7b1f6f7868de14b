package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/projects"
	"github.com/dalemusser/taskhub/internal/app/services/tasks"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type env struct {
	mem      *testutil.MemStore
	svc      *tasks.Service
	projects *projects.Service
	ctx      context.Context
	project  *models.Project

	owner, admin, a, b, c, outsider models.User
}

// setup builds project "Sprint": owner O, admin, members A, B and C.
func setup(t *testing.T) *env {
	t.Helper()
	mem := testutil.NewMemStore()
	e := &env{
		mem:      mem,
		svc:      tasks.New(mem.Tasks, mem.Projects, mem.Users, nil),
		projects: projects.New(mem.Projects, mem.Users, mem.Tasks, mem.Tx, nil),
		ctx:      context.Background(),
		owner:    mem.User("Owner"),
		admin:    mem.User("Admin"),
		a:        mem.User("Ann"),
		b:        mem.User("Ben"),
		c:        mem.User("Cal"),
		outsider: mem.User("Out"),
	}
	p, err := e.projects.Create(e.ctx, e.owner.ID, projects.CreateInput{
		Name:    "Sprint",
		Admins:  ids(e.admin),
		Members: ids(e.a, e.b, e.c),
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	e.project = p
	return e
}

func ids(us ...models.User) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(us))
	for _, u := range us {
		out = append(out, u.ID)
	}
	return out
}

var due = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func (e *env) task(t *testing.T, title string, assignees ...models.User) *models.Task {
	t.Helper()
	task, err := e.svc.Create(e.ctx, e.project.ID, e.owner.ID, tasks.CreateInput{
		Title:     title,
		Assignees: ids(assignees...),
		DueDate:   due,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func assertStatusInvariant(t *testing.T, task *models.Task) {
	t.Helper()
	if len(task.Assignees) == 0 {
		t.Fatal("roster is empty")
	}
	if (task.Status == models.StatusDone) != task.AllDone() {
		t.Errorf("status %s disagrees with roster %+v", task.Status, task.Assignees)
	}
}

func TestLifecycleScenario(t *testing.T) {
	e := setup(t)

	task := e.task(t, "Fix bug", e.a, e.b)
	if task.Status != models.StatusTodo || task.Priority != models.PriorityMedium {
		t.Fatalf("new task: status %s priority %s", task.Status, task.Priority)
	}

	task, err := e.svc.SelfComplete(e.ctx, task.ID, e.a.ID)
	if err != nil {
		t.Fatalf("A completes: %v", err)
	}
	if task.Status != models.StatusInProgress {
		t.Errorf("after A: %s, want in_progress", task.Status)
	}
	if a := task.Assignees[task.Entry(e.a.ID)]; a.Status != models.AssigneeDone || a.CompletedAt == nil {
		t.Errorf("A's entry = %+v", a)
	}

	task, err = e.svc.SelfComplete(e.ctx, task.ID, e.b.ID)
	if err != nil {
		t.Fatalf("B completes: %v", err)
	}
	if task.Status != models.StatusDone {
		t.Errorf("after B: %s, want done", task.Status)
	}

	task, err = e.svc.AddAssignees(e.ctx, task.ID, e.owner.ID, ids(e.c))
	if err != nil {
		t.Fatalf("add C: %v", err)
	}
	if task.Status != models.StatusInProgress {
		t.Errorf("after adding C: %s, want in_progress", task.Status)
	}
	assertStatusInvariant(t, task)
}

func TestCreate_Errors(t *testing.T) {
	e := setup(t)
	unverified := e.mem.UnverifiedUser("Una")
	// Put the unverified user on the member list directly, as if they had
	// been members before losing verified status.
	p, _ := e.mem.Projects.Get(e.ctx, e.project.ID)
	p.Members = append(p.Members, unverified.ID)
	if err := e.mem.Projects.Save(e.ctx, p); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		actor primitive.ObjectID
		in    tasks.CreateInput
		want  error
	}{
		{"member cannot create", e.a.ID, tasks.CreateInput{Title: "x", Assignees: ids(e.b), DueDate: due}, apperr.ErrNotAuthorized},
		{"outsider assignee", e.owner.ID, tasks.CreateInput{Title: "x", Assignees: ids(e.outsider), DueDate: due}, apperr.ErrUserNotInProject},
		{"unverified assignee", e.owner.ID, tasks.CreateInput{Title: "x", Assignees: []primitive.ObjectID{unverified.ID}, DueDate: due}, apperr.ErrInvalidAssignees},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Create(e.ctx, e.project.ID, tt.actor, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	validation := []tasks.CreateInput{
		{Title: " ", Assignees: ids(e.a), DueDate: due},
		{Title: "x", Assignees: ids(e.a)},
		{Title: "x", DueDate: due},
		{Title: "x", Assignees: ids(e.a), DueDate: due, Priority: "urgent"},
	}
	for i, in := range validation {
		if _, err := e.svc.Create(e.ctx, e.project.ID, e.owner.ID, in); apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("case %d: err = %v, want validation", i, err)
		}
	}

	if _, err := e.svc.Create(e.ctx, primitive.NewObjectID(), e.owner.ID, tasks.CreateInput{Title: "x", Assignees: ids(e.a), DueDate: due}); !errors.Is(err, apperr.ErrProjectNotFound) {
		t.Errorf("unknown project err = %v", err)
	}

	// Admins may create; duplicates and the owner are fine as assignees.
	task, err := e.svc.Create(e.ctx, e.project.ID, e.admin.ID, tasks.CreateInput{
		Title: "ok", Assignees: ids(e.a, e.a, e.owner), DueDate: due, Priority: models.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if len(task.Assignees) != 2 || task.CreatedBy != e.admin.ID {
		t.Errorf("task = %+v", task)
	}
}

func TestSelfComplete(t *testing.T) {
	e := setup(t)

	t.Run("not assigned", func(t *testing.T) {
		task := e.task(t, "one", e.a)
		if _, err := e.svc.SelfComplete(e.ctx, task.ID, e.b.ID); !errors.Is(err, apperr.ErrUserNotAssigned) {
			t.Errorf("err = %v, want ErrUserNotAssigned", err)
		}
	})

	t.Run("already completed", func(t *testing.T) {
		task := e.task(t, "two", e.a, e.b)
		if _, err := e.svc.SelfComplete(e.ctx, task.ID, e.a.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := e.svc.SelfComplete(e.ctx, task.ID, e.a.ID); !errors.Is(err, apperr.ErrAlreadyCompleted) {
			t.Errorf("err = %v, want ErrAlreadyCompleted", err)
		}
	})

	t.Run("admin force-completes", func(t *testing.T) {
		task := e.task(t, "three", e.a, e.b)
		got, err := e.svc.SelfComplete(e.ctx, task.ID, e.admin.ID)
		if err != nil {
			t.Fatalf("force complete: %v", err)
		}
		if got.Status != models.StatusDone || !got.AllDone() {
			t.Errorf("status = %s roster = %+v", got.Status, got.Assignees)
		}
		for _, a := range got.Assignees {
			if a.CompletedAt == nil {
				t.Errorf("entry %s has no completion time", a.User.Hex())
			}
		}
		if _, err := e.svc.SelfComplete(e.ctx, task.ID, e.owner.ID); !errors.Is(err, apperr.ErrAlreadyCompleted) {
			t.Errorf("second force err = %v, want ErrAlreadyCompleted", err)
		}
	})

	t.Run("force keeps earlier completion time", func(t *testing.T) {
		early := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)
		e.svc.SetClock(func() time.Time { return early })
		task := e.task(t, "four", e.a, e.b)
		if _, err := e.svc.SelfComplete(e.ctx, task.ID, e.a.ID); err != nil {
			t.Fatal(err)
		}
		e.svc.SetClock(time.Now)
		got, err := e.svc.SelfComplete(e.ctx, task.ID, e.owner.ID)
		if err != nil {
			t.Fatal(err)
		}
		if at := got.Assignees[got.Entry(e.a.ID)].CompletedAt; at == nil || !at.Equal(early) {
			t.Errorf("A's completion time = %v, want %v", at, early)
		}
	})
}

func TestAssignees(t *testing.T) {
	e := setup(t)
	task := e.task(t, "roster", e.a)

	tests := []struct {
		name  string
		actor primitive.ObjectID
		add   []primitive.ObjectID
		want  error
	}{
		{"self", e.owner.ID, ids(e.owner, e.b), apperr.ErrCannotAssignSelf},
		{"outsider", e.owner.ID, ids(e.outsider), apperr.ErrUserNotInProject},
		{"plain member", e.c.ID, ids(e.b), apperr.ErrNotAuthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.AddAssignees(e.ctx, task.ID, tt.actor, tt.add)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	got, err := e.svc.AddAssignees(e.ctx, task.ID, e.owner.ID, ids(e.a, e.b, e.b))
	if err != nil {
		t.Fatalf("AddAssignees: %v", err)
	}
	if len(got.Assignees) != 2 {
		t.Errorf("roster size = %d, want 2", len(got.Assignees))
	}

	if _, err := e.svc.RemoveAssignee(e.ctx, task.ID, e.owner.ID, e.c.ID); !errors.Is(err, apperr.ErrUserNotAssigned) {
		t.Errorf("remove non-assignee err = %v", err)
	}
	if _, err := e.svc.SelfComplete(e.ctx, task.ID, e.a.ID); err != nil {
		t.Fatal(err)
	}
	got, err = e.svc.RemoveAssignee(e.ctx, task.ID, e.admin.ID, e.b.ID)
	if err != nil {
		t.Fatalf("RemoveAssignee: %v", err)
	}
	if got.Status != models.StatusDone {
		t.Errorf("remaining roster all done, status = %s", got.Status)
	}
	if _, err := e.svc.RemoveAssignee(e.ctx, task.ID, e.owner.ID, e.a.ID); !errors.Is(err, apperr.ErrCannotRemoveLastAssignee) {
		t.Errorf("remove last err = %v, want ErrCannotRemoveLastAssignee", err)
	}
	stored, _ := e.mem.Tasks.Get(e.ctx, task.ID)
	assertStatusInvariant(t, stored)
}

func TestCreatorMayManage(t *testing.T) {
	e := setup(t)
	task, err := e.svc.Create(e.ctx, e.project.ID, e.admin.ID, tasks.CreateInput{Title: "mine", Assignees: ids(e.a), DueDate: due})
	if err != nil {
		t.Fatal(err)
	}
	// Demote the creator to a plain member; creator rights remain.
	if _, err := e.projects.RemoveAdmin(e.ctx, e.project.ID, e.owner.ID, e.admin.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.AddAssignees(e.ctx, task.ID, e.admin.ID, ids(e.b)); err != nil {
		t.Errorf("creator adding assignee: %v", err)
	}
	title := "renamed"
	if _, err := e.svc.Update(e.ctx, task.ID, e.b.ID, tasks.Patch{Title: &title}); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("non-creator member update err = %v", err)
	}
	if _, err := e.svc.Delete(e.ctx, task.ID, e.admin.ID); err != nil {
		t.Errorf("creator delete: %v", err)
	}
	if _, err := e.svc.Get(e.ctx, task.ID, e.owner.ID); !errors.Is(err, apperr.ErrTaskNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestUpdate(t *testing.T) {
	e := setup(t)
	task := e.task(t, "draft", e.a)

	title := "  Final  "
	status := models.StatusDone
	pr := models.PriorityLow
	got, err := e.svc.Update(e.ctx, task.ID, e.owner.ID, tasks.Patch{Title: &title, Status: &status, Priority: &pr})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "Final" || got.TitleCI != "final" || got.Status != models.StatusDone || got.Priority != models.PriorityLow {
		t.Errorf("task = %+v", got)
	}
	if got.Version != task.Version+1 {
		t.Errorf("version = %d, want %d", got.Version, task.Version+1)
	}

	bad := models.TaskStatus("archived")
	if _, err := e.svc.Update(e.ctx, task.ID, e.owner.ID, tasks.Patch{Status: &bad}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad status err = %v", err)
	}
	if _, err := e.svc.Update(e.ctx, task.ID, e.owner.ID, tasks.Patch{}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("empty patch err = %v", err)
	}
}

func TestAddAssignees_SkipsRosteredUserWhoLeftProject(t *testing.T) {
	e := setup(t)
	task := e.task(t, "ship", e.a, e.b)
	if _, err := e.projects.RemoveMember(e.ctx, e.project.ID, e.owner.ID, e.b.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}

	got, err := e.svc.AddAssignees(e.ctx, task.ID, e.owner.ID, ids(e.b, e.c))
	if err != nil {
		t.Fatalf("AddAssignees: %v", err)
	}
	if len(got.Assignees) != 3 || got.Entry(e.c.ID) < 0 {
		t.Errorf("assignees = %+v, want A, B and C", got.Assignees)
	}
	assertStatusInvariant(t, got)

	// Nothing new to add: no eligibility check, no write.
	again, err := e.svc.AddAssignees(e.ctx, task.ID, e.owner.ID, ids(e.b))
	if err != nil {
		t.Fatalf("AddAssignees rostered only: %v", err)
	}
	if again.Version != got.Version {
		t.Errorf("version = %d, want unchanged %d", again.Version, got.Version)
	}

	if _, err := e.svc.AddAssignees(e.ctx, task.ID, e.owner.ID, ids(e.outsider)); !errors.Is(err, apperr.ErrUserNotInProject) {
		t.Errorf("outsider err = %v, want ErrUserNotInProject", err)
	}
}

func TestDescription_StoredAsPlainText(t *testing.T) {
	e := setup(t)
	task, err := e.svc.Create(e.ctx, e.project.ID, e.owner.ID, tasks.CreateInput{
		Title:       "notes",
		Description: "Don't & a < b",
		Assignees:   ids(e.a),
		DueDate:     due,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Description != "Don't & a < b" {
		t.Errorf("created description = %q", task.Description)
	}

	desc := "Don't break Tom & Jerry: a < b <script>x()</script>"
	got, err := e.svc.Update(e.ctx, task.ID, e.owner.ID, tasks.Patch{Description: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if want := "Don't break Tom & Jerry: a < b"; got.Description != want {
		t.Errorf("updated description = %q, want %q", got.Description, want)
	}
	raw, _ := e.mem.Tasks.Raw(task.ID)
	if raw.Description != got.Description {
		t.Errorf("stored description = %q, want %q", raw.Description, got.Description)
	}
}

func TestGet(t *testing.T) {
	e := setup(t)
	task := e.task(t, "view", e.a, e.b)

	v, err := e.svc.GetInProject(e.ctx, e.project.ID, task.ID, e.c.ID)
	if err != nil {
		t.Fatalf("member Get: %v", err)
	}
	if len(v.AssigneeUsers) != 2 || v.AssigneeUsers[0].ID != e.a.ID {
		t.Errorf("assignee users = %+v", v.AssigneeUsers)
	}
	if _, err := e.svc.Get(e.ctx, task.ID, e.outsider.ID); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("outsider err = %v", err)
	}
	if _, err := e.svc.GetInProject(e.ctx, primitive.NewObjectID(), task.ID, e.owner.ID); !errors.Is(err, apperr.ErrTaskNotFound) {
		t.Errorf("wrong project err = %v", err)
	}

	if _, err := e.projects.Delete(e.ctx, e.project.ID, e.owner.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Get(e.ctx, task.ID, e.owner.ID); !errors.Is(err, apperr.ErrTaskNotFound) {
		t.Errorf("after project delete err = %v", err)
	}
}

func TestGetTaskOfDeletedProjectBeforeSweep(t *testing.T) {
	e := setup(t)
	task := e.task(t, "orphan", e.a)
	e.mem.Tasks.FailCascade = errors.New("down")
	if _, err := e.projects.Delete(e.ctx, e.project.ID, e.owner.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.SelfComplete(e.ctx, task.ID, e.a.ID); !errors.Is(err, apperr.ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestListings(t *testing.T) {
	e := setup(t)
	mk := func(title string, pr models.Priority, dueIn time.Duration, creator models.User, assignees ...models.User) *models.Task {
		task, err := e.svc.Create(e.ctx, e.project.ID, creator.ID, tasks.CreateInput{
			Title: title, Priority: pr, DueDate: due.Add(dueIn), Assignees: ids(assignees...),
		})
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		return task
	}
	mk("Write API docs", models.PriorityLow, 48*time.Hour, e.owner, e.a)
	mk("Fix login", models.PriorityHigh, 24*time.Hour, e.admin, e.a, e.b)
	mk("Api tests", models.PriorityMedium, 72*time.Hour, e.owner, e.b)
	done := mk("Deploy", models.PriorityHigh, 0, e.admin, e.a)
	if _, err := e.svc.SelfComplete(e.ctx, done.ID, e.a.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		list      func() (int64, []models.Task, error)
		wantTotal int64
		wantFirst string
	}{
		{"project by due date asc", func() (int64, []models.Task, error) {
			p, err := e.svc.ListProject(e.ctx, e.project.ID, e.c.ID, tasks.Query{SortBy: models.SortDueDate, Order: "asc"})
			return p.Meta.Total, p.Items, err
		}, 4, "Deploy"},
		{"project priority desc", func() (int64, []models.Task, error) {
			p, err := e.svc.ListProject(e.ctx, e.project.ID, e.owner.ID, tasks.Query{SortBy: models.SortPriority, Status: models.StatusTodo})
			return p.Meta.Total, p.Items, err
		}, 3, "Fix login"},
		{"project search", func() (int64, []models.Task, error) {
			p, err := e.svc.ListProject(e.ctx, e.project.ID, e.owner.ID, tasks.Query{Search: "API", SortBy: models.SortDueDate, Order: "asc"})
			return p.Meta.Total, p.Items, err
		}, 2, "Write API docs"},
		{"project by assignee", func() (int64, []models.Task, error) {
			p, err := e.svc.ListProject(e.ctx, e.project.ID, e.owner.ID, tasks.Query{Assignee: e.b.ID, SortBy: models.SortDueDate, Order: "asc"})
			return p.Meta.Total, p.Items, err
		}, 2, "Fix login"},
		{"mine done", func() (int64, []models.Task, error) {
			p, err := e.svc.ListMine(e.ctx, e.a.ID, tasks.Query{Status: models.StatusDone})
			return p.Meta.Total, p.Items, err
		}, 1, "Deploy"},
		{"mine shared with b", func() (int64, []models.Task, error) {
			p, err := e.svc.ListMine(e.ctx, e.a.ID, tasks.Query{Assignee: e.b.ID})
			return p.Meta.Total, p.Items, err
		}, 1, "Fix login"},
		{"created by admin, due window", func() (int64, []models.Task, error) {
			from, to := due.Add(time.Hour), due.Add(30*time.Hour)
			p, err := e.svc.ListCreatedByMe(e.ctx, e.admin.ID, tasks.Query{DueFrom: &from, DueTo: &to})
			return p.Meta.Total, p.Items, err
		}, 1, "Fix login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, items, err := tt.list()
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(items) == 0 || items[0].Title != tt.wantFirst {
				t.Errorf("first = %v, want %q", items, tt.wantFirst)
			}
		})
	}

	if _, err := e.svc.ListProject(e.ctx, e.project.ID, e.outsider.ID, tasks.Query{}); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("outsider list err = %v", err)
	}
	if _, err := e.svc.ListMine(e.ctx, e.a.ID, tasks.Query{SortBy: "title"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad sort err = %v", err)
	}

	page, err := e.svc.ListProject(e.ctx, e.project.ID, e.owner.ID, tasks.Query{Page: 2, Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Meta.Pages != 2 {
		t.Errorf("page 2: items=%d meta=%+v", len(page.Items), page.Meta)
	}
}
