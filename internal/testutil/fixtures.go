package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures inserts test documents straight into a Mongo test database.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// NewUser builds a verified user document. The email is derived from name.
func NewUser(name string) models.User {
	now := time.Now().UTC()
	return models.User{
		ID:         primitive.NewObjectID(),
		Name:       name,
		NameCI:     text.Fold(name),
		Email:      strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@test.com",
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CreateUser inserts a verified user.
func (f *Fixtures) CreateUser(ctx context.Context, name string) models.User {
	f.t.Helper()
	u := NewUser(name)
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateUnverifiedUser inserts a user who never confirmed the register code.
func (f *Fixtures) CreateUnverifiedUser(ctx context.Context, name string) models.User {
	f.t.Helper()
	u := NewUser(name)
	u.IsVerified = false
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create unverified test user: %v", err)
	}
	return u
}

// NewProject builds a live project document. Every admin is also listed as
// a member.
func NewProject(name string, owner primitive.ObjectID, admins, members []primitive.ObjectID) models.Project {
	now := time.Now().UTC()
	all := models.DedupeIDs(append(append([]primitive.ObjectID{}, members...), admins...))
	if admins == nil {
		admins = []primitive.ObjectID{}
	}
	return models.Project{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameLower: strings.ToLower(strings.TrimSpace(name)),
		Owner:     owner,
		Admins:    admins,
		Members:   all,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateProject inserts a live project.
func (f *Fixtures) CreateProject(ctx context.Context, name string, owner primitive.ObjectID, admins, members []primitive.ObjectID) models.Project {
	f.t.Helper()
	p := NewProject(name, owner, admins, members)
	if _, err := f.db.Collection("projects").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test project: %v", err)
	}
	return p
}

// NewTask builds a todo task due in a week with every assignee at todo.
func NewTask(title string, projectID, creator primitive.ObjectID, assignees ...primitive.ObjectID) models.Task {
	now := time.Now().UTC()
	t := models.Task{
		ID:           primitive.NewObjectID(),
		Title:        title,
		TitleCI:      strings.ToLower(title),
		ProjectID:    projectID,
		Status:       models.StatusTodo,
		Priority:     models.PriorityMedium,
		PriorityRank: models.PriorityMedium.Rank(),
		DueDate:      now.Add(7 * 24 * time.Hour),
		CreatedBy:    creator,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, a := range assignees {
		t.Assignees = append(t.Assignees, models.Assignee{User: a, Status: models.AssigneeTodo, AssignedAt: now})
	}
	return t
}

// CreateTask inserts a task.
func (f *Fixtures) CreateTask(ctx context.Context, title string, projectID, creator primitive.ObjectID, assignees ...primitive.ObjectID) models.Task {
	f.t.Helper()
	t := NewTask(title, projectID, creator, assignees...)
	if _, err := f.db.Collection("tasks").InsertOne(ctx, t); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}
	return t
}

// User stores a verified user in the in-memory repositories.
func (m *MemStore) User(name string) models.User {
	return m.Users.Put(NewUser(name))
}

// UnverifiedUser stores a user who has not confirmed the register code.
func (m *MemStore) UnverifiedUser(name string) models.User {
	u := NewUser(name)
	u.IsVerified = false
	return m.Users.Put(u)
}

// DeletedUser stores a verified but soft-deleted user.
func (m *MemStore) DeletedUser(name string) models.User {
	u := NewUser(name)
	u.IsDeleted = true
	return m.Users.Put(u)
}
