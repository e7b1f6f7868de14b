// internal/domain/models/task.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus is the aggregate status of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// AssigneeStatus is the per-assignee completion state.
type AssigneeStatus string

const (
	AssigneeTodo AssigneeStatus = "todo"
	AssigneeDone AssigneeStatus = "done"
)

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities low < medium < high. Unknown priorities rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

// Assignee is one roster entry on a task.
type Assignee struct {
	User        primitive.ObjectID `bson:"user" json:"user"`
	Status      AssigneeStatus     `bson:"status" json:"status"`
	AssignedAt  time.Time          `bson:"assigned_at" json:"assigned_at"`
	CompletedAt *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Task is a unit of work inside a project with one or more assignees.
type Task struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	TitleCI      string             `bson:"title_ci" json:"-"`
	Description  string             `bson:"description" json:"description"`
	ProjectID    primitive.ObjectID `bson:"project_id" json:"project_id"`
	Assignees    []Assignee         `bson:"assignees" json:"assignees"`
	Status       TaskStatus         `bson:"status" json:"status"`
	DueDate      time.Time          `bson:"due_date" json:"due_date"`
	Priority     Priority           `bson:"priority" json:"priority"`
	PriorityRank int                `bson:"priority_rank" json:"-"`
	CreatedBy    primitive.ObjectID `bson:"created_by" json:"created_by"`
	IsDeleted    bool               `bson:"is_deleted" json:"-"`
	Version      int64              `bson:"version" json:"version"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Entry returns the index of userID in the roster, or -1.
func (t *Task) Entry(userID primitive.ObjectID) int {
	for i, a := range t.Assignees {
		if a.User == userID {
			return i
		}
	}
	return -1
}

// AssigneeIDs returns the user ids on the roster in order.
func (t *Task) AssigneeIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		ids = append(ids, a.User)
	}
	return ids
}

// AllDone reports whether the roster is non-empty and every entry is done.
func (t *Task) AllDone() bool {
	if len(t.Assignees) == 0 {
		return false
	}
	for _, a := range t.Assignees {
		if a.Status != AssigneeDone {
			return false
		}
	}
	return true
}

// Recompute sets Status from the roster.
func (t *Task) Recompute() {
	t.Status = DeriveStatus(t.Assignees, t.Status)
}

// DeriveStatus computes the aggregate status of a roster.
//
// A task is done when every entry is done. Once any entry has been completed
// the task never returns to todo, so a task that was already past todo stays
// in progress until it is done again.
func DeriveStatus(roster []Assignee, previous TaskStatus) TaskStatus {
	if len(roster) == 0 {
		return previous
	}
	done := 0
	for _, a := range roster {
		if a.Status == AssigneeDone {
			done++
		}
	}
	switch {
	case done == len(roster):
		return StatusDone
	case done > 0:
		return StatusInProgress
	case previous != "" && previous != StatusTodo:
		return StatusInProgress
	default:
		return StatusTodo
	}
}
