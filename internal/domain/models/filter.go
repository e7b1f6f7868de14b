package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectFilter selects the live projects one user belongs to.
type ProjectFilter struct {
	UserID primitive.ObjectID // owner, admin or member
	Search string             // lowercase substring of name, already regex-escaped
	Skip   int64
	Limit  int64
}

// TaskSort names a sortable task field.
type TaskSort string

const (
	SortCreatedAt TaskSort = "created_at"
	SortDueDate   TaskSort = "due_date"
	SortPriority  TaskSort = "priority"
)

// Valid reports whether s is a known sort key.
func (s TaskSort) Valid() bool {
	switch s {
	case SortCreatedAt, SortDueDate, SortPriority:
		return true
	}
	return false
}

// TaskFilter selects live tasks. Zero-valued fields do not constrain.
type TaskFilter struct {
	ProjectID primitive.ObjectID
	CreatedBy primitive.ObjectID
	Assignees []primitive.ObjectID // every id must be on the roster
	Status    TaskStatus
	Priority  Priority
	DueFrom   *time.Time
	DueTo     *time.Time
	Search    string // lowercase substring of title, already regex-escaped

	SortBy TaskSort
	Desc   bool
	Skip   int64
	Limit  int64
}
