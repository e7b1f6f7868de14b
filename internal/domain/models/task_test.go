package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func roster(statuses ...AssigneeStatus) []Assignee {
	out := make([]Assignee, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Assignee{User: primitive.NewObjectID(), Status: s})
	}
	return out
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		roster   []Assignee
		previous TaskStatus
		want     TaskStatus
	}{
		{"fresh roster", roster(AssigneeTodo, AssigneeTodo), StatusTodo, StatusTodo},
		{"one of two done", roster(AssigneeDone, AssigneeTodo), StatusTodo, StatusInProgress},
		{"all done", roster(AssigneeDone, AssigneeDone), StatusInProgress, StatusDone},
		{"single done", roster(AssigneeDone), StatusTodo, StatusDone},
		{"new assignee after done", roster(AssigneeDone, AssigneeDone, AssigneeTodo), StatusDone, StatusInProgress},
		{"touched task never returns to todo", roster(AssigneeTodo), StatusInProgress, StatusInProgress},
		{"done task with only todo entries left", roster(AssigneeTodo), StatusDone, StatusInProgress},
		{"empty previous treated as todo", roster(AssigneeTodo), "", StatusTodo},
		{"empty roster keeps previous", nil, StatusInProgress, StatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.roster, tt.previous); got != tt.want {
				t.Errorf("DeriveStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTask_EntryAndAllDone(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	task := Task{Assignees: []Assignee{{User: a, Status: AssigneeDone}, {User: b, Status: AssigneeTodo}}}

	if got := task.Entry(b); got != 1 {
		t.Errorf("Entry(b) = %d, want 1", got)
	}
	if got := task.Entry(primitive.NewObjectID()); got != -1 {
		t.Errorf("Entry(unknown) = %d, want -1", got)
	}
	if task.AllDone() {
		t.Error("AllDone() = true with a todo entry")
	}
	task.Assignees[1].Status = AssigneeDone
	if !task.AllDone() {
		t.Error("AllDone() = false with every entry done")
	}
	if (&Task{}).AllDone() {
		t.Error("AllDone() = true for an empty roster")
	}
}

func TestPriorityRank(t *testing.T) {
	if !(PriorityLow.Rank() < PriorityMedium.Rank() && PriorityMedium.Rank() < PriorityHigh.Rank()) {
		t.Error("priority ranks are not ordered low < medium < high")
	}
	if Priority("urgent").Valid() {
		t.Error("unknown priority reported valid")
	}
}

func TestDedupeIDs(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	got := DedupeIDs([]primitive.ObjectID{a, b, a, primitive.NilObjectID, b})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("DedupeIDs() = %v, want [%v %v]", got, a, b)
	}
}
