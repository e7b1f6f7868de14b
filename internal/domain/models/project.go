// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project groups tasks and the users allowed to work on them.
//
// Invariants maintained by the projects service:
//   - Owner never appears in Admins or Members.
//   - Every admin is also a member.
//   - (Owner, NameLower) is unique among projects that are not deleted.
type Project struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	NameLower   string               `bson:"name_lower" json:"-"`
	Description string               `bson:"description" json:"description"`
	Owner       primitive.ObjectID   `bson:"owner" json:"owner"`
	Admins      []primitive.ObjectID `bson:"admins" json:"admins"`
	Members     []primitive.ObjectID `bson:"members" json:"members"`
	IsDeleted   bool                 `bson:"is_deleted" json:"-"`
	Version     int64                `bson:"version" json:"version"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether id is listed as an admin.
func (p Project) IsAdmin(id primitive.ObjectID) bool {
	return ContainsID(p.Admins, id)
}

// IsMember reports whether id is listed as a member.
func (p Project) IsMember(id primitive.ObjectID) bool {
	return ContainsID(p.Members, id)
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// RemoveID returns ids without any occurrence of id. The input is not modified.
func RemoveID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// DedupeIDs returns ids in first-seen order with duplicates and zero ids removed.
func DedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
