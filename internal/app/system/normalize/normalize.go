// Package normalize holds the canonical forms used for lookups and
// uniqueness checks so every code path compares values the same way.
package normalize

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name. Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// ProjectKey is the uniqueness key of a project name: trimmed and lowercased,
// so " Alpha " and "alpha" collide.
func ProjectKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a free-text query parameter.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// SearchPattern turns free text into a case-insensitive substring regex with
// all metacharacters escaped. It returns "" for blank input.
func SearchPattern(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return regexp.QuoteMeta(strings.ToLower(s))
}

// ObjectIDs parses hex ids, dropping duplicates while keeping first-seen order.
// The first malformed id is returned as the error value's input.
func ObjectIDs(hexes []string) ([]primitive.ObjectID, error) {
	seen := make(map[primitive.ObjectID]struct{}, len(hexes))
	out := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(h))
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
