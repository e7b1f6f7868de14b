// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the collections the service writes to and attaches
// JSON-Schema validators where the server supports collMod. Servers that
// reject validators are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if err := ensureCollection(ctx, db, coll, logger); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isUnsupported(err) {
				logger.Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
			return
		}
		logger.Debug("validator ensured", zap.String("collection", coll))
	}

	ensure("users", usersSchema())
	ensure("projects", projectsSchema())
	ensure("tasks", tasksSchema())
	ensure("otps", otpsSchema())
	ensure("token_blacklist", blacklistSchema())
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, logger *zap.Logger) error {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err == nil && len(names) > 0 {
		return nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExists(err) {
			return nil
		}
		return err
	}
	logger.Info("created collection", zap.String("collection", name))
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 48 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

// isUnsupported matches "no such command" (59) and "not implemented" (115)
// along with the message forms some Mongo-compatible servers return.
func isUnsupported(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || ce.Code == 115) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "no such command") ||
		strings.Contains(s, "not implemented") ||
		strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "email", "password_hash", "is_verified", "token_version"},
			"properties": bson.M{
				"name":          nonBlank,
				"name_ci":       nonBlank,
				"email":         nonBlank,
				"password_hash": nonBlank,
				"is_verified":   bson.M{"bsonType": "bool"},
				"is_deleted":    bson.M{"bsonType": "bool"},
				"token_version": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			},
		},
	}
}

func projectsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_lower", "owner", "admins", "members", "is_deleted"},
			"properties": bson.M{
				"name":       nonBlank,
				"name_lower": nonBlank,
				"owner":      bson.M{"bsonType": "objectId"},
				"admins":     bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"members":    bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"is_deleted": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func tasksSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "project_id", "assignees", "status", "due_date", "priority", "created_by"},
			"properties": bson.M{
				"title":      nonBlank,
				"project_id": bson.M{"bsonType": "objectId"},
				"created_by": bson.M{"bsonType": "objectId"},
				"due_date":   bson.M{"bsonType": "date"},
				"status":     bson.M{"enum": bson.A{"todo", "in_progress", "done"}},
				"priority":   bson.M{"enum": bson.A{"low", "medium", "high"}},
				"assignees": bson.M{
					"bsonType": "array",
					"minItems": 1,
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"user", "status"},
						"properties": bson.M{
							"user":   bson.M{"bsonType": "objectId"},
							"status": bson.M{"enum": bson.A{"todo", "done"}},
						},
					},
				},
			},
		},
	}
}

func otpsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "purpose", "code_hash", "expires_at"},
			"properties": bson.M{
				"user_id":    bson.M{"bsonType": "objectId"},
				"purpose":    bson.M{"enum": bson.A{"register", "forgot_password", "change_email"}},
				"code_hash":  nonBlank,
				"attempts":   bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"expires_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func blacklistSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"token", "expires_at"},
			"properties": bson.M{
				"token":      nonBlank,
				"expires_at": bson.M{"bsonType": "date"},
			},
		},
	}
}
