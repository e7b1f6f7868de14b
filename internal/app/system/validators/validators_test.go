package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/validators"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
			t.Fatalf("EnsureAll run %d failed: %v", i+1, err)
		}
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{"users", "projects", "tasks", "otps", "token_blacklist", "audit_events"} {
		if !have[want] {
			t.Errorf("expected collection %q to exist", want)
		}
	}
}

func TestCollectionValidators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	owner := primitive.NewObjectID()
	now := time.Now().UTC()

	tests := []struct {
		name    string
		coll    string
		doc     bson.M
		wantErr bool
	}{
		{"user missing fields", "users", bson.M{"name": "x"}, true},
		{"valid user", "users", bson.M{
			"name": "Ann", "name_ci": "ann", "email": "ann@example.com",
			"password_hash": "hash", "is_verified": false, "token_version": 0,
		}, false},
		{"project blank name", "projects", bson.M{
			"name": "   ", "name_lower": "x", "owner": owner,
			"admins": bson.A{}, "members": bson.A{owner}, "is_deleted": false,
		}, true},
		{"valid project", "projects", bson.M{
			"name": "Apollo", "name_lower": "apollo", "owner": owner,
			"admins": bson.A{}, "members": bson.A{owner}, "is_deleted": false,
		}, false},
		{"task bad status", "tasks", bson.M{
			"title": "Write", "project_id": owner, "created_by": owner, "due_date": now,
			"status": "blocked", "priority": "low",
			"assignees": bson.A{bson.M{"user": owner, "status": "todo"}},
		}, true},
		{"task without assignees", "tasks", bson.M{
			"title": "Write", "project_id": owner, "created_by": owner, "due_date": now,
			"status": "todo", "priority": "low", "assignees": bson.A{},
		}, true},
		{"valid task", "tasks", bson.M{
			"title": "Write", "project_id": owner, "created_by": owner, "due_date": now,
			"status": "todo", "priority": "high",
			"assignees": bson.A{bson.M{"user": owner, "status": "todo"}},
		}, false},
		{"otp bad purpose", "otps", bson.M{
			"user_id": owner, "purpose": "login", "code_hash": "h", "expires_at": now,
		}, true},
		{"valid otp", "otps", bson.M{
			"user_id": owner, "purpose": "register", "code_hash": "h", "attempts": 0, "expires_at": now,
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection(tt.coll).InsertOne(ctx, tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertOne err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
