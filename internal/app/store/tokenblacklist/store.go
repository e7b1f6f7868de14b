// internal/app/store/tokenblacklist/store.go
package tokenblacklist

import (
	"context"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store records revoked session token ids until they would have expired.
// A TTL index on expires_at removes them afterwards.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("token_blacklist"), now: time.Now}
}

// Add revokes tokenID. Revoking the same id twice is not an error.
func (s *Store) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.c.InsertOne(ctx, models.BlacklistedToken{
		ID:        primitive.NewObjectID(),
		Token:     tokenID,
		ExpiresAt: expiresAt.UTC(),
	})
	if err != nil && wafflemongo.IsDup(err) {
		return nil
	}
	return err
}

// Contains reports whether tokenID is revoked and not yet expired. The
// expiry check covers the gap before the TTL monitor runs.
func (s *Store) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"token":      tokenID,
		"expires_at": bson.M{"$gt": s.now().UTC()},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
