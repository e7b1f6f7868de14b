package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var summaryProjection = bson.M{"_id": 1, "name": 1, "email": 1}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by ObjectID, deleted or not.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// ExistsNameOrEmail reports whether any user already holds name
// (case-folded) or email.
func (s *Store) ExistsNameOrEmail(ctx context.Context, name, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"name_ci": text.Fold(normalize.Name(name))},
		bson.M{"email": normalize.Email(email)},
	}}, options.Count().SetLimit(1))
	return n > 0, err
}

// EmailTaken reports whether a user other than exclude holds email.
func (s *Store) EmailTaken(ctx context.Context, email string, exclude primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"email": normalize.Email(email),
		"_id":   bson.M{"$ne": exclude},
	}, options.Count().SetLimit(1))
	return n > 0, err
}

// Create inserts u after normalizing name and email. u.ID and timestamps
// are filled in.
func (s *Store) Create(ctx context.Context, u *models.User) error {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Email = normalize.Email(u.Email)
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return apperr.ErrUserExists
		}
		return err
	}
	return nil
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, upd bson.M) error {
	set, _ := upd["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		upd["$set"] = set
	}
	set["updated_at"] = time.Now().UTC()

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "is_deleted": false}, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

// SetVerified marks the account verified.
func (s *Store) SetVerified(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"is_verified": true}})
}

// SetResetWindow opens (until != nil) or closes the password-reset window.
func (s *Store) SetResetWindow(ctx context.Context, id primitive.ObjectID, until *time.Time) error {
	if until == nil {
		return s.update(ctx, id, bson.M{"$unset": bson.M{"forgot_otp_verified_until": ""}})
	}
	return s.update(ctx, id, bson.M{"$set": bson.M{"forgot_otp_verified_until": until.UTC()}})
}

// UpdatePassword stores a new hash, closes the reset window and bumps the
// token version so existing sessions stop working.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"password_hash": hash},
		"$unset": bson.M{"forgot_otp_verified_until": ""},
		"$inc":   bson.M{"token_version": 1},
	})
}

// UpdateEmail changes the address and bumps the token version.
func (s *Store) UpdateEmail(ctx context.Context, id primitive.ObjectID, email string) error {
	err := s.update(ctx, id, bson.M{
		"$set": bson.M{"email": normalize.Email(email)},
		"$inc": bson.M{"token_version": 1},
	})
	if err != nil && wafflemongo.IsDup(err) {
		return apperr.ErrEmailTaken
	}
	return err
}

// Search returns verified, live users whose folded name or email contains
// pattern. pattern must already be regex-escaped.
func (s *Store) Search(ctx context.Context, pattern string, limit int64) ([]models.UserSummary, error) {
	filter := bson.M{"is_verified": true, "is_deleted": false}
	if pattern != "" {
		re := primitive.Regex{Pattern: pattern, Options: "i"}
		filter["$or"] = bson.A{bson.M{"name_ci": re}, bson.M{"email": re}}
	}
	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)
	return s.summaries(ctx, filter, opts)
}

// CountVerifiedActive counts how many of ids are verified, live users.
func (s *Store) CountVerifiedActive(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.c.CountDocuments(ctx, bson.M{
		"_id":         bson.M{"$in": ids},
		"is_verified": true,
		"is_deleted":  false,
	})
}

// Summaries loads id, name and email for ids in unspecified order.
func (s *Store) Summaries(ctx context.Context, ids []primitive.ObjectID) ([]models.UserSummary, error) {
	if len(ids) == 0 {
		return []models.UserSummary{}, nil
	}
	return s.summaries(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(summaryProjection))
}

func (s *Store) summaries(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.UserSummary, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.UserSummary{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
