// Package projectstore persists projects. Writes are guarded by the
// document's version field; a write against a stale version fails with
// apperr.ErrConcurrentUpdate.
package projectstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("projects")}
}

// Get loads a live project. Missing and soft-deleted projects both yield
// apperr.ErrProjectNotFound.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var p models.Project
	err := s.c.FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ExistsName reports whether owner has another live project whose
// normalized name is nameLower.
func (s *Store) ExistsName(ctx context.Context, owner primitive.ObjectID, nameLower string, exclude primitive.ObjectID) (bool, error) {
	filter := bson.M{"owner": owner, "name_lower": nameLower, "is_deleted": false}
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}
	n, err := s.c.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

// Create inserts p, assigning its id, timestamps and first version.
func (s *Store) Create(ctx context.Context, p *models.Project) error {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Admins == nil {
		p.Admins = []primitive.ObjectID{}
	}
	if p.Members == nil {
		p.Members = []primitive.ObjectID{}
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return apperr.ErrProjectNameExists
		}
		return err
	}
	return nil
}

// Save replaces the stored project with p if nobody else wrote it since p
// was loaded. On success p.Version is advanced.
func (s *Store) Save(ctx context.Context, p *models.Project) error {
	next := *p
	next.Version = p.Version + 1
	next.UpdatedAt = time.Now().UTC()

	res, err := s.c.ReplaceOne(ctx,
		bson.M{"_id": p.ID, "version": p.Version, "is_deleted": false},
		next)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return apperr.ErrProjectNameExists
		}
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrConcurrentUpdate
	}
	*p = next
	return nil
}

// SoftDelete flags p deleted, guarded by its version.
func (s *Store) SoftDelete(ctx context.Context, p *models.Project) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": p.ID, "version": p.Version, "is_deleted": false},
		bson.M{
			"$set": bson.M{"is_deleted": true, "updated_at": now},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrConcurrentUpdate
	}
	p.IsDeleted = true
	p.Version++
	p.UpdatedAt = now
	return nil
}

// ListForUser pages through the live projects f.UserID owns, administers
// or belongs to, newest first. The count runs alongside the find.
func (s *Store) ListForUser(ctx context.Context, f models.ProjectFilter) ([]models.Project, int64, error) {
	filter := bson.M{
		"is_deleted": false,
		"$or": bson.A{
			bson.M{"owner": f.UserID},
			bson.M{"admins": f.UserID},
			bson.M{"members": f.UserID},
		},
	}
	if f.Search != "" {
		filter["name_lower"] = primitive.Regex{Pattern: f.Search}
	}

	var (
		items []models.Project
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opts := options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
			SetSkip(f.Skip).
			SetLimit(f.Limit)
		cur, err := s.c.Find(gctx, filter, opts)
		if err != nil {
			return err
		}
		defer cur.Close(gctx)
		items = []models.Project{}
		return cur.All(gctx, &items)
	})
	g.Go(func() error {
		n, err := s.c.CountDocuments(gctx, filter)
		total = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DeletedAmong returns the ids in ids that belong to soft-deleted projects.
func (s *Store) DeletedAmong(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "is_deleted": true},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out, nil
}
