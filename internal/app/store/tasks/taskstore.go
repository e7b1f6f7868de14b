// Package taskstore persists tasks with the same version-guarded writes as
// projectstore.
package taskstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
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
	return &Store{c: db.Collection("tasks")}
}

// Get loads a live task; missing and soft-deleted both yield
// apperr.ErrTaskNotFound.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var t models.Task
	err := s.c.FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts t, assigning its id, timestamps and first version.
func (s *Store) Create(ctx context.Context, t *models.Task) error {
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	t.PriorityRank = t.Priority.Rank()
	_, err := s.c.InsertOne(ctx, t)
	return err
}

// Save replaces the stored task with t if its version is still current.
func (s *Store) Save(ctx context.Context, t *models.Task) error {
	next := *t
	next.Version = t.Version + 1
	next.UpdatedAt = time.Now().UTC()
	next.PriorityRank = next.Priority.Rank()

	res, err := s.c.ReplaceOne(ctx,
		bson.M{"_id": t.ID, "version": t.Version, "is_deleted": false},
		next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrConcurrentUpdate
	}
	*t = next
	return nil
}

// SoftDelete flags t deleted, guarded by its version.
func (s *Store) SoftDelete(ctx context.Context, t *models.Task) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": t.ID, "version": t.Version, "is_deleted": false},
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
	t.IsDeleted = true
	t.Version++
	t.UpdatedAt = now
	return nil
}

// SoftDeleteByProjects flags every live task of the given projects deleted.
func (s *Store) SoftDeleteByProjects(ctx context.Context, projectIDs []primitive.ObjectID) (int64, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.UpdateMany(ctx,
		bson.M{"project_id": bson.M{"$in": projectIDs}, "is_deleted": false},
		bson.M{
			"$set": bson.M{"is_deleted": true, "updated_at": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// LiveProjectIDs lists the distinct projects that still have live tasks.
func (s *Store) LiveProjectIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	vals, err := s.c.Distinct(ctx, "project_id", bson.M{"is_deleted": false})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if id, ok := v.(primitive.ObjectID); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func filterDoc(f models.TaskFilter) bson.M {
	q := bson.M{"is_deleted": false}
	if !f.ProjectID.IsZero() {
		q["project_id"] = f.ProjectID
	}
	if !f.CreatedBy.IsZero() {
		q["created_by"] = f.CreatedBy
	}
	switch len(f.Assignees) {
	case 0:
	case 1:
		q["assignees.user"] = f.Assignees[0]
	default:
		q["assignees.user"] = bson.M{"$all": f.Assignees}
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Priority != "" {
		q["priority"] = f.Priority
	}
	if f.DueFrom != nil || f.DueTo != nil {
		due := bson.M{}
		if f.DueFrom != nil {
			due["$gte"] = f.DueFrom.UTC()
		}
		if f.DueTo != nil {
			due["$lte"] = f.DueTo.UTC()
		}
		q["due_date"] = due
	}
	if f.Search != "" {
		q["title_ci"] = primitive.Regex{Pattern: f.Search}
	}
	return q
}

func sortDoc(f models.TaskFilter) bson.D {
	dir := 1
	if f.Desc {
		dir = -1
	}
	field := "created_at"
	switch f.SortBy {
	case models.SortDueDate:
		field = "due_date"
	case models.SortPriority:
		field = "priority_rank"
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

// List pages through live tasks matching f. The count runs alongside the
// find.
func (s *Store) List(ctx context.Context, f models.TaskFilter) ([]models.Task, int64, error) {
	filter := filterDoc(f)

	var (
		items []models.Task
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opts := options.Find().SetSort(sortDoc(f)).SetSkip(f.Skip).SetLimit(f.Limit)
		cur, err := s.c.Find(gctx, filter, opts)
		if err != nil {
			return err
		}
		defer cur.Close(gctx)
		items = []models.Task{}
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
