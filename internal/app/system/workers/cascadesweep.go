// internal/app/system/workers/cascadesweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// LiveTaskProjects lists the project ids referenced by non-deleted tasks and
// soft-deletes the tasks of given projects.
type LiveTaskProjects interface {
	LiveProjectIDs(ctx context.Context) ([]primitive.ObjectID, error)
	SoftDeleteByProjects(ctx context.Context, projectIDs []primitive.ObjectID) (int64, error)
}

// DeletedProjects filters ids down to soft-deleted projects.
type DeletedProjects interface {
	DeletedAmong(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error)
}

// CascadeSweeper finishes project-delete cascades that did not complete:
// live tasks whose project is soft-deleted get soft-deleted too.
type CascadeSweeper struct {
	tasks    LiveTaskProjects
	projects DeletedProjects
	log      *zap.Logger
	interval time.Duration
	onSwept  func(n int)

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewCascadeSweeper creates the worker. onSwept may be nil.
func NewCascadeSweeper(tasks LiveTaskProjects, projects DeletedProjects, logger *zap.Logger, interval time.Duration, onSwept func(n int)) *CascadeSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &CascadeSweeper{
		tasks:    tasks,
		projects: projects,
		log:      logger,
		interval: interval,
		onSwept:  onSwept,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *CascadeSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("cascade sweeper started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call twice.
func (w *CascadeSweeper) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("cascade sweeper stopped")
	})
}

func (w *CascadeSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := w.SweepOnce(ctx); err != nil {
				w.log.Error("cascade sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// SweepOnce runs one pass and returns how many tasks it soft-deleted.
func (w *CascadeSweeper) SweepOnce(ctx context.Context) (int64, error) {
	live, err := w.tasks.LiveProjectIDs(ctx)
	if err != nil || len(live) == 0 {
		return 0, err
	}
	deleted, err := w.projects.DeletedAmong(ctx, live)
	if err != nil || len(deleted) == 0 {
		return 0, err
	}
	n, err := w.tasks.SoftDeleteByProjects(ctx, deleted)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.log.Info("swept orphaned tasks",
			zap.Int64("count", n),
			zap.Int("projects", len(deleted)))
		if w.onSwept != nil {
			w.onSwept(int(n))
		}
	}
	return n, nil
}
