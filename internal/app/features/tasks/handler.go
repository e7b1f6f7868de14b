// internal/app/features/tasks/handler.go
package tasks

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	tasksvc "github.com/dalemusser/taskhub/internal/app/services/tasks"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Tasks   *tasksvc.Service
	Audit   *auditlog.Logger
	Metrics *metrics.Metrics
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

func NewHandler(svc *tasksvc.Service, audit *auditlog.Logger, m *metrics.Metrics, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errLog == nil {
		errLog = uierrors.NewErrorLogger(logger)
	}
	return &Handler{Tasks: svc, Audit: audit, Metrics: m, ErrLog: errLog, Log: logger}
}

type createInput struct {
	Title       string          `json:"title" validate:"notblank,min=2,max=200" label:"Title"`
	Description string          `json:"description" validate:"max=5000" label:"Description"`
	Assignees   []string        `json:"assignees" validate:"required,min=1,max=50,dive,objectid" label:"Assignees"`
	Priority    models.Priority `json:"priority" validate:"omitempty,oneof=low medium high" label:"Priority"`
	DueDate     time.Time       `json:"due_date" validate:"required" label:"Due date"`
}

type updateInput struct {
	Title       *string            `json:"title" validate:"omitempty,notblank,min=2,max=200" label:"Title"`
	Description *string            `json:"description" validate:"omitempty,max=5000" label:"Description"`
	Priority    *models.Priority   `json:"priority" validate:"omitempty,oneof=low medium high" label:"Priority"`
	DueDate     *time.Time         `json:"due_date" label:"Due date"`
	Status      *models.TaskStatus `json:"status" validate:"omitempty,oneof=todo in_progress done" label:"Status"`
}

type assigneesInput struct {
	Assignees []string `json:"assignees" validate:"required,min=1,max=50,dive,objectid" label:"Assignees"`
}

type deleteView struct {
	Deleted bool `json:"deleted"`
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, bool) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.ErrInvalidToken)
	}
	return su, ok
}

// pathID reads a hex id path parameter.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, key string) (primitive.ObjectID, bool) {
	id, err := inputval.ParseID(chi.URLParam(r, key), key)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

// changed records a task mutation in metrics and the audit log.
func (h *Handler) changed(r *http.Request, event, op string, actorID primitive.ObjectID, t *models.Task, target *primitive.ObjectID) {
	h.Metrics.TaskChanged(op)
	h.Audit.Project(r.Context(), r, event, actorID, t.ProjectID, target, map[string]string{"task_id": t.ID.Hex()})
}
