// internal/app/features/projects/handler.go
package projects

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	projectsvc "github.com/dalemusser/taskhub/internal/app/services/projects"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Projects *projectsvc.Service
	Audit    *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(svc *projectsvc.Service, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errLog == nil {
		errLog = uierrors.NewErrorLogger(logger)
	}
	return &Handler{Projects: svc, Audit: audit, ErrLog: errLog, Log: logger}
}

type createInput struct {
	Name        string   `json:"name" validate:"notblank,min=2,max=100" label:"Project name"`
	Description string   `json:"description" validate:"max=2000" label:"Description"`
	Admins      []string `json:"admins" validate:"max=100,dive,objectid" label:"Admins"`
	Members     []string `json:"members" validate:"max=200,dive,objectid" label:"Members"`
}

type updateInput struct {
	Name        *string `json:"name" validate:"omitempty,max=100" label:"Project name"`
	Description *string `json:"description" validate:"omitempty,max=2000" label:"Description"`
}

type membersInput struct {
	Members []string `json:"members" validate:"required,min=1,max=100,dive,objectid" label:"Members"`
}

type adminsInput struct {
	Admins []string `json:"admins" validate:"required,min=1,max=100,dive,objectid" label:"Admins"`
}

type deleteView struct {
	Deleted      bool  `json:"deleted"`
	TasksDeleted int64 `json:"tasks_deleted"`
}

// target resolves the caller and the {projectId} path parameter.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (actor *auth.SessionUser, projectID primitive.ObjectID, ok bool) {
	actor, ok = auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.ErrInvalidToken)
		return nil, primitive.NilObjectID, false
	}
	projectID, err := inputval.ParseID(chi.URLParam(r, "projectId"), "projectId")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return nil, primitive.NilObjectID, false
	}
	return actor, projectID, true
}

// userParam reads the {userId} path parameter.
func (h *Handler) userParam(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := inputval.ParseID(chi.URLParam(r, "userId"), "userId")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return primitive.NilObjectID, false
	}
	return id, true
}
