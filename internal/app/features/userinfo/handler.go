// internal/app/features/userinfo/handler.go
package userinfo

import (
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/services/identity"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves the account directory to signed-in users.
type Handler struct {
	Identity *identity.Service
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler creates a new userinfo handler.
func NewHandler(id *identity.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errLog == nil {
		errLog = uierrors.NewErrorLogger(logger)
	}
	return &Handler{Identity: id, ErrLog: errLog, Log: logger}
}

// ServeMe handles GET /users/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.Write(w, r, apperr.ErrInvalidToken)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load current user")
	defer cancel()

	u, err := h.Identity.Me(ctx, su.ID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.OK(w, u)
}

// ServeSearch handles GET /users/search?q=&limit=. It matches verified
// users by name or email, for picking project members and assignees.
//
// Response format:
//
//	{ "success": true, "data": [ { "id": "...", "name": "...", "email": "..." } ] }
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := query.Get(r, "limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > identity.MaxSearchLimit {
			h.ErrLog.Write(w, r, apperr.Validation("limit must be between 1 and "+strconv.Itoa(identity.MaxSearchLimit)))
			return
		}
		limit = n
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "search users")
	defer cancel()

	hits, err := h.Identity.SearchUsers(ctx, query.Get(r, "q"), limit)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if hits == nil {
		hits = []models.UserSummary{}
	}
	respond.OK(w, hits)
}
