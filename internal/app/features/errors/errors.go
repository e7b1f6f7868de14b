// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"go.uber.org/zap"
)

// ErrorLogger writes error responses for handlers. Domain errors are
// rendered with their kind and code; anything else is logged and reported
// as a generic internal error.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

// Write renders err.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, e.Log, err)
}

// LogBadRequest renders a validation error with userMsg, keeping err for
// the debug log.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Debug(msg, zap.String("path", r.URL.Path), zap.Error(err))
	respond.Error(w, r, e.Log, apperr.Validation(userMsg))
}

var (
	errNoRoute = apperr.New(apperr.KindNotFound, "ROUTE_NOT_FOUND", "No such endpoint")
	errBadVerb = apperr.New(apperr.KindValidation, "METHOD_NOT_ALLOWED", "Method not allowed")
)

// NotFound is the router's fallback for unknown paths.
func (e *ErrorLogger) NotFound(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, r, e.Log, errNoRoute)
}

// MethodNotAllowed is the router's fallback for a known path with the wrong
// method.
func (e *ErrorLogger) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusMethodNotAllowed, map[string]any{
		"success": false,
		"error": map[string]string{
			"kind":    string(errBadVerb.Kind),
			"code":    errBadVerb.Code,
			"message": errBadVerb.Message,
		},
	})
}
