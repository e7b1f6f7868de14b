// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration. Each category takes one of
// "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only) or "off".
type Config struct {
	Auth  string
	Admin string
}

// Recorder persists events. *audit.Store satisfies it.
type Recorder interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger fans audit events out to the store and to zap.
type Logger struct {
	store  Recorder
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Recorder, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.ProjectID != nil {
		fields = append(fields, zap.String("project_id", event.ProjectID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the category's setting. A nil Logger is
// a no-op so tests and optional wiring can pass nil.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := "all"
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

// --- Authentication Events ---

// Auth records an authentication event about userID. A zero userID is
// omitted (e.g. a login attempt for an unknown email).
func (l *Logger) Auth(ctx context.Context, r *http.Request, eventType string, userID primitive.ObjectID, success bool, reason string, details map[string]string) {
	if l == nil {
		return
	}
	e := audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		Success:       success,
		FailureReason: reason,
		Details:       details,
	}
	if !userID.IsZero() {
		e.UserID = &userID
	}
	stamp(&e, r)
	l.Log(ctx, e)
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Auth(ctx, r, audit.EventLoginSuccess, userID, true, "", nil)
}

// LoginFailed logs a rejected login. The attempted email is kept so
// repeated attempts against one account are visible.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email, reason string) {
	l.Auth(ctx, r, audit.EventLoginFailed, primitive.NilObjectID, false, reason, map[string]string{"email": email})
}

// Logout logs a logout.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Auth(ctx, r, audit.EventLogout, userID, true, "", nil)
}

// --- Admin Events ---

// Project records a project or task administration event. target is the
// affected user, when there is one.
func (l *Logger) Project(ctx context.Context, r *http.Request, eventType string, actorID, projectID primitive.ObjectID, target *primitive.ObjectID, details map[string]string) {
	if l == nil {
		return
	}
	e := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   &actorID,
		UserID:    target,
		Success:   true,
		Details:   details,
	}
	if !projectID.IsZero() {
		e.ProjectID = &projectID
	}
	stamp(&e, r)
	l.Log(ctx, e)
}

func stamp(e *audit.Event, r *http.Request) {
	if r == nil {
		return
	}
	e.IP = ratelimit.ClientIP(r)
	e.UserAgent = r.UserAgent()
}
