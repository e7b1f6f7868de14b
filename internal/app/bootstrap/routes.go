// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	errorsfeature "github.com/dalemusser/taskhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/taskhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/taskhub/internal/app/features/login"
	projectsfeature "github.com/dalemusser/taskhub/internal/app/features/projects"
	tasksfeature "github.com/dalemusser/taskhub/internal/app/features/tasks"
	userinfofeature "github.com/dalemusser/taskhub/internal/app/features/userinfo"
	"github.com/dalemusser/taskhub/internal/app/services/identity"
	projectsvc "github.com/dalemusser/taskhub/internal/app/services/projects"
	tasksvc "github.com/dalemusser/taskhub/internal/app/services/tasks"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/store/otps"
	projectstore "github.com/dalemusser/taskhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	"github.com/dalemusser/taskhub/internal/app/store/tokenblacklist"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/mailer"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/app/system/tokens"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Version is reported by /health. Set at build time with -ldflags.
var Version = "dev"

// components are the services and shared helpers the router serves.
type components struct {
	Identity *identity.Service
	Issuer   *tokens.Issuer
	Projects *projectsvc.Service
	Tasks    *tasksvc.Service
	Audit    *auditlog.Logger
	Metrics  *metrics.Metrics
	Limiter  *ratelimit.Limiter
	DB       healthfeature.Pinger
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. Stores are built on the app database,
// services on the stores, and feature routers on the services.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.TaskHubMongoDatabase

	issuer, err := tokens.NewIssuer(appCfg.JWTSecret, appCfg.SessionTTL, appCfg.OTPTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}

	users := userstore.New(db)
	projects := projectstore.New(db)
	tasks := taskstore.New(db)

	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)

	idSvc := identity.New(users, otps.New(db, appCfg.OTPTTL), tokenblacklist.New(db), mail, issuer, identity.Config{
		SiteName:    appCfg.MailFromName,
		ResetWindow: appCfg.ResetWindow,
		CodeTTL:     appCfg.OTPTTL,
	}, logger)

	limiter := ratelimit.New(appCfg.AuthRateLimit, appCfg.AuthRateWindow)

	state.mu.Lock()
	m := state.metrics
	state.identity = idSvc
	state.limiter = limiter
	state.mu.Unlock()
	if m == nil {
		m = metrics.New()
	}

	c := components{
		Identity: idSvc,
		Issuer:   issuer,
		Projects: projectsvc.New(projects, users, tasks, txn.NewRunner(deps.TaskHubMongoClient, logger), logger),
		Tasks:    tasksvc.New(tasks, projects, users, logger),
		Audit: auditlog.New(audit.New(db), logger, auditlog.Config{
			Auth:  appCfg.AuditLogAuth,
			Admin: appCfg.AuditLogAdmin,
		}),
		Metrics: m,
		Limiter: limiter,
		DB:      deps.TaskHubMongoClient,
	}
	return newRouter(c, appCfg, logger), nil
}

// newRouter mounts every feature router:
//
//	/health, /metrics
//	/api/v1/auth      register, OTP, login, password reset, email change
//	/api/v1/users     signed-in user lookups
//	/api/v1/projects  projects, rosters and project tasks
//	/api/v1/tasks     task views and mutations by task id
func newRouter(c components, appCfg AppConfig, logger *zap.Logger) http.Handler {
	errLog := errorsfeature.NewErrorLogger(logger)
	mw := auth.NewMiddleware(c.Identity, c.Issuer, logger)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(c.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: appCfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))
	r.NotFound(errLog.NotFound)
	r.MethodNotAllowed(errLog.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(c.DB, Version, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", c.Metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.NotFound(errLog.NotFound)
		api.MethodNotAllowed(errLog.MethodNotAllowed)

		// Authentication
		loginHandler := loginfeature.NewHandler(c.Identity, c.Audit, c.Metrics, errLog, logger)
		api.Mount("/auth", loginfeature.Routes(loginHandler, mw, c.Limiter))

		api.Group(func(api chi.Router) {
			api.Use(mw.RequireSignedIn)

			userHandler := userinfofeature.NewHandler(c.Identity, errLog, logger)
			api.Mount("/users", userinfofeature.Routes(userHandler))

			taskHandler := tasksfeature.NewHandler(c.Tasks, c.Audit, c.Metrics, errLog, logger)
			projectHandler := projectsfeature.NewHandler(c.Projects, c.Audit, errLog, logger)
			api.Mount("/projects", projectsfeature.Routes(projectHandler, tasksfeature.ProjectRoutes(taskHandler)))
			api.Mount("/tasks", tasksfeature.Routes(taskHandler))
		})
	})

	return r
}
