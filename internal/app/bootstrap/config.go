// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// minProdSecret is the shortest JWT secret accepted in prod.
const minProdSecret = 32

// appConfigKeys defines the configuration keys for TaskHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: TASKHUB_MONGO_URI, TASKHUB_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "taskhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	// Tokens
	{Name: "jwt_secret", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "HMAC secret for bearer tokens (at least 32 bytes in prod)"},
	{Name: "session_ttl", Default: "24h", Desc: "Session token lifetime"},
	{Name: "otp_ttl", Default: "5m", Desc: "Emailed code and verification token lifetime"},
	{Name: "reset_window", Default: "5m", Desc: "How long a verified reset code allows a password reset"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host (blank disables delivery)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@taskhub.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "TaskHub", Desc: "From display name"},

	// HTTP surface
	{Name: "cors_allowed_origins", Default: "*", Desc: "Comma-separated list of allowed CORS origins"},
	{Name: "auth_rate_limit", Default: 5, Desc: "Login and forgot-password requests allowed per client per window"},
	{Name: "auth_rate_window", Default: "5m", Desc: "Rate limit window for auth endpoints"},

	// Workers
	{Name: "cascade_sweep_interval", Default: "1m", Desc: "How often orphaned tasks of deleted projects are swept"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Project event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// TASKHUB_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TASKHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:   appValues.String("jwt_secret"),
		SessionTTL:  appValues.Duration("session_ttl", 24*time.Hour),
		OTPTTL:      appValues.Duration("otp_ttl", 5*time.Minute),
		ResetWindow: appValues.Duration("reset_window", 5*time.Minute),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),
		AuthRateLimit:      appValues.Int("auth_rate_limit"),
		AuthRateWindow:     appValues.Duration("auth_rate_window", 5*time.Minute),

		CascadeSweepInterval: appValues.Duration("cascade_sweep_interval", time.Minute),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// TaskHub checks the MongoDB URI format before attempting to connect and
// refuses to sign tokens with an empty secret, or with a short one in prod.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if strings.TrimSpace(appCfg.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret must be set")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.JWTSecret) < minProdSecret {
		return fmt.Errorf("jwt_secret must be at least %d bytes in prod", minProdSecret)
	}
	if appCfg.AuthRateLimit < 1 {
		return fmt.Errorf("auth_rate_limit must be at least 1")
	}
	for _, v := range []string{appCfg.AuditLogAuth, appCfg.AuditLogAdmin} {
		switch v {
		case "all", "db", "log", "off":
		default:
			return fmt.Errorf("audit log setting %q must be one of all, db, log, off", v)
		}
	}
	return nil
}

// splitList parses a comma-separated config value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
