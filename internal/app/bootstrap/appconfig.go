// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, log level and request limits.
// Everything here is specific to TaskHub and is passed to every lifecycle
// hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer tokens
	JWTSecret   string        // HMAC key for session and verification tokens
	SessionTTL  time.Duration // lifetime of a session token
	OTPTTL      time.Duration // lifetime of an emailed code and its verification token
	ResetWindow time.Duration // how long a verified reset code allows a password reset

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (blank logs mail instead of sending it)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string // From email address
	MailFromName string // From display name, also used as the site name in mail

	// HTTP surface
	CORSAllowedOrigins []string
	AuthRateLimit      int // requests per client per window on login and forgot-password
	AuthRateWindow     time.Duration

	// Background work
	CascadeSweepInterval time.Duration

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth  string
	AuditLogAdmin string
}
