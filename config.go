package oauth

import (
	"log/slog"
	"time"
)

// Config holds the all-in-one service configuration
type Config struct {
	// Issuer is the server's issuer identifier, the externally visible base
	// URL (required)
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid.
	// Default: 10 minutes
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is how long access tokens are valid.
	// Default: 1 hour
	AccessTokenTTL time.Duration

	// SigningSecret, when set, makes issued access tokens HS256-signed JWTs.
	// When empty, tokens are opaque random strings.
	SigningSecret string

	// Subject is the synthetic subject every authorization is approved for.
	// Default: "demo_user"
	Subject string

	// SupportedScopes lists the scopes allowed for clients. Empty allows all.
	SupportedScopes []string

	// RateLimit is requests per second allowed per IP. Zero disables limiting.
	RateLimit int

	// RateLimitBurst is the maximum burst size allowed per IP.
	RateLimitBurst int

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// AuditEnabled turns on security audit logging
	AuditEnabled bool

	// CleanupInterval is how often the store sweeps expired entries.
	// Default: 1 minute
	CleanupInterval time.Duration

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}
