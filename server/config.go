package server

// Config holds OAuth server configuration
type Config struct {
	// Issuer is the server's issuer identifier (base URL)
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// SigningSecret, when set, makes issued access tokens HS256-signed JWTs
	// carrying subject, client and expiry claims. When empty, tokens are
	// opaque random strings. Either way the token store record is the
	// source of truth for validity.
	SigningSecret string

	// Subject is the synthetic subject every authorization is approved for.
	// Default: "demo_user"
	Subject string

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy; when false, the direct
	// connection IP is used.
	// Default: false
	TrustProxy bool

	// SupportedScopes lists the scopes that are allowed for clients.
	// If empty, all scopes are allowed.
	SupportedScopes []string
}

// applyDefaults fills in default values for unset configuration
func applyDefaults(config *Config) *Config {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.Subject == "" {
		config.Subject = "demo_user"
	}
	return config
}
