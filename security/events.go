package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// EventClientRegistered is logged when a new OAuth client is registered
	EventClientRegistered = "client_registered"

	// EventClientRegistrationRejected is logged when client registration is rejected
	EventClientRegistrationRejected = "client_registration_rejected"

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationCodeConsumed is logged when a code is redeemed,
	// whether or not the exchange ultimately succeeds
	EventAuthorizationCodeConsumed = "authorization_code_consumed"

	// EventTokenIssued is logged when a new access token is issued to a client
	EventTokenIssued = "token_issued"

	// EventAuthFailure is logged when authentication fails (wrong credentials,
	// invalid grant, expired token, etc.)
	EventAuthFailure = "auth_failure"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventToolCallDenied is logged when a gate-protected tool invocation is
	// rejected for missing or invalid bearer credentials
	EventToolCallDenied = "tool_call_denied"
)
