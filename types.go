package oauth

// ErrorResponse is the wire format for OAuth 2.0 error responses (RFC 6749 Section 5.2)
type ErrorResponse struct {
	// Error is the OAuth error code
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description,omitempty"`
}

// ClientRegistrationRequest represents a dynamic client registration request (RFC 7591)
type ClientRegistrationRequest struct {
	// ClientName is the human-readable name of the client (REQUIRED)
	ClientName string `json:"client_name"`

	// RedirectURIs is the array of redirection URI values used by the client
	RedirectURIs []string `json:"redirect_uris,omitempty"`

	// GrantTypes is the array of OAuth 2.0 grant types the client will use
	GrantTypes []string `json:"grant_types,omitempty"`

	// ResponseTypes is the array of OAuth 2.0 response types the client will use
	ResponseTypes []string `json:"response_types,omitempty"`

	// Scope is a space-separated list of scope values the client may request
	Scope string `json:"scope,omitempty"`
}

// ClientRegistrationResponse represents a successful registration response (RFC 7591)
type ClientRegistrationResponse struct {
	// ClientID is the newly issued client identifier
	ClientID string `json:"client_id"`

	// ClientSecret is the plaintext client secret. Returned exactly once;
	// only a hash is retained server-side.
	ClientSecret string `json:"client_secret"`

	// ClientName echoes the registered client name
	ClientName string `json:"client_name"`

	// RedirectURIs echoes the registered redirect URIs
	RedirectURIs []string `json:"redirect_uris"`

	// GrantTypes is the array of OAuth 2.0 grant types
	GrantTypes []string `json:"grant_types,omitempty"`

	// ResponseTypes is the array of OAuth 2.0 response types
	ResponseTypes []string `json:"response_types,omitempty"`

	// Scope is the registered scope
	Scope string `json:"scope,omitempty"`

	// ClientIDIssuedAt is the time the client ID was issued (Unix timestamp)
	ClientIDIssuedAt int64 `json:"client_id_issued_at,omitempty"`

	// ClientSecretExpiresAt is when the secret expires, 0 meaning never (RFC 7591)
	ClientSecretExpiresAt int64 `json:"client_secret_expires_at"`
}

// TokenResponse represents a successful token endpoint response (RFC 6749 Section 5.1)
type TokenResponse struct {
	// AccessToken is the issued bearer token
	AccessToken string `json:"access_token"`

	// TokenType is the type of token (always "Bearer")
	TokenType string `json:"token_type"`

	// ExpiresIn is the token lifetime in seconds
	ExpiresIn int64 `json:"expires_in"`

	// Scope is the granted scope, if any
	Scope string `json:"scope,omitempty"`
}

// AuthorizationServerMetadata represents RFC 8414 discovery metadata
type AuthorizationServerMetadata struct {
	// Issuer is the authorization server's issuer identifier
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	// RegistrationEndpoint is the URL of the dynamic registration endpoint
	RegistrationEndpoint string `json:"registration_endpoint,omitempty"`

	// ResponseTypesSupported lists the OAuth response types supported
	ResponseTypesSupported []string `json:"response_types_supported"`

	// GrantTypesSupported lists the OAuth grant types supported
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// TokenEndpointAuthMethodsSupported lists supported client authentication methods
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`

	// CodeChallengeMethodsSupported lists supported PKCE methods
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`

	// ScopesSupported lists the scopes this server understands
	ScopesSupported []string `json:"scopes_supported,omitempty"`
}

// HealthResponse is the liveness probe response body
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
