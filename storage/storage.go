// Package storage defines interfaces for persisting OAuth clients,
// authorization codes, and access tokens. It supports various backend
// implementations; the in-memory store under storage/memory is the reference.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by stores. Callers match with errors.Is and map
// them onto RFC 6749 error codes at the protocol layer.
var (
	// ErrClientNotFound indicates the client_id is not registered
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidClientCredentials indicates the client_id/client_secret pair
	// did not validate. Deliberately identical for unknown clients and wrong
	// secrets so client existence is never leaked.
	ErrInvalidClientCredentials = errors.New("invalid client credentials")

	// ErrCodeNotFound indicates the authorization code does not exist, is
	// expired, or was already redeemed. The three cases are indistinguishable
	// to the network caller (RFC 6749 Section 5.2).
	ErrCodeNotFound = errors.New("authorization code not found")

	// ErrTokenNotFound indicates the access token does not exist or expired
	ErrTokenNotFound = errors.New("access token not found")
)

// ClientStore defines the interface for managing OAuth client registrations.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret validates a client's secret using a
	// constant-behavior comparison. An unknown client and a wrong secret
	// return the same ErrInvalidClientCredentials.
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error

	// ListClients lists all registered clients (for admin purposes)
	ListClients(ctx context.Context) ([]*Client, error)
}

// CodeStore defines the interface for single-use authorization codes.
type CodeStore interface {
	// SaveAuthorizationCode saves an issued authorization code
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// RedeemAuthorizationCode atomically retrieves and deletes an
	// authorization code. The record is returned for the caller to validate
	// client_id, redirect_uri, and expiry; the code is consumed regardless of
	// whether that validation subsequently passes, so a mismatched exchange
	// can never be retried with corrected parameters.
	//
	// Expired codes are logically deleted and return ErrCodeNotFound,
	// identical to a never-issued code.
	//
	// SECURITY: This operation MUST be atomic (check-and-delete under one
	// lock) so that of N concurrent redemption attempts for the same code,
	// exactly one succeeds.
	RedeemAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// TokenStore defines the interface for bearer access tokens.
type TokenStore interface {
	// SaveAccessToken saves an issued access token
	SaveAccessToken(ctx context.Context, token *AccessToken) error

	// ValidateAccessToken retrieves a token by its bearer value. Expired
	// entries are treated as absent and purged as a side effect (lazy
	// eviction), so every read path observes expiry immediately even without
	// a background sweep.
	ValidateAccessToken(ctx context.Context, accessToken string) (*AccessToken, error)

	// DeleteAccessToken removes a token
	DeleteAccessToken(ctx context.Context, accessToken string) error
}

// Client represents a registered OAuth client.
// Immutable after creation; the plaintext secret is returned exactly once at
// registration time and only its bcrypt hash is stored.
type Client struct {
	ClientID         string    `json:"client_id"`
	ClientSecretHash string    `json:"client_secret_hash"` // bcrypt hash, never the plaintext
	ClientName       string    `json:"client_name"`
	RedirectURIs     []string  `json:"redirect_uris"`
	GrantTypes       []string  `json:"grant_types"`
	ResponseTypes    []string  `json:"response_types"`
	Scope            string    `json:"scope,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuthorizationCode represents an issued single-use authorization code
type AuthorizationCode struct {
	Code                string    `json:"code"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scope               string    `json:"scope,omitempty"`
	Subject             string    `json:"subject"`
	CodeChallenge       string    `json:"code_challenge,omitempty"` // PKCE pass-through, recorded but not enforced
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// AccessToken represents an issued bearer token
type AccessToken struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"client_id"`
	Subject   string    `json:"subject"`
	Scope     string    `json:"scope,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
