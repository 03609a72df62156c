package server

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

// OAuth 2.0 error codes from RFC 6749 and RFC 7591.
// Note: These are intentionally duplicated from errors.go to avoid circular
// imports (root package imports server for type aliases, server can't import
// root). Keep these in sync with errors.go.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeInvalidClientMetadata   = "invalid_client_metadata"
)

// AuthorizationRequest carries the parameters of a GET /oauth/authorize
// request after HTTP decoding.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Authorize approves an authorization request for the configured subject and
// returns the redirect URL carrying the issued code. The state parameter, if
// present, is echoed back unmodified.
//
// PKCE parameters are recorded on the code for later introspection but are
// not enforced at exchange time.
func (s *Server) Authorize(ctx context.Context, req *AuthorizationRequest, clientIP string) (string, error) {
	if req.ResponseType != "code" {
		s.Logger.Debug("Rejected authorization request",
			"reason", "unsupported_response_type",
			"response_type", req.ResponseType,
			"client_id", req.ClientID)
		return "", fmt.Errorf("%s: only response_type=code is supported", ErrorCodeUnsupportedResponseType)
	}

	client, err := s.clientStore.GetClient(ctx, req.ClientID)
	if err != nil {
		s.Logger.Debug("Rejected authorization request",
			"reason", "unknown_client",
			"client_id", req.ClientID)
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", req.ClientID, clientIP, "unknown_client")
		}
		return "", fmt.Errorf("%s: unknown client", ErrorCodeInvalidClient)
	}

	if err := validateRedirectURI(client, req.RedirectURI); err != nil {
		s.Logger.Debug("Rejected authorization request",
			"reason", "redirect_uri_mismatch",
			"client_id", req.ClientID,
			"redirect_uri", req.RedirectURI)
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", req.ClientID, clientIP, "redirect_uri_mismatch")
		}
		return "", fmt.Errorf("%s: %v", ErrorCodeInvalidRequest, err)
	}

	now := time.Now()
	authCode := &storage.AuthorizationCode{
		Code:                generateRandomToken(),
		ClientID:            client.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		Subject:             s.Config.Subject,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(s.Config.AuthorizationCodeTTL) * time.Second),
	}

	if err := s.codeStore.SaveAuthorizationCode(ctx, authCode); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogCodeIssued(authCode.Subject, client.ClientID, req.Scope)
	}
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordCodeIssued(ctx, client.ClientID)
	}

	s.Logger.Info("Issued authorization code",
		"client_id", client.ClientID,
		"code_prefix", safeTruncate(authCode.Code, 8),
		"expires_at", authCode.ExpiresAt)

	return buildRedirectURL(req.RedirectURI, authCode.Code, req.State)
}

// buildRedirectURL appends code and state query parameters to the client's
// redirect URI, preserving any existing query
func buildRedirectURL(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%s: invalid redirect_uri", ErrorCodeInvalidRequest)
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// ExchangeAuthorizationCode exchanges an authorization code for an access
// token. The code is consumed atomically before any validation, so a failed
// exchange cannot be retried with corrected parameters. All failure modes
// after client authentication collapse into a generic invalid_grant error;
// details are logged server-side only.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, code, clientID, redirectURI, clientIP string) (*storage.AccessToken, error) {
	authCode, err := s.codeStore.RedeemAuthorizationCode(ctx, code)
	if err != nil {
		// Not found, expired, or already redeemed: indistinguishable to the caller
		s.Logger.Debug("Authorization code redemption failed",
			"reason", err.Error(),
			"client_id", clientID,
			"code_prefix", safeTruncate(code, 8))
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, clientIP, "invalid_authorization_code")
		}
		return nil, fmt.Errorf("%s: invalid grant", ErrorCodeInvalidGrant)
	}

	// The code is now consumed; no other request can redeem it
	if s.Auditor != nil {
		s.Auditor.LogEvent(security.Event{
			Type:      security.EventAuthorizationCodeConsumed,
			Subject:   authCode.Subject,
			ClientID:  clientID,
			IPAddress: clientIP,
		})
	}

	if authCode.ClientID != clientID {
		s.Logger.Debug("Authorization code validation failed",
			"reason", "client_id_mismatch",
			"expected_client_id", authCode.ClientID,
			"provided_client_id", clientID,
			"code_prefix", safeTruncate(code, 8))
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, clientIP, "client_id_mismatch")
		}
		return nil, fmt.Errorf("%s: invalid grant", ErrorCodeInvalidGrant)
	}

	if authCode.RedirectURI != redirectURI {
		s.Logger.Debug("Authorization code validation failed",
			"reason", "redirect_uri_mismatch",
			"expected_uri", authCode.RedirectURI,
			"provided_uri", redirectURI,
			"client_id", clientID,
			"code_prefix", safeTruncate(code, 8))
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, clientIP, "redirect_uri_mismatch")
		}
		return nil, fmt.Errorf("%s: invalid grant", ErrorCodeInvalidGrant)
	}

	tokenValue, err := s.mintAccessToken(authCode.Subject, clientID, authCode.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	now := time.Now()
	token := &storage.AccessToken{
		Token:     tokenValue,
		ClientID:  clientID,
		Subject:   authCode.Subject,
		Scope:     authCode.Scope,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.Config.AccessTokenTTL) * time.Second),
	}

	if err := s.tokenStore.SaveAccessToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save access token: %w", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(token.Subject, clientID, clientIP, token.Scope)
	}
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordCodeExchange(ctx, clientID)
		s.instrumentation.Metrics().RecordTokenIssued(ctx, clientID)
	}

	s.Logger.Info("Exchanged authorization code for access token",
		"client_id", clientID,
		"subject", token.Subject,
		"expires_at", token.ExpiresAt)

	return token, nil
}

// ValidateBearer validates a bearer token and returns its record. Signed
// tokens are checked against the signing secret first; the store lookup
// remains authoritative either way, so a well-formed JWT that was never
// issued (or has been deleted) is still rejected.
func (s *Server) ValidateBearer(ctx context.Context, accessToken string) (*storage.AccessToken, error) {
	if s.Config.SigningSecret != "" {
		if err := s.verifySignedToken(accessToken); err != nil {
			s.Logger.Debug("Bearer token signature validation failed", "error", err)
			s.recordTokenValidation(ctx, false)
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	token, err := s.tokenStore.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		s.Logger.Debug("Bearer token validation failed",
			"token_prefix", safeTruncate(accessToken, 8),
			"error", err)
		s.recordTokenValidation(ctx, false)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	s.recordTokenValidation(ctx, true)
	return token, nil
}

func (s *Server) recordTokenValidation(ctx context.Context, valid bool) {
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordTokenValidation(ctx, valid)
	}
}
