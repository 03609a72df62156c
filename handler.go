package oauth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/mcp-auth/instrumentation"
	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/server"
)

// Handler is a thin HTTP adapter for the OAuth Server.
// It handles HTTP requests and delegates to the server package for business logic.
type Handler struct {
	server *server.Server
	logger *slog.Logger
	tracer trace.Tracer // OpenTelemetry tracer for HTTP layer
}

// NewHandler creates a new HTTP handler
func NewHandler(srv *server.Server) *Handler {
	h := &Handler{
		server: srv,
		logger: srv.Logger,
	}

	if inst := srv.Instrumentation(); inst != nil {
		h.tracer = inst.Tracer("http")
	}

	return h
}

// RegisterRoutes registers all OAuth endpoints on the mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/oauth/register", h.ServeClientRegistration)
	mux.HandleFunc("/oauth/authorize", h.ServeAuthorization)
	mux.HandleFunc("/oauth/token", h.ServeToken)
	mux.HandleFunc("/.well-known/oauth-authorization-server", h.ServeAuthorizationServerMetadata)
	mux.HandleFunc("/health", h.ServeHealth)
}

// ServeClientRegistration handles POST /oauth/register (RFC 7591)
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.client_registration")
		defer span.End()
	}

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics(ctx, "register", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := security.GetClientIP(r, h.server.Config.TrustProxy)
	if !h.allowRequest(w, clientIP) {
		h.recordHTTPMetrics(ctx, "register", r.Method, http.StatusTooManyRequests, startTime)
		return
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recordHTTPMetrics(ctx, "register", r.Method, http.StatusBadRequest, startTime)
		instrumentation.SetSpanError(span, "malformed registration body")
		h.writeError(w, ErrInvalidClientMetadata("Request body must be valid JSON"))
		return
	}

	client, secret, err := h.server.RegisterClient(ctx, &server.ClientRegistration{
		ClientName:    req.ClientName,
		RedirectURIs:  req.RedirectURIs,
		GrantTypes:    req.GrantTypes,
		ResponseTypes: req.ResponseTypes,
		Scope:         req.Scope,
	}, clientIP)
	if err != nil {
		h.logger.Warn("Client registration failed", "ip", clientIP, "error", err)
		h.recordHTTPMetrics(ctx, "register", r.Method, http.StatusBadRequest, startTime)
		instrumentation.RecordError(span, err)
		h.writeError(w, mapServerError(err, http.StatusBadRequest))
		return
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, client.ClientID))
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics(ctx, "register", r.Method, http.StatusCreated, startTime)

	h.writeJSON(w, http.StatusCreated, &ClientRegistrationResponse{
		ClientID:         client.ClientID,
		ClientSecret:     secret,
		ClientName:       client.ClientName,
		RedirectURIs:     client.RedirectURIs,
		GrantTypes:       client.GrantTypes,
		ResponseTypes:    client.ResponseTypes,
		Scope:            client.Scope,
		ClientIDIssuedAt: client.CreatedAt.Unix(),
		// Secrets do not expire
		ClientSecretExpiresAt: 0,
	})
}

// ServeAuthorization handles GET /oauth/authorize.
// Validation failures are returned as JSON error bodies rather than error
// redirects, so misconfigured clients see the failure directly.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.authorization")
		defer span.End()
	}

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics(ctx, "authorize", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := security.GetClientIP(r, h.server.Config.TrustProxy)
	if !h.allowRequest(w, clientIP) {
		h.recordHTTPMetrics(ctx, "authorize", r.Method, http.StatusTooManyRequests, startTime)
		return
	}

	q := r.URL.Query()
	req := &server.AuthorizationRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	if req.ClientID == "" {
		h.recordHTTPMetrics(ctx, "authorize", r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, ErrInvalidRequest("client_id is required"))
		return
	}

	if err := h.server.ValidateScope(req.Scope); err != nil {
		h.recordHTTPMetrics(ctx, "authorize", r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, mapServerError(err, http.StatusBadRequest))
		return
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, req.ClientID),
		attribute.String(instrumentation.AttrResponseType, req.ResponseType))

	redirectURL, err := h.server.Authorize(ctx, req, clientIP)
	if err != nil {
		h.recordHTTPMetrics(ctx, "authorize", r.Method, http.StatusBadRequest, startTime)
		instrumentation.RecordError(span, err)
		// Unknown client at the authorization endpoint is a 400, not a 401:
		// there are no credentials to challenge here
		h.writeError(w, mapServerError(err, http.StatusBadRequest))
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics(ctx, "authorize", r.Method, http.StatusFound, startTime)

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// tokenRequest is the decoded body of a token endpoint request
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	CodeVerifier string `json:"code_verifier"`
}

// parseTokenRequest decodes a token request from either a form-encoded or a
// JSON body. Basic auth credentials, when present, override body credentials.
func parseTokenRequest(r *http.Request) (*tokenRequest, error) {
	req := &tokenRequest{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			return nil, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		req.GrantType = r.PostFormValue("grant_type")
		req.Code = r.PostFormValue("code")
		req.RedirectURI = r.PostFormValue("redirect_uri")
		req.ClientID = r.PostFormValue("client_id")
		req.ClientSecret = r.PostFormValue("client_secret")
		req.CodeVerifier = r.PostFormValue("code_verifier")
	}

	if username, password, ok := r.BasicAuth(); ok {
		req.ClientID = username
		req.ClientSecret = password
	}

	return req, nil
}

// ServeToken handles POST /oauth/token
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.token_exchange")
		defer span.End()
	}

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := security.GetClientIP(r, h.server.Config.TrustProxy)
	if !h.allowRequest(w, clientIP) {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusTooManyRequests, startTime)
		return
	}

	req, err := parseTokenRequest(r)
	if err != nil {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, ErrInvalidRequest("Failed to parse request body"))
		return
	}

	if req.GrantType == "" {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, ErrInvalidRequest("grant_type is required"))
		return
	}
	if req.GrantType != "authorization_code" {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, ErrUnsupportedGrantType("Grant type "+req.GrantType+" is not supported"))
		return
	}

	if req.Code == "" || req.RedirectURI == "" || req.ClientID == "" || req.ClientSecret == "" {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, ErrInvalidRequest("code, redirect_uri, client_id and client_secret are required"))
		return
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, req.ClientID),
		attribute.String(instrumentation.AttrGrantType, req.GrantType))

	// Authenticate the client before touching the code, so credential
	// failures do not consume the grant
	if err := h.server.ValidateClientCredentials(ctx, req.ClientID, req.ClientSecret); err != nil {
		h.logger.Warn("Client authentication failed", "client_id", req.ClientID, "ip", clientIP)
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusUnauthorized, startTime)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrInvalidClient("Client authentication failed"))
		return
	}

	token, err := h.server.ExchangeAuthorizationCode(ctx, req.Code, req.ClientID, req.RedirectURI, clientIP)
	if err != nil {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusBadRequest, startTime)
		instrumentation.RecordError(span, err)
		// Details were logged server-side; the caller gets a generic error
		h.writeError(w, ErrInvalidGrant("Authorization code is invalid or expired"))
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusOK, startTime)

	h.writeJSON(w, http.StatusOK, &TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   h.server.Config.AccessTokenTTL,
		Scope:       token.Scope,
	})
}

// ServeAuthorizationServerMetadata handles GET /.well-known/oauth-authorization-server (RFC 8414)
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	issuer := strings.TrimSuffix(h.server.Config.Issuer, "/")

	h.writeJSON(w, http.StatusOK, &AuthorizationServerMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/oauth/authorize",
		TokenEndpoint:                     issuer + "/oauth/token",
		RegistrationEndpoint:              issuer + "/oauth/register",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
		ScopesSupported:                   h.server.Config.SupportedScopes,
	})
}

// ServeHealth handles GET /health
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, &HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ValidateToken is middleware that requires a valid bearer token. The token
// record is attached to the request context for downstream handlers.
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := security.GetClientIP(r, h.server.Config.TrustProxy)
		if !h.allowRequest(w, clientIP) {
			return
		}

		accessToken, ok := h.extractBearerToken(w, r)
		if !ok {
			return
		}

		token, err := h.server.ValidateBearer(r.Context(), accessToken)
		if err != nil {
			h.logger.Warn("Token validation failed", "ip", clientIP, "error", err)
			h.writeError(w, ErrInvalidToken("Token validation failed"))
			return
		}

		ctx := ContextWithAccessToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken pulls the bearer token out of the Authorization header,
// writing a 401 response on failure
func (h *Handler) extractBearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		h.writeError(w, ErrInvalidToken("Missing Authorization header"))
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		h.writeError(w, ErrInvalidToken("Invalid Authorization header format"))
		return "", false
	}

	return parts[1], true
}

// allowRequest applies the IP rate limiter, writing a 429 when exceeded.
// Returns true when the request may proceed.
func (h *Handler) allowRequest(w http.ResponseWriter, clientIP string) bool {
	if h.server.RateLimiter == nil || h.server.RateLimiter.Allow(clientIP) {
		return true
	}

	if h.server.Auditor != nil {
		h.server.Auditor.LogRateLimitExceeded(clientIP)
	}
	if inst := h.server.Instrumentation(); inst != nil {
		inst.Metrics().RecordRateLimitExceeded(context.Background(), "ip")
	}

	h.writeError(w, NewOAuthError(ErrorCodeRateLimitExceeded,
		"Rate limit exceeded. Please try again later.", http.StatusTooManyRequests))
	return false
}

// writeError writes an OAuth error response with security headers
func (h *Handler) writeError(w http.ResponseWriter, oauthErr *OAuthError) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)

	if oauthErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(oauthErr.Status)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
}

// writeJSON writes a JSON response with security headers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recordHTTPMetrics records request count and duration for an endpoint
func (h *Handler) recordHTTPMetrics(ctx context.Context, endpoint, method string, status int, startTime time.Time) {
	inst := h.server.Instrumentation()
	if inst == nil {
		return
	}
	durationMs := float64(time.Since(startTime).Milliseconds())
	inst.Metrics().RecordHTTPRequest(ctx, method, endpoint, status, durationMs)
}

// mapServerError converts error-code-prefixed server errors into OAuthError
// responses. Unknown errors become server_error.
func mapServerError(err error, status int) *OAuthError {
	msg := err.Error()

	codes := []string{
		ErrorCodeInvalidClientMetadata,
		ErrorCodeUnsupportedResponseType,
		ErrorCodeUnsupportedGrantType,
		ErrorCodeInvalidRequest,
		ErrorCodeInvalidClient,
		ErrorCodeInvalidGrant,
	}
	for _, code := range codes {
		if strings.HasPrefix(msg, code+":") {
			desc := strings.TrimSpace(strings.TrimPrefix(msg, code+":"))
			return NewOAuthError(code, desc, status)
		}
	}

	return ErrServerError("Internal server error")
}
