package oauth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/mcp-auth/internal/testutil"
)

func newTestService(t *testing.T, config *Config) *Service {
	t.Helper()

	if config == nil {
		config = &Config{}
	}
	if config.Issuer == "" {
		config.Issuer = "http://localhost:8080"
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Hour
	}
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := NewService(config)
	testutil.AssertNoError(t, err)
	t.Cleanup(svc.Stop)

	return svc
}

func newTestMux(t *testing.T, svc *Service) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	return mux
}

// registerTestClient runs a registration request and returns the parsed response
func registerTestClient(t *testing.T, mux *http.ServeMux, body string) *ClientRegistrationResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertEqual(t, http.StatusCreated, rec.Code)

	var resp ClientRegistrationResponse
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return &resp
}

// requestAuthorizationCode drives the authorization endpoint and extracts the
// code from the redirect Location
func requestAuthorizationCode(t *testing.T, mux *http.ServeMux, clientID, redirectURI, state string) string {
	t.Helper()

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertEqual(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	testutil.AssertNoError(t, err)
	code := location.Query().Get("code")
	testutil.AssertTrue(t, code != "", "redirect should carry an authorization code")

	if state != "" {
		testutil.AssertEqual(t, state, location.Query().Get("state"))
	}

	return code
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return &resp
}

func TestFullAuthorizationCodeFlow(t *testing.T) {
	svc := newTestService(t, nil)
	mux := newTestMux(t, svc)

	client := registerTestClient(t, mux,
		`{"client_name":"Test App","redirect_uris":["http://localhost:9090/callback"]}`)
	testutil.AssertTrue(t, strings.HasPrefix(client.ClientID, "client_"), "client_id prefix")
	testutil.AssertTrue(t, strings.HasPrefix(client.ClientSecret, "secret_"), "client_secret prefix")

	code := requestAuthorizationCode(t, mux, client.ClientID, "http://localhost:9090/callback", "xyz123")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", "http://localhost:9090/callback")
	form.Set("client_id", client.ClientID)
	form.Set("client_secret", client.ClientSecret)

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertEqual(t, http.StatusOK, rec.Code)

	var tokenResp TokenResponse
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&tokenResp))
	testutil.AssertEqual(t, "Bearer", tokenResp.TokenType)
	testutil.AssertEqual(t, int64(3600), tokenResp.ExpiresIn)
	testutil.AssertTrue(t, tokenResp.AccessToken != "", "access token present")

	// The token gates a protected handler via the middleware
	var gotSubject string
	protected := svc.Handler.ValidateToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	apiReq := httptest.NewRequest(http.MethodGet, "/api/echo", nil)
	apiReq.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
	apiRec := httptest.NewRecorder()
	protected.ServeHTTP(apiRec, apiReq)

	testutil.AssertEqual(t, http.StatusOK, apiRec.Code)
	testutil.AssertEqual(t, "demo_user", gotSubject)
}

func TestClientRegistration_Errors(t *testing.T) {
	svc := newTestService(t, nil)
	mux := newTestMux(t, svc)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing client_name",
			method:     http.MethodPost,
			body:       `{"redirect_uris":["http://localhost/cb"]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeInvalidClientMetadata,
		},
		{
			name:       "malformed JSON",
			method:     http.MethodPost,
			body:       `{"client_name":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeInvalidClientMetadata,
		},
		{
			name:       "wrong method",
			method:     http.MethodGet,
			body:       "",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/oauth/register", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			testutil.AssertEqual(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				testutil.AssertEqual(t, tt.wantCode, decodeErrorResponse(t, rec).Error)
			}
		})
	}
}

func TestAuthorization_Errors(t *testing.T) {
	svc := newTestService(t, &Config{SupportedScopes: []string{"read"}})
	mux := newTestMux(t, svc)

	client := registerTestClient(t, mux,
		`{"client_name":"Test App","redirect_uris":["http://localhost:9090/callback"]}`)

	tests := []struct {
		name     string
		query    url.Values
		wantCode string
	}{
		{
			name: "missing client_id",
			query: url.Values{
				"response_type": {"code"},
				"redirect_uri":  {"http://localhost:9090/callback"},
			},
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name: "unknown client",
			query: url.Values{
				"response_type": {"code"},
				"client_id":     {"client_does-not-exist"},
				"redirect_uri":  {"http://localhost:9090/callback"},
			},
			wantCode: ErrorCodeInvalidClient,
		},
		{
			name: "unsupported response type",
			query: url.Values{
				"response_type": {"token"},
				"client_id":     {client.ClientID},
				"redirect_uri":  {"http://localhost:9090/callback"},
			},
			wantCode: ErrorCodeUnsupportedResponseType,
		},
		{
			name: "unregistered redirect_uri",
			query: url.Values{
				"response_type": {"code"},
				"client_id":     {client.ClientID},
				"redirect_uri":  {"http://evil.example.com/callback"},
			},
			wantCode: ErrorCodeInvalidRequest,
		},
		{
			name: "unsupported scope",
			query: url.Values{
				"response_type": {"code"},
				"client_id":     {client.ClientID},
				"redirect_uri":  {"http://localhost:9090/callback"},
				"scope":         {"admin"},
			},
			wantCode: ErrorCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+tt.query.Encode(), nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			testutil.AssertEqual(t, http.StatusBadRequest, rec.Code)
			testutil.AssertEqual(t, tt.wantCode, decodeErrorResponse(t, rec).Error)
		})
	}
}

func TestToken_JSONBody(t *testing.T) {
	svc := newTestService(t, nil)
	mux := newTestMux(t, svc)

	client := registerTestClient(t, mux,
		`{"client_name":"Test App","redirect_uris":["http://localhost:9090/callback"]}`)
	code := requestAuthorizationCode(t, mux, client.ClientID, "http://localhost:9090/callback", "")

	body, err := json.Marshal(map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  "http://localhost:9090/callback",
		"client_id":     client.ClientID,
		"client_secret": client.ClientSecret,
	})
	testutil.AssertNoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertEqual(t, http.StatusOK, rec.Code)
}

func TestToken_BasicAuth(t *testing.T) {
	svc := newTestService(t, nil)
	mux := newTestMux(t, svc)

	client := registerTestClient(t, mux,
		`{"client_name":"Test App","redirect_uris":["http://localhost:9090/callback"]}`)
	code := requestAuthorizationCode(t, mux, client.ClientID, "http://localhost:9090/callback", "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", "http://localhost:9090/callback")
	form.Set("client_id", client.ClientID)

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(client.ClientID, client.ClientSecret)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertEqual(t, http.StatusOK, rec.Code)
}

func TestToken_Errors(t *testing.T) {
	svc := newTestService(t, nil)
	mux := newTestMux(t, svc)

	client := registerTestClient(t, mux,
		`{"client_name":"Test App","redirect_uris":["http://localhost:9090/callback"]}`)
	code := requestAuthorizationCode(t, mux, client.ClientID, "http://localhost:9090/callback", "")

	postForm := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing grant_type", func(t *testing.T) {
		rec := postForm(url.Values{"code": {code}})
		testutil.AssertEqual(t, http.StatusBadRequest, rec.Code)
		testutil.AssertEqual(t, ErrorCodeInvalidRequest, decodeErrorResponse(t, rec).Error)
	})

	t.Run("unsupported grant_type", func(t *testing.T) {
		rec := postForm(url.Values{"grant_type": {"client_credentials"}})
		testutil.AssertEqual(t, http.StatusBadRequest, rec.Code)
		testutil.AssertEqual(t, ErrorCodeUnsupportedGrantType, decodeErrorResponse(t, rec).Error)
	})

	t.Run("wrong client secret leaves the code intact", func(t *testing.T) {
		rec := postForm(url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"http://localhost:9090/callback"},
			"client_id":     {client.ClientID},
			"client_secret": {"secret_wrong"},
		})
		testutil.AssertEqual(t, http.StatusUnauthorized, rec.Code)
		testutil.AssertEqual(t, ErrorCodeInvalidClient, decodeErrorResponse(t, rec).Error)
		testutil.AssertEqual(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("valid exchange then reuse", func(t *testing.T) {
		form := url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"http://localhost:9090/callback"},
			"client_id":     {client.ClientID},
			"client_secret": {client.ClientSecret},
		}

		rec := postForm(form)
		testutil.AssertEqual(t, http.StatusOK, rec.Code)

		rec = postForm(form)
		testutil.AssertEqual(t, http.StatusBadRequest, rec.Code)
		testutil.AssertEqual(t, ErrorCodeInvalidGrant, decodeErrorResponse(t, rec).Error)
	})
}

func TestAuthorizationServerMetadata(t *testing.T) {
	svc := newTestService(t, &Config{
		Issuer:          "https://auth.example.com/",
		SupportedScopes: []string{"read", "write"},
	})
	mux := newTestMux(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertEqual(t, http.StatusOK, rec.Code)

	var meta AuthorizationServerMetadata
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&meta))
	testutil.AssertEqual(t, "https://auth.example.com", meta.Issuer)
	testutil.AssertEqual(t, "https://auth.example.com/oauth/authorize", meta.AuthorizationEndpoint)
	testutil.AssertEqual(t, "https://auth.example.com/oauth/token", meta.TokenEndpoint)
	testutil.AssertEqual(t, "https://auth.example.com/oauth/register", meta.RegistrationEndpoint)
	testutil.AssertEqual(t, 1, len(meta.ResponseTypesSupported))
	testutil.AssertEqual(t, "code", meta.ResponseTypesSupported[0])
	testutil.AssertEqual(t, 2, len(meta.ScopesSupported))
}

func TestHealth(t *testing.T) {
	svc := newTestService(t, nil)
	mux := newTestMux(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertEqual(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	testutil.AssertEqual(t, "ok", resp.Status)
}

func TestValidateToken_Errors(t *testing.T) {
	svc := newTestService(t, nil)

	protected := svc.Handler.ValidateToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "unknown token", header: "Bearer not-a-real-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/echo", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			testutil.AssertEqual(t, http.StatusUnauthorized, rec.Code)
			testutil.AssertEqual(t, ErrorCodeInvalidToken, decodeErrorResponse(t, rec).Error)
			testutil.AssertEqual(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestRateLimiting(t *testing.T) {
	svc := newTestService(t, &Config{
		RateLimit:      1,
		RateLimitBurst: 1,
	})
	mux := newTestMux(t, svc)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	// First request passes the limiter (and fails validation downstream)
	rec := get()
	testutil.AssertEqual(t, http.StatusBadRequest, rec.Code)

	rec = get()
	testutil.AssertEqual(t, http.StatusTooManyRequests, rec.Code)
	testutil.AssertEqual(t, ErrorCodeRateLimitExceeded, decodeErrorResponse(t, rec).Error)
}

func TestSecurityHeaders(t *testing.T) {
	svc := newTestService(t, nil)
	mux := newTestMux(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertEqual(t, "DENY", rec.Header().Get("X-Frame-Options"))
	testutil.AssertEqual(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	testutil.AssertEqual(t, "no-store", rec.Header().Get("Cache-Control"))
}
