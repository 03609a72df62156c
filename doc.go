// Package oauth implements a self-contained OAuth 2.0 authorization server
// with dynamic client registration (RFC 7591), the authorization code flow
// (RFC 6749), and RFC 8414 discovery metadata, intended to protect MCP tool
// servers with bearer tokens.
//
// The server approves every authorization on behalf of a single configured
// subject. There is no login page or upstream identity provider; the value of
// the server is that clients must still complete the full register/authorize/
// exchange handshake to obtain a usable token, which makes it well suited for
// demos, integration testing, and development setups.
//
// # Quick Start
//
//	svc, err := oauth.NewService(&oauth.Config{
//		Issuer:       "http://localhost:8080",
//		AuditEnabled: true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Stop()
//
//	mux := http.NewServeMux()
//	svc.RegisterRoutes(mux)
//	mux.Handle("/api/", svc.Handler.ValidateToken(apiHandler))
//
//	log.Fatal(http.ListenAndServe(":8080", mux))
//
// # Endpoints
//
//   - POST /oauth/register - dynamic client registration
//   - GET  /oauth/authorize - authorization endpoint (response_type=code)
//   - POST /oauth/token - token endpoint (authorization_code grant,
//     form-encoded or JSON bodies, Basic or body client authentication)
//   - GET  /.well-known/oauth-authorization-server - discovery metadata
//   - GET  /health - liveness probe
//
// # Security properties
//
//   - Authorization codes are single use: redemption atomically consumes the
//     code before any validation, so concurrent or repeated exchanges of the
//     same code succeed at most once.
//   - Client secrets are stored as bcrypt hashes and validated in constant
//     behavior regardless of client existence.
//   - Expired codes and tokens are indistinguishable from never-issued ones.
//   - PKCE parameters are accepted and recorded but not enforced.
//
// For custom wiring (alternative stores, shared rate limiters, metrics), use
// the server, storage, and security packages directly.
package oauth
