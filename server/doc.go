// Package server implements the OAuth 2.0 authorization server logic:
// dynamic client registration, the authorization code flow, token issuance,
// and bearer token validation. It is transport-agnostic; the root package
// provides the HTTP adapter.
//
// The server authenticates a single synthetic subject. There is no login
// page or identity provider integration; every authorization request is
// approved on behalf of the configured subject. This makes the server
// suitable for demos, integration tests, and development environments
// where the full OAuth handshake must be exercised end to end without a
// real user directory.
package server
