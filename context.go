package oauth

import (
	"context"

	"github.com/giantswarm/mcp-auth/storage"
)

// accessTokenContextKey is the context key for validated access tokens
type accessTokenContextKey struct{}

// ContextWithAccessToken attaches a validated access token record to the context
func ContextWithAccessToken(ctx context.Context, token *storage.AccessToken) context.Context {
	return context.WithValue(ctx, accessTokenContextKey{}, token)
}

// AccessTokenFromContext retrieves the validated access token record, if any
func AccessTokenFromContext(ctx context.Context) (*storage.AccessToken, bool) {
	token, ok := ctx.Value(accessTokenContextKey{}).(*storage.AccessToken)
	return token, ok
}

// SubjectFromContext returns the authenticated subject, or "" when the
// request carried no validated token
func SubjectFromContext(ctx context.Context) string {
	if token, ok := AccessTokenFromContext(ctx); ok {
		return token.Subject
	}
	return ""
}
