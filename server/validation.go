package server

import (
	"fmt"
	"strings"

	"github.com/giantswarm/mcp-auth/storage"
)

// validateRedirectURI checks the requested redirect URI against the client's
// registered list using exact string comparison. A client with no registered
// redirect URIs fails closed: no URI can match an empty list.
func validateRedirectURI(client *storage.Client, redirectURI string) error {
	if redirectURI == "" {
		return fmt.Errorf("redirect_uri is required")
	}

	for _, registered := range client.RedirectURIs {
		if registered == redirectURI {
			return nil
		}
	}

	return fmt.Errorf("redirect_uri is not registered for this client")
}

// ValidateScope checks requested scopes against the configured allow-list.
// An empty allow-list permits everything.
func (s *Server) ValidateScope(scope string) error {
	if scope == "" || len(s.Config.SupportedScopes) == 0 {
		return nil
	}

	supported := make(map[string]bool, len(s.Config.SupportedScopes))
	for _, sc := range s.Config.SupportedScopes {
		supported[sc] = true
	}

	for _, requested := range strings.Fields(scope) {
		if !supported[requested] {
			return fmt.Errorf("%s: scope %q is not supported", ErrorCodeInvalidRequest, requested)
		}
	}

	return nil
}
