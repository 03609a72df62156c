package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

// ClientRegistration describes a dynamic client registration request
// (RFC 7591). ClientName is the only required field.
type ClientRegistration struct {
	ClientName    string
	RedirectURIs  []string
	GrantTypes    []string
	ResponseTypes []string
	Scope         string
}

// RegisterClient registers a new OAuth client and returns the stored record
// together with the plaintext secret. The secret is returned exactly once;
// only its bcrypt hash is persisted.
func (s *Server) RegisterClient(ctx context.Context, reg *ClientRegistration, clientIP string) (*storage.Client, string, error) {
	if reg == nil || reg.ClientName == "" {
		if s.Auditor != nil {
			s.Auditor.LogEvent(security.Event{
				Type:      security.EventClientRegistrationRejected,
				IPAddress: clientIP,
				Details: map[string]any{
					"reason": "client_name_missing",
				},
			})
		}
		return nil, "", fmt.Errorf("%s: client_name is required", ErrorCodeInvalidClientMetadata)
	}

	clientID := "client_" + uuid.NewString()
	clientSecret := "secret_" + uuid.NewString()

	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash client secret: %w", err)
	}

	client := &storage.Client{
		ClientID:         clientID,
		ClientSecretHash: string(hash),
		ClientName:       reg.ClientName,
		RedirectURIs:     reg.RedirectURIs,
		GrantTypes:       reg.GrantTypes,
		ResponseTypes:    reg.ResponseTypes,
		Scope:            reg.Scope,
		CreatedAt:        time.Now(),
	}

	// Defaults per RFC 7591: omitted metadata falls back to the
	// authorization code flow. An absent redirect_uris list stays empty,
	// which makes every authorization request for this client fail closed.
	if len(client.GrantTypes) == 0 {
		client.GrantTypes = []string{"authorization_code"}
	}
	if len(client.ResponseTypes) == 0 {
		client.ResponseTypes = []string{"code"}
	}
	if client.RedirectURIs == nil {
		client.RedirectURIs = []string{}
	}

	if err := s.clientStore.SaveClient(ctx, client); err != nil {
		return nil, "", fmt.Errorf("failed to save client: %w", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogClientRegistered(client.ClientID, client.ClientName, clientIP)
	}
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordClientRegistration(ctx)
	}

	s.Logger.Info("Registered new OAuth client",
		"client_id", client.ClientID,
		"client_name", client.ClientName,
		"redirect_uris", len(client.RedirectURIs),
		"client_ip", clientIP)

	return client, clientSecret, nil
}

// ValidateClientCredentials validates client credentials for the token endpoint
func (s *Server) ValidateClientCredentials(ctx context.Context, clientID, clientSecret string) error {
	return s.clientStore.ValidateClientSecret(ctx, clientID, clientSecret)
}

// GetClient retrieves a client by ID (for use by the handler)
func (s *Server) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	return s.clientStore.GetClient(ctx, clientID)
}
