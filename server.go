package oauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/server"
	"github.com/giantswarm/mcp-auth/storage"
	"github.com/giantswarm/mcp-auth/storage/memory"
)

// Service bundles an in-memory store, the authorization server, and its HTTP
// handler into one ready-to-mount unit. Libraries that need custom wiring
// (alternative stores, shared rate limiters) should assemble the pieces from
// the server and storage packages directly.
type Service struct {
	Server  *server.Server
	Handler *Handler
	Store   *memory.Store

	rateLimiter *security.RateLimiter
}

// NewService creates a fully wired OAuth service from a Config
func NewService(config *Config) (*Service, error) {
	if config == nil || config.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := memory.NewWithInterval(config.CleanupInterval)
	store.SetLogger(logger)

	srvConfig := &server.Config{
		Issuer:               config.Issuer,
		AuthorizationCodeTTL: int64(config.AuthorizationCodeTTL / time.Second),
		AccessTokenTTL:       int64(config.AccessTokenTTL / time.Second),
		SigningSecret:        config.SigningSecret,
		Subject:              config.Subject,
		TrustProxy:           config.TrustProxy,
		SupportedScopes:      config.SupportedScopes,
	}

	srv, err := server.New(store, store, store, srvConfig, logger)
	if err != nil {
		store.Stop()
		return nil, err
	}

	srv.SetAuditor(security.NewAuditor(logger, config.AuditEnabled))

	svc := &Service{
		Server: srv,
		Store:  store,
	}

	if config.RateLimit > 0 {
		burst := config.RateLimitBurst
		if burst == 0 {
			burst = config.RateLimit
		}
		svc.rateLimiter = security.NewRateLimiter(config.RateLimit, burst, logger)
		srv.SetRateLimiter(svc.rateLimiter)
	}

	svc.Handler = NewHandler(srv)

	return svc, nil
}

// SetPersister attaches a durability hook to the store
func (s *Service) SetPersister(p storage.Persister) {
	s.Store.SetPersister(p)
}

// RegisterRoutes mounts all OAuth endpoints on the mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.Handler.RegisterRoutes(mux)
}

// Stop releases background resources (cleanup loops, rate limiter)
func (s *Service) Stop() {
	s.Store.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
