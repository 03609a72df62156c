// Package gate decides whether a tool invocation may proceed based on the
// bearer token accompanying it. Tools are protected by default; individual
// tools can be marked public to bypass token validation entirely.
package gate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/giantswarm/mcp-auth/instrumentation"
	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

// Authorization failures are distinguishable so callers can choose the right
// transport-level response (missing vs rejected credentials).
var (
	// ErrMissingToken indicates a protected tool was called without a token
	ErrMissingToken = errors.New("missing access token")

	// ErrInvalidToken indicates the presented token failed validation
	ErrInvalidToken = errors.New("invalid access token")
)

// BearerValidator validates a bearer token and returns its stored record.
// *server.Server satisfies this interface.
type BearerValidator interface {
	ValidateBearer(ctx context.Context, token string) (*storage.AccessToken, error)
}

// Gate authorizes tool calls against a bearer token validator
type Gate struct {
	validator   BearerValidator
	publicTools map[string]bool
	auditor     *security.Auditor
	logger      *slog.Logger

	instrumentation *instrumentation.Instrumentation
}

// New creates a tool gate. Tools named in publicTools may be called without a
// token; every other tool requires a valid bearer token.
func New(validator BearerValidator, publicTools []string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}

	public := make(map[string]bool, len(publicTools))
	for _, name := range publicTools {
		public[name] = true
	}

	return &Gate{
		validator:   validator,
		publicTools: public,
		logger:      logger,
	}
}

// SetAuditor sets the security auditor
func (g *Gate) SetAuditor(aud *security.Auditor) {
	g.auditor = aud
}

// SetInstrumentation sets OpenTelemetry instrumentation
func (g *Gate) SetInstrumentation(inst *instrumentation.Instrumentation) {
	g.instrumentation = inst
}

// IsPublic reports whether the named tool bypasses token validation
func (g *Gate) IsPublic(toolName string) bool {
	return g.publicTools[toolName]
}

// Authorize checks whether a call to the named tool may proceed. For public
// tools it returns an empty subject and no error without inspecting the
// token. For protected tools it validates the token and returns the subject
// it was issued to.
func (g *Gate) Authorize(ctx context.Context, toolName, token string) (string, error) {
	if g.publicTools[toolName] {
		return "", nil
	}

	if token == "" {
		g.deny(ctx, toolName, "missing token")
		return "", ErrMissingToken
	}

	record, err := g.validator.ValidateBearer(ctx, token)
	if err != nil {
		g.logger.Debug("Tool call token rejected", "tool", toolName, "error", err)
		g.deny(ctx, toolName, "token validation failed")
		return "", ErrInvalidToken
	}

	return record.Subject, nil
}

// deny records a rejected tool call in the audit log and metrics
func (g *Gate) deny(ctx context.Context, toolName, reason string) {
	if g.auditor != nil {
		g.auditor.LogToolCallDenied(toolName, reason)
	}
	if g.instrumentation != nil {
		g.instrumentation.Metrics().RecordToolCallDenied(ctx, toolName)
	}
}
