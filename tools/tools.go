// Package tools exposes a small MCP tool server whose tools are protected by
// the OAuth gate. It demonstrates the full flow: clients register, obtain a
// token, and present it when calling protected tools.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-auth/gate"
)

// bearerTokenContextKey carries the HTTP Authorization bearer token into tool
// handlers
type bearerTokenContextKey struct{}

// ContextWithBearerToken attaches a bearer token to the context
func ContextWithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenContextKey{}, token)
}

// BearerTokenFromContext returns the bearer token attached to the context, or ""
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenContextKey{}).(string)
	return token
}

// Server is an MCP tool server gated by bearer tokens
type Server struct {
	mcpServer *server.MCPServer
	gate      *gate.Gate
	logger    *slog.Logger
}

// NewServer creates the MCP tool server and registers its tools
func NewServer(g *gate.Gate, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		mcpServer: server.NewMCPServer(
			"mcp-auth-tools",
			version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithPromptCapabilities(false),
		),
		gate:   g,
		logger: logger,
	}

	s.registerTools()
	return s
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	echoTool := mcp.NewTool("echo",
		mcp.WithDescription("Echo a message back to the caller. Requires a valid access token."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Message to echo"),
		),
		mcp.WithString("access_token",
			mcp.Description("Access token, for transports without an Authorization header"),
		),
	)
	s.mcpServer.AddTool(echoTool, s.handleEcho)

	publicInfoTool := mcp.NewTool("public_info",
		mcp.WithDescription("Describe this server and how to obtain an access token. No token required."),
	)
	s.mcpServer.AddTool(publicInfoTool, s.handlePublicInfo)
}

// tokenFromRequest resolves the access token for a tool call. An explicit
// access_token argument wins over the transport-level Authorization header.
func tokenFromRequest(ctx context.Context, request mcp.CallToolRequest) string {
	if raw, ok := request.GetArguments()["access_token"].(string); ok && raw != "" {
		return raw
	}
	return BearerTokenFromContext(ctx)
}

func (s *Server) handleEcho(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	subject, err := s.gate.Authorize(ctx, "echo", tokenFromRequest(ctx, request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unauthorized: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("[%s] %s", subject, message)), nil
}

func (s *Server) handlePublicInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.gate.Authorize(ctx, "public_info", ""); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unauthorized: %v", err)), nil
	}

	return mcp.NewToolResultText(
		"This server's tools require an OAuth 2.0 bearer token. " +
			"Register a client at /oauth/register, complete the authorization " +
			"code flow, and pass the token via the Authorization header or the " +
			"access_token argument."), nil
}

// ServeStdio serves the MCP server over stdio and blocks until EOF
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns a streamable HTTP handler for the MCP server. The
// Authorization header, when present, is made available to tool handlers
// through the request context.
func (s *Server) HTTPHandler() http.Handler {
	streamable := server.NewStreamableHTTPServer(s.mcpServer)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				r = r.WithContext(ContextWithBearerToken(r.Context(), parts[1]))
			}
		}
		streamable.ServeHTTP(w, r)
	})
}
