package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	oauth "github.com/giantswarm/mcp-auth"
	"github.com/giantswarm/mcp-auth/gate"
	"github.com/giantswarm/mcp-auth/instrumentation"
	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage/file"
	"github.com/giantswarm/mcp-auth/tools"
)

var (
	serveListenAddr string
	serveIssuer     string
	serveStorageDir string
	serveDebug      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authorization server and the MCP tool endpoint",
	Long: `Starts the HTTP server exposing the OAuth endpoints and the MCP tool
endpoint at /mcp. Tokens issued by the OAuth endpoints gate the MCP tools.

Configuration is read from flags and environment variables (flags win):

  MCP_AUTH_ISSUER        Externally visible base URL (required)
  MCP_AUTH_LISTEN_ADDR   Listen address (default :8080)
  MCP_AUTH_STORAGE_DIR   Directory for state snapshots; empty disables persistence
  MCP_AUTH_JWT_SECRET    HS256 signing secret; empty means opaque tokens
  MCP_AUTH_SUBJECT       Subject authorizations are approved for (default demo_user)
  MCP_AUTH_CODE_TTL      Authorization code lifetime in seconds (default 600)
  MCP_AUTH_TOKEN_TTL     Access token lifetime in seconds (default 3600)
  MCP_AUTH_SCOPES        Space-separated scope allow-list; empty allows all
  MCP_AUTH_RATE_LIMIT    Requests per second per IP; 0 disables limiting
  MCP_AUTH_TRUST_PROXY   Trust X-Forwarded-For headers (true/false)

A .env file in the working directory is loaded at startup.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "Listen address (overrides MCP_AUTH_LISTEN_ADDR)")
	serveCmd.Flags().StringVar(&serveIssuer, "issuer", "", "Issuer base URL (overrides MCP_AUTH_ISSUER)")
	serveCmd.Flags().StringVar(&serveStorageDir, "storage-dir", "", "State snapshot directory (overrides MCP_AUTH_STORAGE_DIR)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if serveDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	issuer := firstNonEmpty(serveIssuer, os.Getenv("MCP_AUTH_ISSUER"))
	if issuer == "" {
		return fmt.Errorf("issuer is required: set --issuer or MCP_AUTH_ISSUER")
	}

	listenAddr := firstNonEmpty(serveListenAddr, os.Getenv("MCP_AUTH_LISTEN_ADDR"), ":8080")
	storageDir := firstNonEmpty(serveStorageDir, os.Getenv("MCP_AUTH_STORAGE_DIR"))

	config := &oauth.Config{
		Issuer:               issuer,
		AuthorizationCodeTTL: envSeconds("MCP_AUTH_CODE_TTL", 0),
		AccessTokenTTL:       envSeconds("MCP_AUTH_TOKEN_TTL", 0),
		SigningSecret:        os.Getenv("MCP_AUTH_JWT_SECRET"),
		Subject:              os.Getenv("MCP_AUTH_SUBJECT"),
		SupportedScopes:      strings.Fields(os.Getenv("MCP_AUTH_SCOPES")),
		RateLimit:            envInt("MCP_AUTH_RATE_LIMIT", 0),
		TrustProxy:           envBool("MCP_AUTH_TRUST_PROXY"),
		AuditEnabled:         true,
		Logger:               logger,
	}

	svc, err := oauth.NewService(config)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer svc.Stop()

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName:    "mcp-authd",
		ServiceVersion: version,
		Enabled:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	svc.Server.SetInstrumentation(inst)
	svc.Store.SetInstrumentation(inst)

	if storageDir != "" {
		persister, err := file.New(storageDir)
		if err != nil {
			return fmt.Errorf("failed to initialize persistence: %w", err)
		}

		snap, err := persister.Load()
		if err != nil {
			return fmt.Errorf("failed to load persisted state: %w", err)
		}
		svc.Store.LoadSnapshot(snap)
		svc.SetPersister(persister)

		logger.Info("State persistence enabled",
			"dir", storageDir,
			"clients", svc.Store.ClientCount(),
			"tokens", svc.Store.TokenCount())
	}

	toolGate := gate.New(svc.Server, []string{"public_info"}, logger)
	toolGate.SetAuditor(svc.Server.Auditor)
	toolGate.SetInstrumentation(inst)

	toolServer := tools.NewServer(toolGate, version, logger)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	mux.Handle("/mcp", toolServer.HTTPHandler())

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           security.RequestIDMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", listenAddr, "issuer", issuer)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return inst.Shutdown(context.Background())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if n := envInt(key, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
