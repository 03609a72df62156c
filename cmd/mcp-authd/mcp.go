package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	oauth "github.com/giantswarm/mcp-auth"
	"github.com/giantswarm/mcp-auth/gate"
	"github.com/giantswarm/mcp-auth/storage/file"
	"github.com/giantswarm/mcp-auth/tools"
)

var mcpStorageDir string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Serves the MCP tool server over stdio for clients that spawn the
binary directly instead of connecting over HTTP.

Stdio transport carries no Authorization header, so protected tools take the
token via their access_token argument. Point --storage-dir at the same
directory as a running serve instance to validate tokens it issued.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpStorageDir, "storage-dir", "", "State snapshot directory (overrides MCP_AUTH_STORAGE_DIR)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout belongs to the MCP protocol
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	issuer := firstNonEmpty(os.Getenv("MCP_AUTH_ISSUER"), "http://localhost:8080")

	svc, err := oauth.NewService(&oauth.Config{
		Issuer:        issuer,
		SigningSecret: os.Getenv("MCP_AUTH_JWT_SECRET"),
		Subject:       os.Getenv("MCP_AUTH_SUBJECT"),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer svc.Stop()

	storageDir := firstNonEmpty(mcpStorageDir, os.Getenv("MCP_AUTH_STORAGE_DIR"))
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
	}

	toolGate := gate.New(svc.Server, []string{"public_info"}, logger)
	toolServer := tools.NewServer(toolGate, version, logger)

	return toolServer.ServeStdio()
}
