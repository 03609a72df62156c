// mcp-authd runs the OAuth authorization server together with the gated MCP
// tool server as a single binary.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is injected at build time via -ldflags
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mcp-authd",
	Short: "OAuth 2.0 authorization server for MCP tools",
	Long: `mcp-authd is a self-contained OAuth 2.0 authorization server with
dynamic client registration (RFC 7591). It protects MCP tools behind bearer
tokens: clients register, complete the authorization code flow on behalf of a
single demo subject, and present the resulting token when calling tools.`,
	SilenceUsage: true,
}

func main() {
	// Local overrides first, then the base file
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`{{printf "mcp-authd version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
