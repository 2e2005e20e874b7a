package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI and the MCP server.
func SetVersion(v string) {
	version = v
}

// newRootCmd builds the command tree. Each call returns an independent tree
// so tests can run commands without sharing flag state.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "mcp-gmail",
		Short: "Gmail for scripts and AI assistants",
		Long: `mcp-gmail talks to Gmail on behalf of one or more Google accounts.

It can run as:
  - A command line tool for scripts (search, send, get)
  - An MCP (Model Context Protocol) server for AI assistants (serve)

Credentials come from an OAuth client file (MCP_GMAIL_CREDENTIALS_PATH) and a
token file (MCP_GMAIL_TOKEN_PATH) that may hold several accounts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "mcp-gmail version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Optional config file (JSON, YAML or TOML). Environment variables take precedence.")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newSearchCmd(opts),
		newSendCmd(opts),
		newGetCmd(opts),
		newAccountsCmd(opts),
		newAuthCmd(opts),
		newServeCmd(opts),
		newGenerateDocsCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcp-gmail version %s\n", version)
		},
	}
}
