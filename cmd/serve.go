package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/mcp-gmail/internal/instrumentation"
	"github.com/teemow/mcp-gmail/internal/logging"
	"github.com/teemow/mcp-gmail/internal/prompts"
	"github.com/teemow/mcp-gmail/internal/resources"
	"github.com/teemow/mcp-gmail/internal/server"
	"github.com/teemow/mcp-gmail/internal/tools/common"
	"github.com/teemow/mcp-gmail/internal/tools/gmail_tools"
)

// serverName is reported to MCP clients during initialization.
const serverName = "Gmail MCP Server"

const serverInstructions = `Access and interact with Gmail. You can get messages, threads, search emails, send or compose messages (with optional attachments), reply to emails (with optional attachments via reply_to_email), manage drafts and labels, trash/untrash, and download attachments. Multi-account is supported via the optional 'account' parameter on tools (use token file suffix, e.g. token_work.json for account 'work'). Use list_accounts to see which accounts have stored credentials.

For token-efficient or scripted workflows (e.g. a cron job or one-off script), prefer the mcp-gmail command line (search, send, get) over MCP tool calls. It uses the same OAuth setup (credentials.json, token.json).`

// serveOptions holds the flags of the serve command.
type serveOptions struct {
	readOnly    bool
	metricsAddr string
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var so serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server on standard input and output.

Standard output carries the protocol; logs go to standard error.

Safety Mode:
  Use --read-only to register only tools that do not change the mailbox
  (no sending, drafting, labeling, trashing or downloading).

Observability:
  --metrics-addr starts an HTTP server with /metrics, /healthz and /readyz.
  Instrumentation is configured with the INSTRUMENTATION_*, METRICS_* and
  OTEL_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, so, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&so.readOnly, "read-only", false, "Register only tools that do not modify the mailbox")
	cmd.Flags().StringVar(&so.metricsAddr, "metrics-addr", "", "Serve /metrics and health endpoints on this address (e.g. "+server.DefaultMetricsAddr+"). Disabled when empty.")

	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, so serveOptions, in io.Reader, out io.Writer) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	instrConfig, err := instrumentation.ConfigFromEnv(os.LookupEnv)
	if err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	scOpts := serverContextOptions{readOnly: so.readOnly}
	if provider.Enabled() {
		scOpts.metrics = provider.Metrics()
		scOpts.audit = instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)
	}
	serverContext, err := newServerContext(ctx, cfg, logger, scOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	health := server.NewHealthChecker(serverContext)
	if so.metricsAddr != "" {
		stop, err := startMetricsServer(so.metricsAddr, provider, health, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	mcpSrv, err := newMCPServer(serverContext, logger, so.readOnly)
	if err != nil {
		return err
	}

	if so.readOnly {
		logger.Info("starting server in read-only mode")
	}
	logger.Info("serving MCP over stdio", slog.String("version", version))

	stdio := mcpserver.NewStdioServer(mcpSrv)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	err = stdio.Listen(ctx, in, out)
	health.SetReady(false)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// startMetricsServer binds addr and serves metrics in the background. The
// returned function shuts the server down.
func startMetricsServer(addr string, provider *instrumentation.Provider, health *server.HealthChecker, logger *slog.Logger) (func(), error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Health:                  health,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	ln, err := net.Listen("tcp", metricsServer.Addr())
	if err != nil {
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	}
	go func() {
		if err := metricsServer.Serve(ln); err != nil {
			logger.Error("metrics server stopped", logging.Err(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during metrics server shutdown", logging.Err(err))
		}
	}, nil
}

// newMCPServer creates the MCP server with every tool, resource and prompt
// registered.
func newMCPServer(sc *server.ServerContext, logger *slog.Logger, readOnly bool) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer(serverName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithToolHandlerMiddleware(common.LoggingMiddleware(logger)),
		mcpserver.WithInstructions(serverInstructions),
	)

	if err := registerAll(mcpSrv, sc, readOnly); err != nil {
		return nil, err
	}
	return mcpSrv, nil
}

// registerAll registers all MCP tools, resources and prompts
func registerAll(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	type registration struct {
		name     string
		register func() error
	}

	registrations := []registration{
		{
			name: "Gmail tools",
			register: func() error {
				return gmail_tools.RegisterGmailTools(mcpSrv, sc, readOnly)
			},
		},
		{
			name: "Gmail resources",
			register: func() error {
				return resources.RegisterGmailResources(mcpSrv, sc)
			},
		},
		{
			name: "prompts",
			register: func() error {
				return prompts.RegisterPrompts(mcpSrv)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}
