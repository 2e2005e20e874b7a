package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/google"
	"github.com/teemow/mcp-gmail/internal/instrumentation"
	"github.com/teemow/mcp-gmail/internal/logging"
	"github.com/teemow/mcp-gmail/internal/server"
)

// globalOptions holds the persistent flags of the root command.
type globalOptions struct {
	configFile string
	debug      bool
}

// Test hooks. Production code never changes them.
var (
	// authorizer replaces the browser based loopback flow when set.
	authorizer google.Authorizer
	// serviceOptions are appended to every Gmail service.
	serviceOptions []option.ClientOption
	// invokerOptions are appended to every invoker.
	invokerOptions []gmail.InvokerOption
)

// load reads the configuration and builds the process logger.
func (o *globalOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: o.configFile})
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if o.debug {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: cfg.LogFormat})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newAuthenticator builds the credential state machine for cfg. recorder may
// be nil.
func newAuthenticator(cfg *config.Config, logger *slog.Logger, recorder google.Recorder) *google.Authenticator {
	auth := &google.Authenticator{
		CredentialsPath: cfg.CredentialsPath,
		TokenPath:       cfg.TokenPath,
		Scopes:          cfg.Scopes,
		SharedFile:      cfg.MultiAccountSingleFile,
		Authorizer:      authorizer,
		Logger:          logger,
	}
	if recorder != nil {
		auth.Recorder = recorder
	}
	return auth
}

type serverContextOptions struct {
	readOnly bool
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger
}

// newServerContext builds the service factory shared by the one-shot
// commands and the MCP server.
func newServerContext(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts serverContextOptions) (*server.ServerContext, error) {
	var recorder google.Recorder
	if opts.metrics != nil {
		recorder = opts.metrics
	}

	sc, err := server.NewServerContext(ctx, server.Options{
		Config:         cfg,
		Tokens:         newAuthenticator(cfg, logger, recorder),
		Metrics:        opts.metrics,
		Audit:          opts.audit,
		Logger:         logger,
		ReadOnly:       opts.readOnly,
		ServiceOptions: serviceOptions,
		InvokerOptions: invokerOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return sc, nil
}

// withClient loads the configuration, resolves account and runs fn with the
// configuration and a ready Gmail client.
func (o *globalOptions) withClient(ctx context.Context, account string, fn func(*config.Config, *gmail.Client) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}

	sc, err := newServerContext(ctx, cfg, logger, serverContextOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = sc.Shutdown() }()

	client, err := sc.GmailClientForAccount(ctx, account)
	if err != nil {
		return err
	}
	return fn(cfg, client)
}
