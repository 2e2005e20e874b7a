package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/api/option"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/google"
	"github.com/teemow/mcp-gmail/internal/instrumentation"
	"github.com/teemow/mcp-gmail/internal/logging"
)

// ErrShuttingDown is returned for client requests after Shutdown.
var ErrShuttingDown = errors.New("server is shutting down")

// Options configures a ServerContext.
type Options struct {
	Config   *config.Config
	Tokens   google.TokenProvider
	Metrics  *instrumentation.Metrics
	Audit    *instrumentation.AuditLogger
	Logger   *slog.Logger
	ReadOnly bool

	// ServiceOptions are appended when building Gmail services. Tests use
	// them to point the client at a local endpoint.
	ServiceOptions []option.ClientOption
	// InvokerOptions are appended to the options derived from Config.
	InvokerOptions []gmail.InvokerOption
}

// ServerContext holds the state shared by all MCP handlers: configuration,
// the token provider and a bounded cache of per-account Gmail clients.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg         *config.Config
	tokens      google.TokenProvider
	metrics     *instrumentation.Metrics
	audit       *instrumentation.AuditLogger
	logger      *slog.Logger
	readOnly    bool
	serviceOpts []option.ClientOption
	invokerOpts []gmail.InvokerOption

	// mu serializes client construction so concurrent first calls for one
	// account authorize only once.
	mu       sync.Mutex
	clients  *lru.Cache[string, *gmail.Client]
	shutdown bool
}

// NewServerContext creates a server context. Clients are created lazily on
// first use of each account.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:         shutdownCtx,
		cancel:      cancel,
		cfg:         opts.Config,
		tokens:      opts.Tokens,
		metrics:     opts.Metrics,
		audit:       opts.Audit,
		logger:      logger,
		readOnly:    opts.ReadOnly,
		serviceOpts: opts.ServiceOptions,
		invokerOpts: opts.InvokerOptions,
	}

	size := opts.Config.HandleCacheSize
	if size < 1 {
		size = config.DefaultHandleCacheSize
	}
	clients, err := lru.NewWithEvict(size, sc.onEvict)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create client cache: %w", err)
	}
	sc.clients = clients
	return sc, nil
}

func (sc *ServerContext) onEvict(account string, _ *gmail.Client) {
	sc.logger.Debug("evicted gmail client", logging.Account(displayAccount(account)))
	sc.metrics.AddServiceHandles(context.Background(), -1)
}

// Context returns the server context. It is canceled by Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the server configuration.
func (sc *ServerContext) Config() *config.Config {
	return sc.cfg
}

// Tokens returns the token provider.
func (sc *ServerContext) Tokens() google.TokenProvider {
	return sc.tokens
}

// Metrics returns the metrics recorder. May be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Audit returns the audit logger. May be nil.
func (sc *ServerContext) Audit() *instrumentation.AuditLogger {
	return sc.audit
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// ReadOnly reports whether mutating tools are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// GmailClientForAccount returns the cached client for account, creating it
// on first use. An empty account means the account was not specified and
// resolves the way the token store resolves an empty key. "" and "default"
// share one cached client.
func (sc *ServerContext) GmailClientForAccount(ctx context.Context, account string) (*gmail.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, ErrShuttingDown
	}
	key := displayAccount(account)
	if client, ok := sc.clients.Get(key); ok {
		return client, nil
	}

	ts, err := sc.tokens.TokenSource(ctx, account)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(sc.ctx, ts, sc.serviceOpts...)
	if err != nil {
		return nil, err
	}

	logger := logging.WithAccount(sc.logger, displayAccount(account))
	client := gmail.NewClient(svc,
		gmail.WithUserID(sc.cfg.UserID),
		gmail.WithAccount(account),
		gmail.WithInvoker(sc.newInvoker(account, logger)),
		gmail.WithClientLogger(logger),
	)
	sc.clients.Add(key, client)
	sc.metrics.AddServiceHandles(ctx, 1)
	logger.Debug("created gmail client")
	return client, nil
}

func (sc *ServerContext) newInvoker(account string, logger *slog.Logger) *gmail.Invoker {
	opts := []gmail.InvokerOption{
		gmail.WithLogger(logger),
		gmail.WithRateLimit(sc.cfg.RateLimit),
	}
	if sc.metrics != nil {
		opts = append(opts, gmail.WithObserver(sc.metrics))
	}
	if sc.cfg.CircuitBreaker {
		opts = append(opts, gmail.WithCircuitBreaker("gmail-"+displayAccount(account)))
	}
	return gmail.NewInvoker(append(opts, sc.invokerOpts...)...)
}

// SetGmailClientForAccount installs client for account, replacing any
// cached one.
func (sc *ServerContext) SetGmailClientForAccount(account string, client *gmail.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	key := displayAccount(account)
	if !sc.clients.Contains(key) {
		sc.metrics.AddServiceHandles(sc.ctx, 1)
	}
	sc.clients.Add(key, client)
}

// HandleCount returns the number of cached clients.
func (sc *ServerContext) HandleCount() int {
	return sc.clients.Len()
}

// BreakerStates returns the circuit breaker state of every cached client,
// keyed by display account name.
func (sc *ServerContext) BreakerStates() map[string]string {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	states := make(map[string]string, sc.clients.Len())
	for _, account := range sc.clients.Keys() {
		client, ok := sc.clients.Peek(account)
		if !ok {
			continue
		}
		state := "disabled"
		if client != nil {
			state = client.Invoker().BreakerState()
		}
		states[displayAccount(account)] = state
	}
	return states
}

// ListAccounts returns the stored account keys.
func (sc *ServerContext) ListAccounts() ([]string, error) {
	return sc.tokens.ListAccounts()
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.shutdown
}

// Shutdown cancels the server context and drops all cached clients.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.clients.Purge()
	sc.cancel()
	return nil
}

func displayAccount(account string) string {
	if account == "" {
		return "default"
	}
	return account
}
