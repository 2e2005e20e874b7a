package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/mcp-gmail/internal/logging"
	"github.com/teemow/mcp-gmail/internal/tokenstore"
)

// Metric result values reported to a Recorder.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultExpired = "expired"
)

// Recorder receives authentication outcomes, typically *instrumentation.Metrics.
type Recorder interface {
	RecordOAuthAuth(ctx context.Context, result string)
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

// Authorizer obtains a new token interactively for conf.
type Authorizer interface {
	Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)
}

// Authenticator produces token sources for accounts stored in a token file.
type Authenticator struct {
	// CredentialsPath is the OAuth client secret file.
	CredentialsPath string
	// TokenPath is the token file, or the base name for per-account files.
	TokenPath string
	// Scopes requested during interactive authorization.
	Scopes []string
	// SharedFile stores every account in TokenPath. When false each
	// non-default account gets its own suffixed file (token_work.json).
	SharedFile bool
	// Authorizer runs the interactive flow. Defaults to a LoopbackAuthorizer.
	Authorizer Authorizer
	// HTTPClient is used for token endpoint calls when set.
	HTTPClient *http.Client
	// Recorder receives auth and refresh outcomes when set.
	Recorder Recorder
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// TokenPathForAccount returns the token file holding account.
func (a *Authenticator) TokenPathForAccount(account string) string {
	return TokenPathForAccount(a.TokenPath, account, a.SharedFile)
}

// TokenPathForAccount applies the storage layout: a shared file always uses
// base, otherwise a named account uses base with an "_<account>" suffix.
func TokenPathForAccount(base, account string, shared bool) string {
	if shared || account == "" || account == tokenstore.DefaultAccount {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%s%s", stem, account, ext)
}

// storeKey is the key used inside the token file. Per-account files hold a
// single unlabeled record.
func (a *Authenticator) storeKey(account string) string {
	if !a.SharedFile {
		return ""
	}
	return account
}

// forceMulti reports whether a new authorization must be written in
// multi-account form.
func (a *Authenticator) forceMulti(account string) bool {
	return a.SharedFile && account != "" && account != tokenstore.DefaultAccount
}

// Store returns the token store that holds account.
func (a *Authenticator) Store(account string) *tokenstore.Store {
	return tokenstore.New(a.TokenPathForAccount(account))
}

// TokenSource returns a ready token source for account, refreshing or
// authorizing as needed. An empty account means "not specified".
func (a *Authenticator) TokenSource(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if account != "" {
		if err := tokenstore.ValidateAccountName(account); err != nil {
			return nil, err
		}
	}

	logger := logging.WithAccount(a.logger(), displayAccount(account))
	store := a.Store(account)

	rec, found, err := store.Resolve(a.storeKey(account))
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
		found = false
	case err != nil:
		return nil, err
	}

	now := a.now()
	switch {
	case found && rec.Valid(now):
		logger.Debug("using stored token")
		return a.persistingSource(ctx, store, account, rec, rec.OAuth2Token()), nil

	case found && rec.RefreshToken != "":
		logger.Info("refreshing expired token")
		tok, err := a.refresh(ctx, rec)
		if err != nil {
			logger.Warn("token refresh failed", logging.Err(err))
			return nil, err
		}
		rec = tokenstore.RecordFromToken(tok, rec)
		if err := store.Save(ctx, a.saveKey(account), rec, false); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
		return a.persistingSource(ctx, store, account, rec, tok), nil

	default:
		logger.Info("no usable stored token, starting authorization")
		rec, err = a.Authorize(ctx, account)
		if err != nil {
			return nil, err
		}
		return a.persistingSource(ctx, store, account, rec, rec.OAuth2Token()), nil
	}
}

// HasToken reports whether a record is stored for account.
func (a *Authenticator) HasToken(account string) bool {
	_, found, err := a.Store(account).Resolve(a.storeKey(account))
	return err == nil && found
}

// Authorize runs the interactive flow for account and persists the result.
func (a *Authenticator) Authorize(ctx context.Context, account string) (tokenstore.Record, error) {
	if account != "" {
		if err := tokenstore.ValidateAccountName(account); err != nil {
			return tokenstore.Record{}, err
		}
	}

	conf, err := LoadOAuthConfig(a.CredentialsPath, a.scopes())
	if err != nil {
		return tokenstore.Record{}, err
	}

	tok, err := a.authorizer().Authorize(a.httpContext(ctx), conf)
	if err != nil {
		a.recordAuth(ctx, ResultFailure)
		return tokenstore.Record{}, fmt.Errorf("authorization failed: %w", err)
	}
	a.recordAuth(ctx, ResultSuccess)

	rec := tokenstore.RecordFromToken(tok, tokenstore.Record{
		TokenURI:       conf.Endpoint.TokenURL,
		ClientID:       conf.ClientID,
		ClientSecret:   conf.ClientSecret,
		Scopes:         conf.Scopes,
		UniverseDomain: "googleapis.com",
	})

	store := a.Store(account)
	if err := store.Save(ctx, a.saveKey(account), rec, a.forceMulti(account)); err != nil {
		return tokenstore.Record{}, fmt.Errorf("failed to persist token: %w", err)
	}
	a.logger().Info("stored new token", logging.Account(displayAccount(account)), slog.String("path", store.Path()))
	return rec, nil
}

// oauthConfig builds the refresh configuration from the record's own client
// metadata, falling back to the application credentials file.
func (a *Authenticator) oauthConfig(rec tokenstore.Record) (*oauth2.Config, error) {
	if rec.ClientID != "" {
		tokenURL := rec.TokenURI
		if tokenURL == "" {
			tokenURL = google.Endpoint.TokenURL
		}
		return &oauth2.Config{
			ClientID:     rec.ClientID,
			ClientSecret: rec.ClientSecret,
			Scopes:       rec.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   google.Endpoint.AuthURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}, nil
	}
	return LoadOAuthConfig(a.CredentialsPath, a.scopes())
}

func (a *Authenticator) refresh(ctx context.Context, rec tokenstore.Record) (*oauth2.Token, error) {
	conf, err := a.oauthConfig(rec)
	if err != nil {
		return nil, err
	}

	expired := rec.OAuth2Token()
	expired.AccessToken = ""
	tok, err := conf.TokenSource(a.httpContext(ctx), expired).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			a.recordRefresh(ctx, ResultExpired)
			return nil, fmt.Errorf("%w: %v; run `mcp-gmail auth` to authorize again", ErrAuthExpired, err)
		}
		a.recordRefresh(ctx, ResultFailure)
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	a.recordRefresh(ctx, ResultSuccess)
	return tok, nil
}

func (a *Authenticator) saveKey(account string) string {
	if key := a.storeKey(account); key != "" {
		return key
	}
	return tokenstore.DefaultAccount
}

// persistingSource wraps the oauth2 refresh machinery so tokens refreshed
// later in a long-running process are written back to the store.
func (a *Authenticator) persistingSource(ctx context.Context, store *tokenstore.Store, account string, rec tokenstore.Record, tok *oauth2.Token) oauth2.TokenSource {
	base := context.WithoutCancel(a.httpContext(ctx))
	src := &persistingTokenSource{
		auth:    a,
		ctx:     base,
		store:   store,
		account: account,
		rec:     rec,
		last:    tok,
	}
	return oauth2.ReuseTokenSource(tok, src)
}

type persistingTokenSource struct {
	auth    *Authenticator
	ctx     context.Context
	store   *tokenstore.Store
	account string

	mu   sync.Mutex
	rec  tokenstore.Record
	last *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && s.last.Valid() {
		return s.last, nil
	}
	if s.rec.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token expired and no refresh token is stored", ErrAuthExpired)
	}

	tok, err := s.auth.refresh(s.ctx, s.rec)
	if err != nil {
		return nil, err
	}
	s.rec = tokenstore.RecordFromToken(tok, s.rec)
	s.last = tok
	if err := s.store.Save(s.ctx, s.auth.saveKey(s.account), s.rec, false); err != nil {
		s.auth.logger().Warn("failed to persist refreshed token", logging.Account(displayAccount(s.account)), logging.Err(err))
	}
	return tok, nil
}

func (a *Authenticator) httpContext(ctx context.Context) context.Context {
	if a.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.HTTPClient)
}

func (a *Authenticator) authorizer() Authorizer {
	if a.Authorizer != nil {
		return a.Authorizer
	}
	return NewLoopbackAuthorizer()
}

func (a *Authenticator) scopes() []string {
	if len(a.Scopes) > 0 {
		return a.Scopes
	}
	return DefaultScopes
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Authenticator) recordAuth(ctx context.Context, result string) {
	if a.Recorder != nil {
		a.Recorder.RecordOAuthAuth(ctx, result)
	}
}

func (a *Authenticator) recordRefresh(ctx context.Context, result string) {
	if a.Recorder != nil {
		a.Recorder.RecordOAuthTokenRefresh(ctx, result)
	}
}

func displayAccount(account string) string {
	if account == "" {
		return tokenstore.DefaultAccount
	}
	return account
}

// ListAccounts returns the stored account keys. With a shared file these are
// the keys of TokenPath; otherwise the keys of the base file come first,
// followed by one entry per suffixed token file.
func (a *Authenticator) ListAccounts() ([]string, error) {
	keys, err := tokenstore.New(a.TokenPath).ListAccountKeys()
	if err != nil {
		return nil, err
	}
	if a.SharedFile {
		return keys, nil
	}

	ext := filepath.Ext(a.TokenPath)
	prefix := strings.TrimSuffix(a.TokenPath, ext) + "_"
	matches, err := filepath.Glob(globEscape(prefix) + "*" + globEscape(ext))
	if err != nil {
		return nil, fmt.Errorf("failed to list token files: %w", err)
	}
	sort.Strings(matches)

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".lock") {
			continue
		}
		account := strings.TrimSuffix(strings.TrimPrefix(m, prefix), ext)
		if seen[account] || tokenstore.ValidateAccountName(account) != nil {
			continue
		}
		seen[account] = true
		keys = append(keys, account)
	}
	return keys, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
