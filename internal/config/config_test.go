package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mcp-gmail/internal/google"
)

// isolate points Load at an empty .env and unsets every MCP_GMAIL_ variable
// for the duration of the test.
func isolate(t *testing.T) LoadOptions {
	t.Helper()
	for _, key := range []string{
		"CREDENTIALS_PATH", "TOKEN_PATH", "SCOPES", "USER_ID", "MAX_RESULTS",
		"MULTI_ACCOUNT_SINGLE_FILE", "ATTACHMENT_DIR", "RATE_LIMIT",
		"CIRCUIT_BREAKER", "HANDLE_CACHE_SIZE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		name := EnvPrefix + "_" + key
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	return LoadOptions{EnvFile: filepath.Join(t.TempDir(), "missing.env")}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(isolate(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultCredentialsPath, cfg.CredentialsPath)
	assert.Equal(t, DefaultTokenPath, cfg.TokenPath)
	assert.Equal(t, google.DefaultScopes, cfg.Scopes)
	assert.Equal(t, "me", cfg.UserID)
	assert.Equal(t, int64(10), cfg.MaxResults)
	assert.False(t, cfg.MultiAccountSingleFile)
	assert.Equal(t, DefaultAttachmentDir, cfg.AttachmentDir)
	assert.Zero(t, cfg.RateLimit)
	assert.True(t, cfg.CircuitBreaker)
	assert.Equal(t, DefaultHandleCacheSize, cfg.HandleCacheSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadEnvironment(t *testing.T) {
	opts := isolate(t)
	t.Setenv("MCP_GMAIL_CREDENTIALS_PATH", "/etc/gmail/creds.json")
	t.Setenv("MCP_GMAIL_TOKEN_PATH", "/var/lib/gmail/tokens.json")
	t.Setenv("MCP_GMAIL_SCOPES", "https://www.googleapis.com/auth/gmail.readonly, https://www.googleapis.com/auth/gmail.send")
	t.Setenv("MCP_GMAIL_MAX_RESULTS", "25")
	t.Setenv("MCP_GMAIL_MULTI_ACCOUNT_SINGLE_FILE", "true")
	t.Setenv("MCP_GMAIL_RATE_LIMIT", "2.5")
	t.Setenv("MCP_GMAIL_CIRCUIT_BREAKER", "false")
	t.Setenv("MCP_GMAIL_LOG_LEVEL", "debug")

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "/etc/gmail/creds.json", cfg.CredentialsPath)
	assert.Equal(t, "/var/lib/gmail/tokens.json", cfg.TokenPath)
	assert.Equal(t, []string{
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/gmail.send",
	}, cfg.Scopes)
	assert.Equal(t, int64(25), cfg.MaxResults)
	assert.True(t, cfg.MultiAccountSingleFile)
	assert.InDelta(t, 2.5, cfg.RateLimit, 1e-9)
	assert.False(t, cfg.CircuitBreaker)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvFile(t *testing.T) {
	opts := isolate(t)
	opts.EnvFile = filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(opts.EnvFile, []byte("MCP_GMAIL_USER_ID=alice@example.com\nMCP_GMAIL_MAX_RESULTS=5\n"), 0o600))
	// Variables already in the environment win over the file.
	t.Setenv("MCP_GMAIL_MAX_RESULTS", "7")
	t.Cleanup(func() { _ = os.Unsetenv("MCP_GMAIL_USER_ID") })

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", cfg.UserID)
	assert.Equal(t, int64(7), cfg.MaxResults)
}

func TestLoadConfigFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "json",
			file:    "config.json",
			content: `{"token_path": "tokens.json", "max_results": 50, "attachment_dir": "/tmp/att"}`,
		},
		{
			name:    "yaml",
			file:    "config.yaml",
			content: "token_path: tokens.json\nmax_results: 50\nattachment_dir: /tmp/att\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := isolate(t)
			opts.ConfigFile = filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(opts.ConfigFile, []byte(tt.content), 0o600))

			cfg, err := Load(opts)
			require.NoError(t, err)
			assert.Equal(t, "tokens.json", cfg.TokenPath)
			assert.Equal(t, int64(50), cfg.MaxResults)
			assert.Equal(t, "/tmp/att", cfg.AttachmentDir)
			assert.Equal(t, DefaultUserID, cfg.UserID)
		})
	}
}

func TestLoadEnvironmentOverridesConfigFile(t *testing.T) {
	opts := isolate(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(opts.ConfigFile, []byte(`{"max_results": 50}`), 0o600))
	t.Setenv("MCP_GMAIL_MAX_RESULTS", "3")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.MaxResults)
}

func TestLoadMissingConfigFile(t *testing.T) {
	opts := isolate(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "absent.json")

	_, err := Load(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	opts := isolate(t)
	t.Setenv("MCP_GMAIL_MAX_RESULTS", "0")

	_, err := Load(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_results")
}

func validConfig() Config {
	return Config{
		CredentialsPath: "credentials.json",
		TokenPath:       "token.json",
		Scopes:          google.DefaultScopes,
		UserID:          "me",
		MaxResults:      10,
		HandleCacheSize: 1,
		LogLevel:        "info",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty credentials path", mutate: func(c *Config) { c.CredentialsPath = "" }, wantErr: "credentials_path"},
		{name: "empty token path", mutate: func(c *Config) { c.TokenPath = "" }, wantErr: "token_path"},
		{name: "no scopes", mutate: func(c *Config) { c.Scopes = nil }, wantErr: "scope"},
		{name: "empty user id", mutate: func(c *Config) { c.UserID = "" }, wantErr: "user_id"},
		{name: "negative max results", mutate: func(c *Config) { c.MaxResults = -1 }, wantErr: "max_results"},
		{name: "negative rate limit", mutate: func(c *Config) { c.RateLimit = -0.5 }, wantErr: "rate_limit"},
		{name: "zero cache size", mutate: func(c *Config) { c.HandleCacheSize = 0 }, wantErr: "handle_cache_size"},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTokenPathForAccount(t *testing.T) {
	tests := []struct {
		name    string
		shared  bool
		account string
		want    string
	}{
		{name: "unspecified", account: "", want: "/data/token.json"},
		{name: "default", account: "default", want: "/data/token.json"},
		{name: "named account gets suffix", account: "work", want: "/data/token_work.json"},
		{name: "shared file ignores account", shared: true, account: "work", want: "/data/token.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{TokenPath: "/data/token.json", MultiAccountSingleFile: tt.shared}
			assert.Equal(t, tt.want, cfg.TokenPathForAccount(tt.account))
		})
	}
}
