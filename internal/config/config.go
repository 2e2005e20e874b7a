package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/teemow/mcp-gmail/internal/google"
	"github.com/teemow/mcp-gmail/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MCP_GMAIL"

// Defaults.
const (
	DefaultCredentialsPath = "credentials.json"
	DefaultTokenPath       = "token.json"
	DefaultUserID          = "me"
	DefaultMaxResults      = 10
	DefaultAttachmentDir   = "downloaded_attachments"
	DefaultHandleCacheSize = 16
)

// Config holds the settings shared by the CLI and the MCP server.
type Config struct {
	// CredentialsPath is the OAuth client secrets file downloaded from the
	// Google Cloud console.
	CredentialsPath string `mapstructure:"credentials_path"`

	// TokenPath is the token store file, or the base name of the per-account
	// files when MultiAccountSingleFile is false.
	TokenPath string `mapstructure:"token_path"`

	Scopes []string `mapstructure:"scopes"`

	// UserID is sent with every Gmail API request.
	UserID string `mapstructure:"user_id"`

	// MaxResults is the default page size of searches.
	MaxResults int64 `mapstructure:"max_results"`

	// MultiAccountSingleFile stores all accounts in TokenPath. When false,
	// each named account gets its own token_<account>.json next to it.
	MultiAccountSingleFile bool `mapstructure:"multi_account_single_file"`

	AttachmentDir string `mapstructure:"attachment_dir"`

	// RateLimit paces Gmail API calls per account in requests per second.
	// Zero disables pacing.
	RateLimit float64 `mapstructure:"rate_limit"`

	CircuitBreaker  bool `mapstructure:"circuit_breaker"`
	HandleCacheSize int  `mapstructure:"handle_cache_size"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile is an optional JSON, YAML or TOML file. Environment
	// variables take precedence over it.
	ConfigFile string

	// EnvFile is loaded into the environment first. Defaults to ".env";
	// a missing file is ignored. Variables already set are kept.
	EnvFile string
}

func defaults(v *viper.Viper) {
	v.SetDefault("credentials_path", DefaultCredentialsPath)
	v.SetDefault("token_path", DefaultTokenPath)
	v.SetDefault("scopes", google.DefaultScopes)
	v.SetDefault("user_id", DefaultUserID)
	v.SetDefault("max_results", DefaultMaxResults)
	v.SetDefault("multi_account_single_file", false)
	v.SetDefault("attachment_dir", DefaultAttachmentDir)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("circuit_breaker", true)
	v.SetDefault("handle_cache_size", DefaultHandleCacheSize)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", logging.FormatText)
}

// Load reads the configuration from defaults, the optional config file, the
// .env file and MCP_GMAIL_* environment variables, in increasing precedence.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.Scopes = normalizeScopes(cfg.Scopes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeScopes splits comma-separated entries and drops blanks.
func normalizeScopes(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, s := range strings.Split(entry, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Validate checks the configuration for values no command can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.CredentialsPath == "" {
		errs = append(errs, errors.New("credentials_path must not be empty"))
	}
	if c.TokenPath == "" {
		errs = append(errs, errors.New("token_path must not be empty"))
	}
	if len(c.Scopes) == 0 {
		errs = append(errs, errors.New("at least one OAuth scope is required"))
	}
	if c.UserID == "" {
		errs = append(errs, errors.New("user_id must not be empty"))
	}
	if c.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("max_results must be positive, got %d", c.MaxResults))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit))
	}
	if c.HandleCacheSize < 1 {
		errs = append(errs, fmt.Errorf("handle_cache_size must be at least 1, got %d", c.HandleCacheSize))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// TokenPathForAccount returns the token file that holds account under the
// configured storage layout.
func (c *Config) TokenPathForAccount(account string) string {
	return google.TokenPathForAccount(c.TokenPath, account, c.MultiAccountSingleFile)
}
