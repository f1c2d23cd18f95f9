// Package config loads mailtriage settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// MAILTRIAGE_* environment variables (a .env file in the working directory is
// loaded first). Command-line flags are applied last by the cmd package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teemow/mailtriage/internal/cache"
	"github.com/teemow/mailtriage/internal/gmail"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "MAILTRIAGE_"

// Config holds everything a run needs.
type Config struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`

	Cache  CacheConfig `yaml:"cache"`
	Labels LabelConfig `yaml:"labels"`

	// GitDir is the .git directory searched for landed commits.
	GitDir string `yaml:"git_dir"`

	Rate RateConfig `yaml:"rate"`

	// PageSize is passed as maxResults on thread listings. Zero leaves the
	// server default.
	PageSize int64 `yaml:"page_size"`

	Log LogConfig `yaml:"log"`
}

// CacheConfig selects and locates the thread cache.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Policy  string `yaml:"policy"`
}

// LabelConfig names the labels a triage run moves threads between.
type LabelConfig struct {
	Source string `yaml:"source"`
	Done   string `yaml:"done"`
}

// RateConfig bounds requests to the Gmail API. RPS <= 0 disables limiting.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Dir returns the directory holding the default config, credentials and token.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "mailtriage")
}

// DefaultPath is the config file read when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in settings.
func Default() *Config {
	dir := Dir()

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = dir
	}

	return &Config{
		CredentialsFile: filepath.Join(dir, "credentials.json"),
		TokenFile:       filepath.Join(dir, "token.json"),
		Cache: CacheConfig{
			Backend: cache.BackendSQLite,
			Path:    filepath.Join(cacheDir, "mailtriage", "cache.db"),
			Policy:  string(gmail.PolicyRevalidate),
		},
		Rate: RateConfig{
			RPS:   10,
			Burst: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. A missing file is only an error when explicit is true.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		err := cfg.mergeFile(path)
		if err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
			return nil, err
		}
	}

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	str("CREDENTIALS_FILE", &c.CredentialsFile)
	str("TOKEN_FILE", &c.TokenFile)
	str("CACHE_BACKEND", &c.Cache.Backend)
	str("CACHE_PATH", &c.Cache.Path)
	str("CACHE_POLICY", &c.Cache.Policy)
	str("SOURCE_LABEL", &c.Labels.Source)
	str("DONE_LABEL", &c.Labels.Done)
	str("GIT_DIR", &c.GitDir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v := getenv(EnvPrefix + "RATE_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sRATE_RPS %q: %w", EnvPrefix, v, err)
		}
		c.Rate.RPS = rps
	}
	if v := getenv(EnvPrefix + "RATE_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sRATE_BURST %q: %w", EnvPrefix, v, err)
		}
		c.Rate.Burst = burst
	}
	if v := getenv(EnvPrefix + "PAGE_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sPAGE_SIZE %q: %w", EnvPrefix, v, err)
		}
		c.PageSize = size
	}

	return nil
}

// Validate checks enumerations and ranges. It does not require the triage
// labels; see RequireTriage.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case cache.BackendSQLite, cache.BackendPebble:
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be one of: sqlite, pebble, got %q", c.Cache.Backend))
	}

	switch gmail.CachePolicy(c.Cache.Policy) {
	case gmail.PolicySnapshot, gmail.PolicyRevalidate:
	default:
		errs = append(errs, fmt.Errorf("cache.policy must be one of: snapshot, revalidate, got %q", c.Cache.Policy))
	}

	if c.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required"))
	}
	if c.Rate.RPS > 0 && c.Rate.Burst < 1 {
		errs = append(errs, fmt.Errorf("rate.burst must be at least 1 when rate.rps is set, got %d", c.Rate.Burst))
	}
	if c.PageSize < 0 || c.PageSize > 500 {
		errs = append(errs, fmt.Errorf("page_size must be between 0 and 500, got %d", c.PageSize))
	}

	return errors.Join(errs...)
}

// RequireTriage checks the settings a triage run cannot do without.
func (c *Config) RequireTriage() error {
	var missing []string
	if c.Labels.Source == "" {
		missing = append(missing, "labels.source")
	}
	if c.Labels.Done == "" {
		missing = append(missing, "labels.done")
	}
	if c.GitDir == "" {
		missing = append(missing, "git_dir")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
