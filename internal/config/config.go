package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTitle   = "Google Sheets"
	DefaultOutput  = "googlesheets.ics"
	DefaultListen  = "127.0.0.1:8080"
	DefaultRefresh = "0 * * * *"

	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"

	defaultCacheDir       = "cache"
	defaultTimeoutSeconds = 30
)

// Environment variables that override file values.
const (
	EnvFallYear = "SHEETCAL_FALL_YEAR"
	EnvLogLevel = "SHEETCAL_LOG_LEVEL"
	EnvTimezone = "SHEETCAL_TIMEZONE"
	EnvOutput   = "SHEETCAL_OUTPUT"
)

// SourceConfig describes one published spreadsheet document.
type SourceConfig struct {
	// URL is the published HTML endpoint of the sheet.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// FetchConfig controls how documents are downloaded.
type FetchConfig struct {
	// Mode is "http" (plain GET with disk cache) or "browser" (headless
	// Chromium).
	Mode string `yaml:"mode" json:"mode"`
	// CacheDir holds the HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// TimeoutSeconds bounds one fetch.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Title is the calendar name written to the output file.
	Title string `yaml:"title" json:"title"`

	// Output is the path of the generated .ics file.
	Output string `yaml:"output" json:"output"`

	// FallYear is the calendar year in which the academic year starts.
	// August through December fall in FallYear, January through July in
	// FallYear+1.
	FallYear int `yaml:"fall_year" json:"fall_year"`

	// Timezone is the IANA zone dates are interpreted in. "Local" uses
	// the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Sources are processed in order.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic regeneration in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Title:       DefaultTitle,
		Output:      DefaultOutput,
		FallYear:    time.Now().Year(),
		Timezone:    "Local",
		Sources:     []SourceConfig{},
		Fetch:       FetchConfig{Mode: FetchModeHTTP, CacheDir: defaultCacheDir, TimeoutSeconds: defaultTimeoutSeconds},
		Listen:      DefaultListen,
		RefreshCron: DefaultRefresh,
		LogLevel:    "info",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.FallYear <= 0 {
		c.FallYear = time.Now().Year()
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			c.Sources[i].ID = fmt.Sprintf("sheet-%d", i+1)
		}
	}
	switch c.Fetch.Mode {
	case FetchModeHTTP, FetchModeBrowser:
	default:
		c.Fetch.Mode = FetchModeHTTP
	}
	if c.Fetch.CacheDir == "" {
		c.Fetch.CacheDir = defaultCacheDir
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefresh
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports settings a build cannot run with.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("no sources configured")
	}
	for i, s := range c.Sources {
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("source %d (%s): url is empty", i+1, s.ID)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FetchTimeout returns Fetch.TimeoutSeconds as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// ReadEnv collects override variables from envFile (when it exists) and
// the process environment. Process values win.
func ReadEnv(envFile string) (map[string]string, error) {
	env := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			env = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	for _, key := range []string{EnvFallYear, EnvLogLevel, EnvTimezone, EnvOutput} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env, nil
}

// ApplyEnv overrides file values with the SHEETCAL_* entries of env.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v := strings.TrimSpace(env[EnvFallYear]); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year <= 0 {
			return fmt.Errorf("%s: invalid year %q", EnvFallYear, v)
		}
		c.FallYear = year
	}
	if v := strings.TrimSpace(env[EnvLogLevel]); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(env[EnvTimezone]); v != "" {
		c.Timezone = v
	}
	if v := strings.TrimSpace(env[EnvOutput]); v != "" {
		c.Output = v
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sheetcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
