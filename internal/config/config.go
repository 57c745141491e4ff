package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appLog "addtocal/internal/log"
)

// DurationsConfig is the default-duration policy applied when extraction
// finds a start time but no end.
type DurationsConfig struct {
	// StandardMinutes applies to ordinary timed events (dinner, meeting).
	StandardMinutes int `yaml:"standard_minutes" json:"standard_minutes"`
	// ShortMinutes applies to short-form events (call, quick sync, chat).
	ShortMinutes int `yaml:"short_minutes" json:"short_minutes"`
}

// ExtractorConfig describes the text-understanding service.
type ExtractorConfig struct {
	// Endpoint is the API base, e.g. "https://generativelanguage.googleapis.com/v1beta".
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Model is the model name used in the generateContent path.
	Model string `yaml:"model" json:"model"`
	// APIKeyEnv names the environment variable holding the API key. The key
	// itself is never stored in the config file.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	// TimeoutSeconds bounds a single extraction call.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// Hints are extra, user-specific rules appended to the prompt, e.g.
	// "Village Pilates: location is 2/15-17 Stanley St, St Ives NSW 2075".
	Hints []string `yaml:"hints,omitempty" json:"hints,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the session API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the session API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone of the user (e.g. "Australia/Sydney").
	// Empty means the process's local timezone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CalendarBaseURL is the deep-link target.
	CalendarBaseURL string `yaml:"calendar_base_url" json:"calendar_base_url"`

	Durations DurationsConfig `yaml:"durations" json:"durations"`
	Extractor ExtractorConfig `yaml:"extractor" json:"extractor"`

	// SessionTTLMinutes is how long an untouched session survives.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" json:"session_ttl_minutes"`

	// SweepCron is a cron-style schedule (e.g. "*/5 * * * *") for evicting
	// idle sessions.
	SweepCron string `yaml:"sweep" json:"sweep"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen          = "127.0.0.1:8080"
	defaultLogLevel        = "info"
	defaultCalendarBaseURL = "https://www.google.com/calendar/render"
	defaultStandardMinutes = 50
	defaultShortMinutes    = 20
	defaultEndpoint        = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel           = "gemini-2.5-flash"
	defaultAPIKeyEnv       = "GEMINI_API_KEY"
	defaultTimeoutSeconds  = 30
	defaultSessionTTL      = 60
	defaultSweepCron       = "*/5 * * * *"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        "",
		LogLevel:        defaultLogLevel,
		CalendarBaseURL: defaultCalendarBaseURL,
		Durations: DurationsConfig{
			StandardMinutes: defaultStandardMinutes,
			ShortMinutes:    defaultShortMinutes,
		},
		Extractor: ExtractorConfig{
			Endpoint:       defaultEndpoint,
			Model:          defaultModel,
			APIKeyEnv:      defaultAPIKeyEnv,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		SessionTTLMinutes: defaultSessionTTL,
		SweepCron:         defaultSweepCron,
		CORSOrigins:       []string{},
		BasicAuth:         nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch c.LogLevel {
	case "debug", "info", "error":
		// ok
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.CalendarBaseURL == "" {
		c.CalendarBaseURL = defaultCalendarBaseURL
	}
	if c.Durations.StandardMinutes <= 0 {
		c.Durations.StandardMinutes = defaultStandardMinutes
	}
	if c.Durations.ShortMinutes <= 0 {
		c.Durations.ShortMinutes = defaultShortMinutes
	}
	if c.Extractor.Endpoint == "" {
		c.Extractor.Endpoint = defaultEndpoint
	}
	if c.Extractor.Model == "" {
		c.Extractor.Model = defaultModel
	}
	if c.Extractor.APIKeyEnv == "" {
		c.Extractor.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Extractor.TimeoutSeconds <= 0 {
		c.Extractor.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = defaultSessionTTL
	}
	if c.SweepCron == "" {
		c.SweepCron = defaultSweepCron
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
}

// Location resolves Timezone. Empty or unknown names fall back to time.Local;
// the error reports the unknown name so callers can log it.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// SessionTTL returns SessionTTLMinutes as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// ExtractorTimeout returns Extractor.TimeoutSeconds as a duration.
func (c *Config) ExtractorTimeout() time.Duration {
	return time.Duration(c.Extractor.TimeoutSeconds) * time.Second
}

// configFileMode keeps basic_auth credentials private to the service user.
const configFileMode os.FileMode = 0o600

// fileHeader is written above the YAML so a first-run file explains where the
// one secret that is not in it comes from.
const fileHeader = "# addtocal configuration.\n" +
	"# The extractor API key is read from the environment variable named by\n" +
	"# extractor.api_key_env (or a .env file), never from this file.\n"

// Load reads the YAML config at path. A missing file is not an error: the
// defaults are written there so the user has something to edit, and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		appLog.Info("config not found; writing defaults", "config_path", path)
		// The defaults are usable even when the file cannot be written.
		return cfg, cfg.Save(path)
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save normalizes c and replaces the file at path.
func (c *Config) Save(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	c.Normalize()

	body, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return replaceFile(path, append([]byte(fileHeader), body...))
}

// replaceFile writes data next to path and renames it into place, so a
// running server that re-reads the config never sees a partial file.
func replaceFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(f.Name())
		}
	}()

	if err = f.Chmod(configFileMode); err != nil {
		f.Close()
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
