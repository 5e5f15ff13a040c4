package circlepress

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/eringen/circlepress/mail"
	"github.com/eringen/circlepress/storage"
)

// SiteConfig describes the public site.
type SiteConfig struct {
	Name        string `toml:"name"`
	URL         string `toml:"url"`
	Description string `toml:"description"`
	Author      string `toml:"author"`
	Timezone    string `toml:"timezone"`
}

// ServerConfig holds HTTP listener and admin auth settings.
type ServerConfig struct {
	Addr                      string `toml:"addr"`
	AdminPassword             string `toml:"admin_password"`
	SessionSecret             string `toml:"session_secret"`
	AdminToken                string `toml:"admin_token"`
	CookieSecure              bool   `toml:"cookie_secure"`
	BodyLimit                 string `toml:"body_limit"`
	ReadTimeoutSeconds        int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds       int    `toml:"write_timeout_seconds"`
	PostCacheTTLSeconds       int    `toml:"post_cache_ttl_seconds"`
	LoginAttemptsPerMinute    int    `toml:"login_attempts_per_minute"`
	GenerateRequestsPerMinute int    `toml:"generate_requests_per_minute"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LLMConfig holds the text-generation endpoint settings.
type LLMConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// MailConfig selects and configures the email transport.
type MailConfig struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	From           string `toml:"from"`
	NotifyAddress  string `toml:"notify_address"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// StorageConfig selects where uploaded images are kept.
type StorageConfig struct {
	Backend      string `toml:"backend"`
	Dir          string `toml:"dir"`
	PublicURL    string `toml:"public_url"`
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	Prefix       string `toml:"prefix"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// DigestConfig holds digest wording and layout defaults.
type DigestConfig struct {
	Subject       string `toml:"subject"`
	Introduction  string `toml:"introduction"`
	SnippetLength int    `toml:"snippet_length"`
	LatestDays    int    `toml:"latest_days"`
}

// Config is the complete circlepress configuration.
type Config struct {
	Site     SiteConfig     `toml:"site"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	LLM      LLMConfig      `toml:"llm"`
	Mail     MailConfig     `toml:"mail"`
	Storage  StorageConfig  `toml:"storage"`
	Digest   DigestConfig   `toml:"digest"`
}

// DefaultConfigPath is where the CLI looks when no --config is given.
const DefaultConfigPath = "circlepress.toml"

// LoadConfig reads path if it exists, applies environment overrides and
// defaults, and validates the result. The bool reports whether the file
// was found.
func LoadConfig(path string) (*Config, bool, error) {
	var cfg Config
	if path == "" {
		path = DefaultConfigPath
	}
	exists := true
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, false, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, true, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, exists, err
	}
	return &cfg, exists, nil
}

// CreateSampleConfig writes the annotated sample configuration to path.
func CreateSampleConfig(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.AdminPassword = EnvOr("ADMIN_PASSWORD", c.Server.AdminPassword)
	c.Server.SessionSecret = EnvOr("SESSION_SECRET", c.Server.SessionSecret)
	c.Server.AdminToken = EnvOr("ADMIN_TOKEN", c.Server.AdminToken)
	c.Server.Addr = EnvOr("ADDR", c.Server.Addr)
	c.Site.URL = EnvOr("SITE_URL", c.Site.URL)
	c.Database.Path = EnvOr("DATABASE_PATH", c.Database.Path)
	c.LLM.APIKey = EnvOr("LLM_API_KEY", c.LLM.APIKey)
	c.Mail.APIKey = EnvOr("RESEND_API_KEY", c.Mail.APIKey)
	c.Storage.AccessKey = EnvOr("AWS_ACCESS_KEY_ID", c.Storage.AccessKey)
	c.Storage.SecretKey = EnvOr("AWS_SECRET_ACCESS_KEY", c.Storage.SecretKey)
}

func (c *Config) setDefaults() {
	if c.Site.Name == "" {
		c.Site.Name = "Community Circle"
	}
	if c.Site.URL == "" {
		c.Site.URL = "http://localhost:3000"
	}
	if c.Site.Timezone == "" {
		c.Site.Timezone = "UTC"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "10M"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 90
	}
	if c.Server.PostCacheTTLSeconds == 0 {
		c.Server.PostCacheTTLSeconds = 300
	}
	if c.Server.LoginAttemptsPerMinute == 0 {
		c.Server.LoginAttemptsPerMinute = 5
	}
	if c.Server.GenerateRequestsPerMinute == 0 {
		c.Server.GenerateRequestsPerMinute = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/circlepress.db"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = DefaultDraftMaxTokens
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.Mail.Provider == "" {
		c.Mail.Provider = "log"
	}
	if c.Mail.TimeoutSeconds == 0 {
		c.Mail.TimeoutSeconds = 15
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data/uploads"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Digest.SnippetLength == 0 {
		c.Digest.SnippetLength = SnippetLength
	}
	if c.Digest.LatestDays == 0 {
		c.Digest.LatestDays = 7
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if _, err := LoadZone(c.Site.Timezone); err != nil {
		return fmt.Errorf("site.timezone: %w", err)
	}
	switch strings.ToLower(c.Mail.Provider) {
	case "log":
	case "resend":
		if c.Mail.APIKey == "" {
			return errors.New("mail.api_key is required for the resend provider. Set RESEND_API_KEY or edit the config")
		}
		if c.Mail.From == "" {
			return errors.New("mail.from is required for the resend provider")
		}
	default:
		return fmt.Errorf("mail.provider %q is not one of resend, log", c.Mail.Provider)
	}
	if c.Mail.NotifyAddress != "" {
		if err := ValidateEmail(c.Mail.NotifyAddress); err != nil {
			return fmt.Errorf("mail.notify_address: %w", err)
		}
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, s3", c.Storage.Backend)
	}
	if c.Digest.SnippetLength < 0 || c.Digest.LatestDays < 0 {
		return errors.New("digest.snippet_length and digest.latest_days must not be negative")
	}
	return nil
}

// Location returns the site's configured zone.
func (c *Config) Location() *time.Location {
	loc, err := LoadZone(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore uses s instead of opening database.path.
func WithStore(s *Store) Option {
	return func(a *App) { a.Store = s }
}

// WithTextGenerator replaces the configured LLM client.
func WithTextGenerator(g TextGenerator) Option {
	return func(a *App) { a.textGen = g }
}

// WithMailSender replaces the configured mail transport.
func WithMailSender(s mail.Sender) Option {
	return func(a *App) { a.mailer = s }
}

// WithObjectStore replaces the configured image storage.
func WithObjectStore(o storage.ObjectStore) Option {
	return func(a *App) { a.Objects = o }
}

// WithLogger sets the structured logger used by the app and its services.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.Logger = l
		}
	}
}
