package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variables that override
// config keys, e.g. TOWNHALL_SERVER_ADDR for server.addr.
const EnvPrefix = "TOWNHALL"

// Config holds all townhall configuration.
type Config struct {
	Name string `yaml:"name" mapstructure:"name"`

	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Civic    CivicConfig    `yaml:"civic" mapstructure:"civic"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr" mapstructure:"addr"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"` // used in emailed login links
	ReadTimeout     string `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AuthConfig configures passwordless login.
type AuthConfig struct {
	SessionTTL    string `yaml:"session_ttl" mapstructure:"session_ttl"`
	LoginCodeTTL  string `yaml:"login_code_ttl" mapstructure:"login_code_ttl"`
	CookieName    string `yaml:"cookie_name" mapstructure:"cookie_name"`
	SecureCookies bool   `yaml:"secure_cookies" mapstructure:"secure_cookies"`
}

// CivicConfig configures the Google Civic Information API importer.
type CivicConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Timeout     string `yaml:"timeout" mapstructure:"timeout"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "townhall",
		Server: ServerConfig{
			Addr:            ":8000",
			BaseURL:         "http://localhost:8000",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			Path: "data/townhall.db",
		},
		Auth: AuthConfig{
			SessionTTL:   "336h",
			LoginCodeTTL: "15m",
			CookieName:   "townhall_session",
		},
		Civic: CivicConfig{
			BaseURL:     "https://www.googleapis.com/civicinfo/v2",
			Timeout:     "30s",
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; TOWNHALL_* environment variables override either.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("name", cfg.Name)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.base_url", cfg.Server.BaseURL)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("auth.session_ttl", cfg.Auth.SessionTTL)
	v.SetDefault("auth.login_code_ttl", cfg.Auth.LoginCodeTTL)
	v.SetDefault("auth.cookie_name", cfg.Auth.CookieName)
	v.SetDefault("auth.secure_cookies", cfg.Auth.SecureCookies)
	v.SetDefault("civic.api_key", cfg.Civic.APIKey)
	v.SetDefault("civic.base_url", cfg.Civic.BaseURL)
	v.SetDefault("civic.timeout", cfg.Civic.Timeout)
	v.SetDefault("civic.concurrency", cfg.Civic.Concurrency)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies the well-known environment variables that do
// not follow the TOWNHALL_<SECTION>_<KEY> scheme.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" && c.Civic.APIKey == "" {
		c.Civic.APIKey = key
	}
	if path := os.Getenv("TOWNHALL_DB"); path != "" {
		c.Database.Path = path
	}
	if addr := os.Getenv("TOWNHALL_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetReadTimeout returns the server read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the server write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 30*time.Second)
}

// GetShutdownTimeout returns how long in-flight requests get on shutdown.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// GetSessionTTL returns the login session lifetime.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Auth.SessionTTL, 14*24*time.Hour)
}

// GetLoginCodeTTL returns how long an emailed login code stays valid.
func (c *Config) GetLoginCodeTTL() time.Duration {
	return parseDuration(c.Auth.LoginCodeTTL, 15*time.Minute)
}

// GetCivicTimeout returns the civic API HTTP timeout.
func (c *Config) GetCivicTimeout() time.Duration {
	return parseDuration(c.Civic.Timeout, 30*time.Second)
}

// ValidFormats lists the supported log formats.
var ValidFormats = []string{"json", "text"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name must not be empty")
	}
	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.base_url must be an absolute URL: %q", c.Server.BaseURL)
		}
	}
	if c.Civic.Concurrency < 1 {
		return fmt.Errorf("civic.concurrency must be at least 1, got %d", c.Civic.Concurrency)
	}

	validFormat := false
	for _, f := range ValidFormats {
		if c.Logging.Format == f {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("invalid logging format: %s (valid: %v)", c.Logging.Format, ValidFormats)
	}

	return nil
}

// RequireCivicKey checks the importer has credentials.
func (c *Config) RequireCivicKey() error {
	if c.Civic.APIKey == "" {
		return fmt.Errorf("civic API key not configured (set civic.api_key or GOOGLE_API_KEY)")
	}
	return nil
}
