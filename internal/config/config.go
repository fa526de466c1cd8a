// Package config provides configuration management for docsite using Viper
// for flexible configuration loading from files, environment variables, and
// command-line flags.
//
// The configuration covers the listener (host, port, connection cap), the
// content root and its fallback document, the process-isolation headers sent
// with every response, logging, and the live-reload development mode.
//
// The listening port honours the conventional PORT environment variable ahead
// of DOCSITE_SERVER_PORT and the config file, falling back to 8080.
package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultPort is used when neither PORT, a flag, nor the config file set one.
	DefaultPort = 8080

	// DefaultNotFoundPage is the fallback document, relative to the content root.
	DefaultNotFoundPage = "404/index.html"

	// DefaultIsolationHeader opts pages into cross-origin process isolation so
	// the embedded playground runtime gets its own browsing context group.
	DefaultIsolationHeader = "Cross-Origin-Opener-Policy"
	DefaultIsolationValue  = "same-origin"

	// EnvPrefix namespaces every environment variable read by docsite.
	EnvPrefix = "DOCSITE"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server" toml:"server"`
	Content     ContentConfig     `mapstructure:"content" yaml:"content" json:"content" toml:"content"`
	Isolation   IsolationConfig   `mapstructure:"isolation" yaml:"isolation" json:"isolation" toml:"isolation"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging" json:"logging" toml:"logging"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development" json:"development" toml:"development"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host" yaml:"host" json:"host" toml:"host"`
	Port              int           `mapstructure:"port" yaml:"port" json:"port" toml:"port"`
	Environment       string        `mapstructure:"environment" yaml:"environment" json:"environment" toml:"environment"`
	MaxConnections    int           `mapstructure:"max_connections" yaml:"max_connections" json:"max_connections" toml:"max_connections"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" json:"read_header_timeout" toml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout" toml:"shutdown_timeout"`
}

// Addr returns the host:port pair the listener binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ContentConfig struct {
	Root          string        `mapstructure:"root" yaml:"root" json:"root" toml:"root"`
	NotFoundPage  string        `mapstructure:"not_found_page" yaml:"not_found_page" json:"not_found_page" toml:"not_found_page"`
	IndexFile     string        `mapstructure:"index_file" yaml:"index_file" json:"index_file" toml:"index_file"`
	AllowDotfiles bool          `mapstructure:"allow_dotfiles" yaml:"allow_dotfiles" json:"allow_dotfiles" toml:"allow_dotfiles"`
	MimeTypes     []MimeMapping `mapstructure:"mime_types" yaml:"mime_types" json:"mime_types" toml:"mime_types"`
}

// MimeMapping registers an extra extension to content-type mapping.
type MimeMapping struct {
	Ext  string `mapstructure:"ext" yaml:"ext" json:"ext" toml:"ext"`
	Type string `mapstructure:"type" yaml:"type" json:"type" toml:"type"`
}

type IsolationConfig struct {
	Header       string   `mapstructure:"header" yaml:"header" json:"header" toml:"header"`
	Value        string   `mapstructure:"value" yaml:"value" json:"value" toml:"value"`
	ExtraHeaders []Header `mapstructure:"extra_headers" yaml:"extra_headers" json:"extra_headers" toml:"extra_headers"`
}

// Header is a single response header name/value pair.
type Header struct {
	Name  string `mapstructure:"name" yaml:"name" json:"name" toml:"name"`
	Value string `mapstructure:"value" yaml:"value" json:"value" toml:"value"`
}

// Headers returns the primary isolation header followed by any extras.
func (c IsolationConfig) Headers() []Header {
	headers := make([]Header, 0, 1+len(c.ExtraHeaders))
	headers = append(headers, Header{Name: c.Header, Value: c.Value})
	return append(headers, c.ExtraHeaders...)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level" toml:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format" toml:"format"`
}

type DevelopmentConfig struct {
	LiveReload    bool          `mapstructure:"live_reload" yaml:"live_reload" json:"live_reload" toml:"live_reload"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce" yaml:"watch_debounce" json:"watch_debounce" toml:"watch_debounce"`
	// WatchIgnore lists globs for paths that never trigger a reload.
	WatchIgnore []string `mapstructure:"watch_ignore" yaml:"watch_ignore" json:"watch_ignore" toml:"watch_ignore"`
}

// SetDefaults registers default values on v. Defaults sit below every other
// source, so flags, environment variables and the config file all win.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.max_connections", 0)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("content.root", "build")
	v.SetDefault("content.not_found_page", DefaultNotFoundPage)
	v.SetDefault("content.index_file", "index.html")
	v.SetDefault("content.allow_dotfiles", false)

	v.SetDefault("isolation.header", DefaultIsolationHeader)
	v.SetDefault("isolation.value", DefaultIsolationValue)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("development.live_reload", false)
	v.SetDefault("development.watch_debounce", 300*time.Millisecond)
	v.SetDefault("development.watch_ignore", []string{})
}

// BindEnvironment enables DOCSITE_<SECTION>_<OPTION> overrides and maps the
// bare PORT variable onto server.port ahead of DOCSITE_SERVER_PORT.
func BindEnvironment(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("server.port", "PORT", EnvPrefix+"_SERVER_PORT"); err != nil {
		return fmt.Errorf("binding PORT: %w", err)
	}
	return nil
}

// Load builds the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults fills values that decode to their zero value from an
// explicitly empty config entry.
func applyDefaults(config *Config) {
	if config.Content.NotFoundPage == "" {
		config.Content.NotFoundPage = DefaultNotFoundPage
	}
	if config.Content.IndexFile == "" {
		config.Content.IndexFile = "index.html"
	}
	if config.Isolation.Header == "" {
		config.Isolation.Header = DefaultIsolationHeader
		config.Isolation.Value = DefaultIsolationValue
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
	if config.Development.WatchDebounce <= 0 {
		config.Development.WatchDebounce = 300 * time.Millisecond
	}
	if config.Server.ShutdownTimeout <= 0 {
		config.Server.ShutdownTimeout = 5 * time.Second
	}
}

// ResolveContentRoot returns the absolute form of the configured root.
func (c *Config) ResolveContentRoot() (string, error) {
	if c.Content.Root == "" {
		return "", fmt.Errorf("content root is not set")
	}
	abs, err := filepath.Abs(c.Content.Root)
	if err != nil {
		return "", fmt.Errorf("resolving content root %s: %w", c.Content.Root, err)
	}
	return abs, nil
}

// NotFoundURLPath returns the fallback document as a rooted URL path.
func (c *Config) NotFoundURLPath() string {
	return path.Join("/", filepath.ToSlash(c.Content.NotFoundPage))
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		first := result.Errors[0]
		return &first
	}
	return nil
}
