// Package config provides configuration management for spacefiler.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/pathutil"
)

// Config is the client configuration, stored as INI.
//
// Config file location: see DefaultConfigPath.
//
// INI format:
//
//	[filer]
//	base_url = https://files.example.com
//	username = alice
//
//	[proxy]
//	mode = no-proxy        ; no-proxy | system | basic | ntlm
//	host = proxy.corp
//	port = 8080
//	user =
//	no_proxy = *.internal
//	warmup = false
//
//	[client]
//	request_timeout = 300s
//	max_retries = 0
//	rate_limit = 0         ; requests per second, 0 disables
//	rate_burst = 10
//	state_path =
//
//	[log]
//	level = info
//	file =
//
//	[metrics]
//	addr =
type Config struct {
	// Filer connection settings
	BaseURL  string
	Username string

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never written to disk
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// Client behavior
	RequestTimeout time.Duration
	MaxRetries     int
	RateLimit      float64 // requests per second; 0 disables throttling
	RateBurst      int
	StatePath      string // empty means <config dir>/state.db

	// Logging
	LogLevel string
	LogFile  string

	// Metrics listen address for long-running commands; empty disables
	MetricsAddr string
}

// Validation errors
var (
	ErrMissingBaseURL   = errors.New("base_url is required")
	ErrInvalidBaseURL   = errors.New("base_url must be an absolute http(s) URL")
	ErrInvalidProxyMode = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidRetries   = errors.New("max_retries must be between 0 and 10")
	ErrInvalidRateLimit = errors.New("rate_limit must be >= 0 and rate_burst >= 1")
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		BaseURL:        constants.DefaultBaseURL,
		ProxyMode:      "no-proxy",
		ProxyPort:      8080,
		RequestTimeout: constants.DefaultRequestTimeout,
		MaxRetries:     constants.DefaultMaxRetries,
		RateBurst:      constants.DefaultRateBurst,
		LogLevel:       "info",
	}
}

// LoadConfig loads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	filer := iniFile.Section("filer")
	cfg.BaseURL = filer.Key("base_url").MustString(cfg.BaseURL)
	cfg.Username = filer.Key("username").String()

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	client := iniFile.Section("client")
	cfg.RequestTimeout = client.Key("request_timeout").MustDuration(cfg.RequestTimeout)
	cfg.MaxRetries = client.Key("max_retries").MustInt(cfg.MaxRetries)
	cfg.RateLimit = client.Key("rate_limit").MustFloat64(cfg.RateLimit)
	cfg.RateBurst = client.Key("rate_burst").MustInt(cfg.RateBurst)
	cfg.StatePath = client.Key("state_path").String()

	logSection := iniFile.Section("log")
	cfg.LogLevel = logSection.Key("level").MustString(cfg.LogLevel)
	cfg.LogFile = logSection.Key("file").String()

	cfg.MetricsAddr = iniFile.Section("metrics").Key("addr").String()

	return cfg, nil
}

// SaveConfig saves configuration to an INI file.
// Creates parent directories if they don't exist. The proxy password is not saved.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"filer", [][2]string{
			{"base_url", cfg.BaseURL},
			{"username", cfg.Username},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", fmt.Sprintf("%t", cfg.ProxyWarmup)},
		}},
		{"client", [][2]string{
			{"request_timeout", cfg.RequestTimeout.String()},
			{"max_retries", fmt.Sprintf("%d", cfg.MaxRetries)},
			{"rate_limit", strconv.FormatFloat(cfg.RateLimit, 'f', -1, 64)},
			{"rate_burst", fmt.Sprintf("%d", cfg.RateBurst)},
			{"state_path", cfg.StatePath},
		}},
		{"log", [][2]string{
			{"level", cfg.LogLevel},
			{"file", cfg.LogFile},
		}},
		{"metrics", [][2]string{
			{"addr", cfg.MetricsAddr},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks that the configuration can be used to reach the filer.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(c.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return ErrInvalidRetries
	}
	if c.RateLimit < 0 || c.RateBurst < 1 {
		return ErrInvalidRateLimit
	}
	return nil
}

// MergeWithFlags applies command-line overrides. Empty values leave the config as is.
func (c *Config) MergeWithFlags(baseURL, username string) {
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	if username != "" {
		c.Username = username
	}
}

// MergeWithEnv applies SPACEFILER_* environment overrides.
func (c *Config) MergeWithEnv() {
	if v := os.Getenv("SPACEFILER_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SPACEFILER_PROXY_PASSWORD"); v != "" {
		c.ProxyPassword = v
	}
}

// ResolvedStatePath returns the state file path, falling back to the config directory.
func (c *Config) ResolvedStatePath() string {
	if c.StatePath != "" {
		return expandHome(c.StatePath)
	}
	return filepath.Join(ConfigDirectory(), constants.StateFileName)
}

// ResolvedLogFile returns the log file path with "~" expanded, or "".
func (c *Config) ResolvedLogFile() string {
	if c.LogFile == "" {
		return ""
	}
	return expandHome(c.LogFile)
}

func expandHome(path string) string {
	if expanded, err := pathutil.ExpandHome(path); err == nil {
		return expanded
	}
	return path
}

// Set assigns a value by its "section.key" name, as used by `config set`.
func (c *Config) Set(name, value string) error {
	switch name {
	case "filer.base_url":
		c.BaseURL = value
	case "filer.username":
		c.Username = value
	case "proxy.mode":
		c.ProxyMode = value
	case "proxy.host":
		c.ProxyHost = value
	case "proxy.port":
		var port int
		if _, err := fmt.Sscanf(value, "%d", &port); err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid proxy port %q", value)
		}
		c.ProxyPort = port
	case "proxy.user":
		c.ProxyUser = value
	case "proxy.no_proxy":
		c.NoProxy = value
	case "proxy.warmup":
		c.ProxyWarmup = value == "true" || value == "1"
	case "client.request_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		c.RequestTimeout = d
	case "client.max_retries":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
			return fmt.Errorf("invalid retry count %q", value)
		}
		c.MaxRetries = n
	case "client.rate_limit":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid rate %q: %w", value, err)
		}
		c.RateLimit = rate
	case "client.rate_burst":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid burst %q: %w", value, err)
		}
		c.RateBurst = n
	case "client.state_path":
		c.StatePath = value
	case "log.level":
		c.LogLevel = value
	case "log.file":
		c.LogFile = value
	case "metrics.addr":
		c.MetricsAddr = value
	default:
		return fmt.Errorf("unknown config key %q", name)
	}
	return nil
}
