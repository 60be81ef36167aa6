package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the static server
type Config struct {
	Port               int               `json:"port" yaml:"port"`
	Address            string            `json:"address" yaml:"address"`
	LogLevel           string            `json:"log_level" yaml:"log_level"`
	AssetsDir          string            `json:"assets_dir" yaml:"assets_dir"`
	PagesDir           string            `json:"pages_dir" yaml:"pages_dir"`
	ReadTimeout        int               `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	ShutdownTimeout    int               `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	DefaultContentType string            `json:"default_content_type" yaml:"default_content_type"`
	MimeTypes          map[string]string `json:"mime_types" yaml:"mime_types"`
	RateLimitEnabled   bool              `json:"rate_limit_enabled" yaml:"rate_limit_enabled"`
	RateLimitRPM       int               `json:"rate_limit_requests_per_minute" yaml:"rate_limit_requests_per_minute"`
	RateLimitBurst     int               `json:"rate_limit_burst_size" yaml:"rate_limit_burst_size"`

	// RateLimitTrustProxy keys clients by X-Forwarded-For; enable only behind a proxy
	RateLimitTrustProxy bool `json:"rate_limit_trust_proxy" yaml:"rate_limit_trust_proxy"`
}

// dotEnvFile is loaded from the working directory when present
const dotEnvFile = ".env"

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func defaultConfig() *Config {
	return &Config{
		Port:               3000,
		Address:            "",
		LogLevel:           "info",
		AssetsDir:          "assets",
		PagesDir:           "pages",
		ReadTimeout:        10,
		ShutdownTimeout:    30,
		DefaultContentType: "application/octet-stream",
		RateLimitEnabled:   false,
		RateLimitRPM:       100,
		RateLimitBurst:     20,
	}
}

// LoadConfig loads configuration from the config file, .env, environment
// variables and command-line flags, in increasing order of precedence
func LoadConfig() (*Config, error) {
	config := defaultConfig()

	// flags were parsed elsewhere, only the file and environment apply
	if flag.Parsed() {
		if err := loadConfigFromEnvAndFile(config, os.Getenv("STATIC_CONFIG_FILE")); err != nil {
			return nil, err
		}
		return config, config.Validate()
	}

	portFlag := flag.Int("port", config.Port, "Port to listen on")
	addressFlag := flag.String("address", config.Address, "Address to listen on")
	logLevelFlag := flag.String("log-level", config.LogLevel, "Log level (debug, info, warn, error)")
	assetsFlag := flag.String("assets", config.AssetsDir, "Directory served under /assets")
	pagesFlag := flag.String("pages", config.PagesDir, "Directory holding the .html pages")
	configFileFlag := flag.String("config", "", "Path to config file (.json, .yaml), overrides STATIC_CONFIG_FILE")

	flag.Parse()

	configFile := *configFileFlag
	if configFile == "" {
		configFile = os.Getenv("STATIC_CONFIG_FILE")
	}
	if err := loadConfigFromEnvAndFile(config, configFile); err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Port = *portFlag
		case "address":
			config.Address = *addressFlag
		case "log-level":
			config.LogLevel = *logLevelFlag
		case "assets":
			config.AssetsDir = *assetsFlag
		case "pages":
			config.PagesDir = *pagesFlag
		}
	})

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadTestConfig loads configuration for testing (without parsing flags)
func LoadTestConfig() (*Config, error) {
	config := defaultConfig()

	if err := loadConfigFromEnvAndFile(config, os.Getenv("STATIC_CONFIG_FILE")); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

// loadConfigFromEnvAndFile applies configFile (if any), then .env, then the
// process environment
func loadConfigFromEnvAndFile(config *Config, configFile string) error {
	if configFile != "" {
		if err := loadConfigFromFile(configFile, config); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// godotenv never overrides variables that are already set
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", dotEnvFile, err)
	}

	if portStr := os.Getenv("STATIC_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}

	if address, ok := os.LookupEnv("STATIC_ADDRESS"); ok {
		config.Address = address
	}

	if logLevel := os.Getenv("STATIC_LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}

	if assets := os.Getenv("STATIC_ASSETS_DIR"); assets != "" {
		config.AssetsDir = assets
	}

	if pages := os.Getenv("STATIC_PAGES_DIR"); pages != "" {
		config.PagesDir = pages
	}

	if timeoutStr := os.Getenv("STATIC_READ_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			config.ReadTimeout = timeout
		}
	}

	if enabledStr := os.Getenv("STATIC_RATE_LIMIT_ENABLED"); enabledStr != "" {
		if enabled, err := strconv.ParseBool(enabledStr); err == nil {
			config.RateLimitEnabled = enabled
		}
	}

	if trustStr := os.Getenv("STATIC_RATE_LIMIT_TRUST_PROXY"); trustStr != "" {
		if trust, err := strconv.ParseBool(trustStr); err == nil {
			config.RateLimitTrustProxy = trust
		}
	}

	return nil
}

// loadConfigFromFile loads configuration from a JSON or YAML file
func loadConfigFromFile(filename string, config *Config) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return json.NewDecoder(file).Decode(config)
	default:
		return yaml.NewDecoder(file).Decode(config)
	}
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var err error

	if c.Port < 1 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("port %d out of range", c.Port))
	}
	if !validLogLevels[c.LogLevel] {
		err = multierr.Append(err, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.AssetsDir == "" {
		err = multierr.Append(err, errors.New("assets dir must not be empty"))
	}
	if c.PagesDir == "" {
		err = multierr.Append(err, errors.New("pages dir must not be empty"))
	}
	if c.ReadTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("read timeout must be positive, got %d", c.ReadTimeout))
	}
	if c.ShutdownTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("shutdown timeout must be positive, got %d", c.ShutdownTimeout))
	}
	if c.RateLimitEnabled {
		if c.RateLimitRPM <= 0 {
			err = multierr.Append(err, fmt.Errorf("rate limit rpm must be positive, got %d", c.RateLimitRPM))
		}
		if c.RateLimitBurst <= 0 {
			err = multierr.Append(err, fmt.Errorf("rate limit burst must be positive, got %d", c.RateLimitBurst))
		}
	}

	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ListenAddr returns the host:port the server binds to
func (c *Config) ListenAddr() string {
	return c.Address + ":" + strconv.Itoa(c.Port)
}

// ReadTimeoutDuration is the per-request bound on reading a file
func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

// ShutdownTimeoutDuration bounds graceful shutdown
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}
