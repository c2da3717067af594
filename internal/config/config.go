// Package config provides configuration management for SyncMonster Studio.
// Configuration is loaded from an optional .env file and environment
// variables, with defaults for everything.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultAPIURL       = "http://localhost:8000"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultDataDir      = ".syncmonster"
	DefaultPollInterval = 5 * time.Second
	DefaultPageSize     = 10

	// Environment variable names
	EnvAPIURL        = "SYNCMONSTER_API_URL"
	EnvLogLevel      = "SYNCMONSTER_LOG_LEVEL"
	EnvLogFormat     = "SYNCMONSTER_LOG_FORMAT"
	EnvLogFile       = "SYNCMONSTER_LOG_FILE"
	EnvDataDir       = "SYNCMONSTER_DATA_DIR"
	EnvPollInterval  = "SYNCMONSTER_POLL_INTERVAL"
	EnvSubmitDelayMS = "SYNCMONSTER_SUBMIT_DELAY_MS"
	EnvPageSize      = "SYNCMONSTER_PAGE_SIZE"
	EnvMetricsAddr   = "SYNCMONSTER_METRICS_ADDR"
	EnvUsername      = "SYNCMONSTER_USERNAME"
	EnvPassword      = "SYNCMONSTER_PASSWORD"

	// Log filename inside the data directory
	LogFilename = "syncmonster.log"
)

// Load reads .env files into the environment. A missing file is not an
// error; variables already set are not overwritten.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	apiURL       string
	logLevel     string
	logFormat    string
	logFile      string
	dataDir      string
	pollInterval time.Duration
	submitDelay  time.Duration
	pageSize     int
	metricsAddr  string
	username     string
	password     string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		apiURL:       DefaultAPIURL,
		logLevel:     DefaultLogLevel,
		logFormat:    DefaultLogFormat,
		dataDir:      defaultDataDir(),
		pollInterval: DefaultPollInterval,
		pageSize:     DefaultPageSize,
	}

	if u := os.Getenv(EnvAPIURL); u != "" {
		cfg.apiURL = strings.TrimRight(u, "/")
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if lf := os.Getenv(EnvLogFormat); lf != "" {
		cfg.logFormat = lf
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	cfg.logFile = os.Getenv(EnvLogFile)

	// Poll interval is given in seconds
	if s := os.Getenv(EnvPollInterval); s != "" {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
		}
		if secs <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvPollInterval)
		}
		cfg.pollInterval = time.Duration(secs * float64(time.Second))
	}

	if s := os.Getenv(EnvSubmitDelayMS); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSubmitDelayMS, err)
		}
		if ms < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvSubmitDelayMS)
		}
		cfg.submitDelay = time.Duration(ms) * time.Millisecond
	}

	if s := os.Getenv(EnvPageSize); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPageSize, err)
		}
		if n < 1 || n > 100 {
			return nil, fmt.Errorf("invalid %s: page size must be between 1 and 100", EnvPageSize)
		}
		cfg.pageSize = n
	}

	cfg.metricsAddr = os.Getenv(EnvMetricsAddr)
	cfg.username = os.Getenv(EnvUsername)
	cfg.password = os.Getenv(EnvPassword)

	return cfg, nil
}

// APIURL returns the backend root URL
func (c *EnvConfig) APIURL() string {
	return c.apiURL
}

// SetAPIURL overrides the backend root URL, e.g. from a flag
func (c *EnvConfig) SetAPIURL(u string) {
	if u != "" {
		c.apiURL = strings.TrimRight(u, "/")
	}
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// SetLogLevel overrides the log level, e.g. from a flag
func (c *EnvConfig) SetLogLevel(level string) {
	if level != "" {
		c.logLevel = level
	}
}

// LogFormat returns the log format (json or text)
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// LogFile returns the path logs are written to
func (c *EnvConfig) LogFile() string {
	if c.logFile != "" {
		return c.logFile
	}
	return filepath.Join(c.dataDir, LogFilename)
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// PollInterval returns how often an open video is reconciled
func (c *EnvConfig) PollInterval() time.Duration {
	return c.pollInterval
}

// SubmitDelay returns how long the optimistic status shows before a split
// request is sent
func (c *EnvConfig) SubmitDelay() time.Duration {
	return c.submitDelay
}

// PageSize returns the number of videos per list page
func (c *EnvConfig) PageSize() int {
	return c.pageSize
}

// MetricsAddr returns the listen address of the metrics server, empty when
// disabled
func (c *EnvConfig) MetricsAddr() string {
	return c.metricsAddr
}

// Credentials returns the username and password used for unattended login
func (c *EnvConfig) Credentials() (username, password string) {
	return c.username, c.password
}

// EnsureDataDir creates the data directory if needed
func (c *EnvConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
