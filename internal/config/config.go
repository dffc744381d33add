// Package config loads application configuration from environment variables
// and the repository list file.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// Defaults applied when neither the environment nor the repository file sets a value.
var (
	DefaultTestJobPatterns    = []string{"test-run-", "Regression Test"}
	DefaultDisplayJobPatterns = []string{"test-run-", "Regression Test", "Build infix", "build-"}
)

const (
	defaultPollInterval  = 300 * time.Second
	defaultRecentRuns    = 5
	defaultMaxConcurrent = 8
	tokenPrefix          = "GITHUB_TOKEN="
)

// Config holds the application configuration.
type Config struct {
	GitHubToken   string
	ConfigFile    string
	PollInterval  time.Duration
	ListenAddr    string
	DBPath        string
	MaxConcurrent int
	LogLevel      slog.Level

	Repositories []model.Target
	Settings     Settings
}

// Settings are the dashboard settings read from the repository file.
type Settings struct {
	RefreshIntervalSeconds int      `json:"refreshInterval"`
	TestJobPatterns        []string `json:"testJobPatterns"`
	DisplayJobPatterns     []string `json:"displayJobPatterns"`
	RecentRuns             int      `json:"recentRuns"`
}

// repositoryEntry is one entry of the repository file.
type repositoryEntry struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Enabled bool   `json:"enabled"`
}

// fileConfig is the on-disk layout of the repository file.
type fileConfig struct {
	Repositories []repositoryEntry `json:"repositories"`
	Settings     struct {
		Settings
		GitHub struct {
			Token string `json:"token"`
		} `json:"github"`
	} `json:"settings"`
}

// EnabledTargets returns the repositories that are enabled, in file order.
func (c *Config) EnabledTargets() []model.Target {
	targets := make([]model.Target, 0, len(c.Repositories))
	for _, t := range c.Repositories {
		if t.Enabled {
			targets = append(targets, t)
		}
	}
	return targets
}

// Load reads configuration from TESTSTATUS_ environment variables and the
// repository file they point at (TESTSTATUS_CONFIG_FILE, default config.json).
// The token comes from TESTSTATUS_GITHUB_TOKEN, then GITHUB_TOKEN, then the
// file's settings.github.token; without one, requests are unauthenticated.
// Optional variables with defaults: TESTSTATUS_POLL_INTERVAL (file's
// refreshInterval, else 300s), TESTSTATUS_LISTEN_ADDR (127.0.0.1:3000),
// TESTSTATUS_DB_PATH (teststatus.db), TESTSTATUS_MAX_CONCURRENT_REPOS (8),
// TESTSTATUS_LOG_LEVEL (info).
func Load() (*Config, error) {
	configFile := "config.json"
	if v, ok := os.LookupEnv("TESTSTATUS_CONFIG_FILE"); ok && v != "" {
		configFile = v
	}

	fc, err := readFile(configFile)
	if err != nil {
		return nil, err
	}

	token := os.Getenv("TESTSTATUS_GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		token = fc.Settings.GitHub.Token
	}
	token = strings.TrimPrefix(strings.TrimSpace(token), tokenPrefix)
	if token == "" {
		slog.Warn("no GitHub token configured, API rate limits will apply")
	}

	settings := fc.Settings.Settings
	if len(settings.TestJobPatterns) == 0 {
		settings.TestJobPatterns = DefaultTestJobPatterns
	}
	if len(settings.DisplayJobPatterns) == 0 {
		settings.DisplayJobPatterns = DefaultDisplayJobPatterns
	}
	if settings.RecentRuns <= 0 {
		settings.RecentRuns = defaultRecentRuns
	}

	pollInterval := defaultPollInterval
	if settings.RefreshIntervalSeconds > 0 {
		pollInterval = time.Duration(settings.RefreshIntervalSeconds) * time.Second
	}
	if v, ok := os.LookupEnv("TESTSTATUS_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("TESTSTATUS_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed < time.Second {
			return nil, fmt.Errorf("TESTSTATUS_POLL_INTERVAL must be at least 1s, got %q", v)
		}
		pollInterval = parsed
	}
	settings.RefreshIntervalSeconds = int(pollInterval / time.Second)

	listenAddr := "127.0.0.1:3000"
	if v, ok := os.LookupEnv("TESTSTATUS_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "teststatus.db"
	if v, ok := os.LookupEnv("TESTSTATUS_DB_PATH"); ok {
		dbPath = v
	}

	maxConcurrent := defaultMaxConcurrent
	if v, ok := os.LookupEnv("TESTSTATUS_MAX_CONCURRENT_REPOS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("TESTSTATUS_MAX_CONCURRENT_REPOS must be a positive integer, got %q", v)
		}
		maxConcurrent = n
	}

	var logLevel slog.Level
	if v, ok := os.LookupEnv("TESTSTATUS_LOG_LEVEL"); ok {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("TESTSTATUS_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	repos := make([]model.Target, 0, len(fc.Repositories))
	for i, r := range fc.Repositories {
		if r.Owner == "" || r.Repo == "" || r.Branch == "" {
			return nil, fmt.Errorf("%s: repository %d needs owner, repo, and branch", configFile, i)
		}
		repos = append(repos, model.Target{
			Owner:   r.Owner,
			Repo:    r.Repo,
			Branch:  r.Branch,
			Enabled: r.Enabled,
		})
	}

	return &Config{
		GitHubToken:   token,
		ConfigFile:    configFile,
		PollInterval:  pollInterval,
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		MaxConcurrent: maxConcurrent,
		LogLevel:      logLevel,
		Repositories:  repos,
		Settings:      settings,
	}, nil
}

func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read repository file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse repository file %s: %w", path, err)
	}

	return &fc, nil
}
