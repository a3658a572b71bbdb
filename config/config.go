package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/devbydaniel/watson/internal/domain/meeting"
)

const (
	DefaultBackendURL    = "http://127.0.0.1:4317"
	DefaultEventsChannel = "watson:events"
)

type Config struct {
	BackendURL       string
	DataDir          string
	LedgerPath       string // sqlite job ledger
	CallDedupWindow  time.Duration
	EventDedupWindow time.Duration
	RequestTimeout   time.Duration
	RedisAddr        string // empty disables backend events
	EventsChannel    string
	LogLevel         logrus.Level
	DefaultLanguage  meeting.Language
	NotesFile        string // markdown file for the scratch note
}

type fileConfig struct {
	BackendURL       string `toml:"backend_url"`
	DataDir          string `toml:"data_dir"`
	LedgerPath       string `toml:"ledger_path"`
	CallDedupWindow  string `toml:"call_dedup_window"`
	EventDedupWindow string `toml:"event_dedup_window"`
	RequestTimeout   string `toml:"request_timeout"`
	RedisAddr        string `toml:"redis_addr"`
	EventsChannel    string `toml:"events_channel"`
	LogLevel         string `toml:"log_level"`
	DefaultLanguage  string `toml:"default_language"`
	NotesFile        string `toml:"notes_file"`
}

// Load reads the config file, then .env and WATSON_* environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := defaultDataDir()
	cfg := &Config{
		BackendURL:       DefaultBackendURL,
		DataDir:          dataDir,
		CallDedupWindow:  300 * time.Millisecond,
		EventDedupWindow: 30 * time.Second,
		RequestTimeout:   10 * time.Minute,
		EventsChannel:    DefaultEventsChannel,
		LogLevel:         logrus.WarnLevel,
		DefaultLanguage:  meeting.English,
	}

	var fc fileConfig
	if configPath := configFilePath(); configPath != "" {
		if _, err := toml.DecodeFile(configPath, &fc); err != nil {
			return nil, fmt.Errorf("reading %s: %w", configPath, err)
		}
	}
	applyEnvOverrides(&fc)
	if err := apply(cfg, fc); err != nil {
		return nil, err
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = filepath.Join(cfg.DataDir, "jobs.db")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	return cfg, nil
}

func apply(cfg *Config, fc fileConfig) error {
	if fc.BackendURL != "" {
		cfg.BackendURL = strings.TrimRight(fc.BackendURL, "/")
	}
	if fc.DataDir != "" {
		cfg.DataDir = expandTilde(fc.DataDir)
	}
	if fc.LedgerPath != "" {
		cfg.LedgerPath = expandTilde(fc.LedgerPath)
	}
	if fc.NotesFile != "" {
		cfg.NotesFile = expandTilde(fc.NotesFile)
	}
	cfg.RedisAddr = fc.RedisAddr
	if fc.EventsChannel != "" {
		cfg.EventsChannel = fc.EventsChannel
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"call_dedup_window", fc.CallDedupWindow, &cfg.CallDedupWindow},
		{"event_dedup_window", fc.EventDedupWindow, &cfg.EventDedupWindow},
		{"request_timeout", fc.RequestTimeout, &cfg.RequestTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid %s %q", d.key, d.raw)
		}
		*d.dst = v
	}

	if fc.LogLevel != "" {
		lvl, err := logrus.ParseLevel(fc.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if fc.DefaultLanguage != "" {
		lang, err := meeting.ParseLanguage(fc.DefaultLanguage)
		if err != nil {
			return fmt.Errorf("invalid default_language: %w", err)
		}
		cfg.DefaultLanguage = lang
	}
	return nil
}

func applyEnvOverrides(fc *fileConfig) {
	overrides := map[string]*string{
		"WATSON_BACKEND_URL":        &fc.BackendURL,
		"WATSON_DATA_DIR":           &fc.DataDir,
		"WATSON_LEDGER_PATH":        &fc.LedgerPath,
		"WATSON_CALL_DEDUP_WINDOW":  &fc.CallDedupWindow,
		"WATSON_EVENT_DEDUP_WINDOW": &fc.EventDedupWindow,
		"WATSON_REQUEST_TIMEOUT":    &fc.RequestTimeout,
		"WATSON_REDIS_ADDR":         &fc.RedisAddr,
		"WATSON_EVENTS_CHANNEL":     &fc.EventsChannel,
		"WATSON_LOG_LEVEL":          &fc.LogLevel,
		"WATSON_DEFAULT_LANGUAGE":   &fc.DefaultLanguage,
		"WATSON_NOTES_FILE":         &fc.NotesFile,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// FilePath returns the config file in use, or "" when there is none.
func FilePath() string {
	return configFilePath()
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "watson")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "watson")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "watson")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "watson")
	}
	return filepath.Join(".", "watson")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
