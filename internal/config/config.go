// Package config resolves runtime settings from defaults, an optional YAML
// file and BOOKABLE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath   string         `yaml:"db" validate:"required"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Sync     SyncConfig     `yaml:"sync"`
	Editor   EditorConfig   `yaml:"editor"`
	Log      LogConfig      `yaml:"log"`
}

type AutosaveConfig struct {
	DebounceMs  int `yaml:"debounce_ms" validate:"gte=100,lte=60000"`
	MaxRetries  int `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseMs int `yaml:"retry_base_ms" validate:"gte=10,lte=60000"`
}

// SyncConfig controls server polling. An interval of 0 disables it.
type SyncConfig struct {
	IntervalMs int `yaml:"interval_ms" validate:"gte=0"`
}

type EditorConfig struct {
	MaxDepth int `yaml:"max_depth" validate:"gte=1,lte=10"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns the settings used when nothing is overridden.
// The database lives in ~/.bookable/bookable.db.
func DefaultConfig() Config {
	dbPath := "bookable.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".bookable", "bookable.db")
	}
	return Config{
		DBPath: dbPath,
		Autosave: AutosaveConfig{
			DebounceMs:  2000,
			MaxRetries:  3,
			RetryBaseMs: 1000,
		},
		Sync:   SyncConfig{IntervalMs: 30000},
		Editor: EditorConfig{MaxDepth: 3},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// BOOKABLE_CONFIG (if set), then environment overrides. The result is
// validated.
func Load() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("BOOKABLE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BOOKABLE_DB"); v != "" {
		c.DBPath = v
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"BOOKABLE_AUTOSAVE_DEBOUNCE_MS", &c.Autosave.DebounceMs},
		{"BOOKABLE_AUTOSAVE_MAX_RETRIES", &c.Autosave.MaxRetries},
		{"BOOKABLE_AUTOSAVE_RETRY_BASE_MS", &c.Autosave.RetryBaseMs},
		{"BOOKABLE_SYNC_INTERVAL_MS", &c.Sync.IntervalMs},
		{"BOOKABLE_MAX_DEPTH", &c.Editor.MaxDepth},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", e.name, v)
		}
		*e.dst = n
	}
	if v := os.Getenv("BOOKABLE_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("BOOKABLE_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	return nil
}

var validate = validator.New()

// Validate checks every field against its constraints and reports all
// failures together.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag()+paramSuffix(fe.Param()), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// AutosaveSettings converts the autosave section for the coordinator.
func (c Config) AutosaveSettings() autosave.Config {
	return autosave.Config{
		Debounce:       time.Duration(c.Autosave.DebounceMs) * time.Millisecond,
		MaxRetries:     c.Autosave.MaxRetries,
		RetryBaseDelay: time.Duration(c.Autosave.RetryBaseMs) * time.Millisecond,
	}
}

// SyncInterval returns the poll interval, zero when polling is off.
func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalMs) * time.Millisecond
}

// NewLogger builds the process logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.level()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c LogConfig) level() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
