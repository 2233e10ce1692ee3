// Package config loads settings from ~/.config/mangas/config.toml with
// MANGAS_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const envPrefix = "MANGAS_"

type Config struct {
	DBPath      string `toml:"db_path" env:"DB_PATH"`
	DownloadDir string `toml:"download_dir" env:"DOWNLOAD_DIR"`
	// Language is the default chapter language filter; empty shows all.
	Language string   `toml:"language" env:"LANGUAGE"`
	PageSize int      `toml:"page_size" env:"PAGE_SIZE"`
	Debounce Duration `toml:"debounce" env:"DEBOUNCE"`
	// RateLimit is the MangaDex API request rate per second.
	RateLimit float64 `toml:"rate_limit" env:"RATE_LIMIT"`
	// PageRate is the image download rate per second.
	PageRate float64 `toml:"page_rate" env:"PAGE_RATE"`
	LogLevel string  `toml:"log_level" env:"LOG_LEVEL"`
	LogFile  string  `toml:"log_file" env:"LOG_FILE"`
	// Device optimizes downloaded pages for an e-reader; see integrations.Devices.
	Device string `toml:"device" env:"DEVICE"`
}

func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DBPath:      filepath.Join(home, ".mangas", "library.db"),
		DownloadDir: filepath.Join(home, "Downloads", "mangas"),
		Language:    "en",
		PageSize:    20,
		Debounce:    Duration(time.Second),
		RateLimit:   5,
		PageRate:    2,
		LogLevel:    "info",
		LogFile:     filepath.Join(home, ".mangas", "mangas.log"),
	}
}

// Duration is a time.Duration written as "500ms" or "1s" in both TOML and
// the environment.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Path returns the default config file location.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mangas", "config.toml")
}

// Load reads path over the defaults, then applies the environment. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("config: failed to read %s: %w", path, err)
	default:
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	cfg.DBPath = expandPath(cfg.DBPath)
	cfg.DownloadDir = expandPath(cfg.DownloadDir)
	cfg.LogFile = expandPath(cfg.LogFile)
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return cfg, nil
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// expandPath replaces a leading "~" with the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
