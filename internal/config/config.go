package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Media      MediaConfig      `toml:"media"`
	Logging    LoggingConfig    `toml:"logging"`
	Downloader DownloaderConfig `toml:"downloader"`
	Spotify    SpotifyConfig    `toml:"spotify"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// MediaConfig describes the managed media tree
type MediaConfig struct {
	RootDir         string `toml:"root_dir"`
	WatchForChanges bool   `toml:"watch_for_changes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	RequestLogging bool   `toml:"request_logging"`
}

// DownloaderConfig contains media download configuration
type DownloaderConfig struct {
	Enabled        bool     `toml:"enabled"`
	YtDlpPath      string   `toml:"yt_dlp_path"`
	MaxConcurrent  int      `toml:"max_concurrent_downloads"`
	AudioQuality   string   `toml:"audio_quality"`
	AllowedDomains []string `toml:"allowed_domains"`
}

// SpotifyConfig contains external catalog credentials. These are secrets
// and normally arrive via environment variables rather than the TOML file.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Configured reports whether both halves of the credential pair are set.
// Absence degrades auth endpoints to a "not configured" status instead of
// failing silently.
func (s SpotifyConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path: "./mediamaestro.db",
		},
		Media: MediaConfig{
			RootDir:         "./media",
			WatchForChanges: true,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			RequestLogging: true,
		},
		Downloader: DownloaderConfig{
			Enabled:        true,
			YtDlpPath:      "yt-dlp",
			MaxConcurrent:  2,
			AudioQuality:   "0",
			AllowedDomains: []string{"youtube.com", "youtu.be", "soundcloud.com"},
		},
		Spotify: SpotifyConfig{
			RedirectURI: "http://localhost:8000/auth/spotify/callback",
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating it with
// defaults when missing, then applies environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides config values from environment variables. Secrets are
// expected to live here, not in the TOML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("MEDIA_DIR"); v != "" {
		c.Media.RootDir = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Spotify.RedirectURI = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# MediaMaestro Configuration
# Spotify credentials belong in the environment (SPOTIFY_CLIENT_ID,
# SPOTIFY_CLIENT_SECRET, SPOTIFY_REDIRECT_URI), not in this file.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if c.Media.RootDir == "" {
		return fmt.Errorf("media root directory cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	if c.Downloader.Enabled && c.Downloader.MaxConcurrent < 1 {
		return fmt.Errorf("downloader max concurrent downloads must be at least 1")
	}

	return nil
}

// EnsureMediaRoot resolves the media root to an absolute path and verifies
// it exists and is writable, creating it when absent.
func (c *Config) EnsureMediaRoot() error {
	abs, err := filepath.Abs(c.Media.RootDir)
	if err != nil {
		return fmt.Errorf("cannot resolve media root: %w", err)
	}
	c.Media.RootDir = abs

	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("cannot create media root %s: %w", abs, err)
	}

	probe := filepath.Join(abs, ".write-check")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("media root %s is not writable: %w", abs, err)
	}
	f.Close()
	os.Remove(probe)

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}
