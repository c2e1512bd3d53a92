// Package config provides configuration loading and structs for the matome server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is built once at
// process start and passed by reference into each component.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Sync      SyncConfig      `yaml:"sync"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the SQLite database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// PlatformsConfig holds per-platform API credentials and endpoints.
// Tokens may also come from the CHATWORK_API_TOKEN and NOTION_API_TOKEN
// environment variables, which take precedence over the file.
type PlatformsConfig struct {
	Chatwork ChatworkConfig `yaml:"chatwork"`
	Notion   NotionConfig   `yaml:"notion"`
}

// ChatworkConfig holds Chatwork API settings.
type ChatworkConfig struct {
	Token    string `yaml:"token"`
	BaseURL  string `yaml:"base_url"`
	MaxRooms int    `yaml:"max_rooms"`
}

// NotionConfig holds Notion API settings.
type NotionConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
	Version string `yaml:"version"`
}

// SyncConfig bounds one sync cycle.
type SyncConfig struct {
	MaxMessages    int `yaml:"max_messages"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Timeout returns the per-cycle deadline as a duration.
func (s *SyncConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// SearchConfig holds pagination bounds and stats settings.
type SearchConfig struct {
	DefaultPerPage int `yaml:"default_per_page"`
	MaxPerPage     int `yaml:"max_per_page"`
	TopQueries     int `yaml:"top_queries"`
}

// Load reads and parses the config file at path, applies environment token
// overrides and defaults, and expands the database path.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATWORK_API_TOKEN"); v != "" {
		cfg.Platforms.Chatwork.Token = v
	}
	if v := os.Getenv("NOTION_API_TOKEN"); v != "" {
		cfg.Platforms.Notion.Token = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
