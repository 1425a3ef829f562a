// Package config loads service settings from yaml, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"forensic_audit/pkg/core/agent"
)

type Settings struct {
	Server       ServerConfig     `yaml:"server"`
	Database     DatabaseConfig   `yaml:"database"`
	Cache        CacheConfig      `yaml:"cache"`
	Extraction   ExtractionConfig `yaml:"extraction"`
	ResourcesDir string           `yaml:"resources_dir"`
	Log          LogConfig        `yaml:"log"`
	Models       agent.Config     `yaml:"models"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	OpenBrowser    bool     `yaml:"open_browser"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // empty disables Postgres; the file cache is used instead
}

type CacheConfig struct {
	Dir      string `yaml:"dir"`
	Disabled bool   `yaml:"disabled"`
}

type ExtractionConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	FillMissing    bool   `yaml:"fill_missing"`
	PromptID       string `yaml:"prompt_id"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			MaxUploadBytes: 32 << 20,
		},
		Cache:        CacheConfig{Dir: ".cache/extractions"},
		Extraction:   ExtractionConfig{TimeoutSeconds: 300, PromptID: "extraction.line_items", FillMissing: true},
		ResourcesDir: "resources",
		Log:          LogConfig{Level: "info"},
	}
}

// Load reads settings from path (optional), after loading envFiles into the
// process environment (".env" when none are given). Environment variables
// override the file.
func Load(path string, envFiles ...string) (*Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	s := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	s.applyEnv()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("AUDIT_ADDR"); v != "" {
		s.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		s.Database.URL = v
	}
	if v := os.Getenv("AUDIT_CACHE_DIR"); v != "" {
		s.Cache.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		s.Log.Level = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		s.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("ACTIVE_PROVIDER"); v != "" {
		s.Models.ActiveProvider = v
	}
}

// Validate reports the first invalid setting.
func (s *Settings) Validate() error {
	if s.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if s.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", s.Server.MaxUploadBytes)
	}
	if s.Extraction.TimeoutSeconds < 0 {
		return fmt.Errorf("extraction.timeout_seconds must not be negative")
	}
	if _, err := zapcore.ParseLevel(s.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ExtractionTimeout is the per-run limit on the model call.
func (s *Settings) ExtractionTimeout() time.Duration {
	return time.Duration(s.Extraction.TimeoutSeconds) * time.Second
}
