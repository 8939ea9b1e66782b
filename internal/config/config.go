// Package config loads the server configuration from a YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "in-memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

var ErrUnknownStorage = errors.New("unknown storage type")

type Config struct {
	Port string `yaml:"port"`
	// SiteBaseURL is where the site reaches its own /api/youtube endpoint.
	SiteBaseURL string        `yaml:"site_base_url"`
	Storage     StorageConfig `yaml:"storage"`
	ContentDir  string        `yaml:"content_dir"`
	// Subscribers is the count served by /api/youtube.
	Subscribers    string   `yaml:"subscribers"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StorageConfig struct {
	Type          string `yaml:"type"`
	DatabaseURL   string `yaml:"database_url"`
	MigrationsDir string `yaml:"migrations_dir"`
}

func Default() *Config {
	return &Config{
		Port:           "8080",
		ContentDir:     "content",
		Subscribers:    "81600",
		AllowedOrigins: []string{"*"},
		Storage: StorageConfig{
			Type:          StorageMemory,
			MigrationsDir: "migrations",
		},
	}
}

// Load reads path when it is not empty, then applies STORAGE_TYPE,
// DATABASE_URL, PORT and SITE_BASE_URL from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("STORAGE_TYPE"); ok && v != "" {
		c.Storage.Type = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Storage.DatabaseURL = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Port = v
	}
	if v, ok := lookup("SITE_BASE_URL"); ok && v != "" {
		c.SiteBaseURL = v
	}
	if c.SiteBaseURL == "" {
		c.SiteBaseURL = "http://localhost:" + c.Port
	}
	c.SiteBaseURL = strings.TrimSuffix(c.SiteBaseURL, "/")
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory:
	case StoragePostgres, StorageSQLite:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("%s storage: DATABASE_URL is not set", c.Storage.Type)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownStorage, c.Storage.Type)
	}
	if c.Port == "" {
		return errors.New("port is not set")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
