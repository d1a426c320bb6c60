// Package config loads storyscout configuration.
//
// Configuration comes from a single YAML file named by the --config flag or the
// STORYSCOUT_CONFIG environment variable, followed by environment overrides for
// connection strings. Without a file, built-in defaults apply. Run parameters
// (category, age window, comment threshold) are never configured here; callers
// supply them per run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/storyscout/engine/source"
	"github.com/WessleyAI/storyscout/engine/store"
	"github.com/WessleyAI/storyscout/pkg/logx"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "STORYSCOUT_CONFIG"

// Config is the full process configuration.
type Config struct {
	Log    LogConfig     `yaml:"log"`
	HTTP   HTTPConfig    `yaml:"http"`
	Source source.Config `yaml:"source"`
	Store  store.Config  `yaml:"store"`
	NATS   NATSConfig    `yaml:"nats"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	CORSOrigin   string        `yaml:"cors_origin"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// NATSConfig configures run event publishing. An empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// DefaultSQLitePath is where the default store keeps the current batch.
func DefaultSQLitePath() string {
	return filepath.Join(xdg.DataHome, "storyscout", "storyscout.db")
}

// Default returns the built-in configuration: a local sqlite store, no events.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			CORSOrigin:   "*",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Source: source.DefaultConfig(),
		Store: store.Config{
			Backend: store.BackendSQLite,
			SQLite:  store.SQLiteConfig{Path: DefaultSQLitePath()},
		},
		NATS: NATSConfig{Subject: "storyscout.runs"},
	}
}

// Load reads path (or $STORYSCOUT_CONFIG when path is empty) over the defaults,
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func applyEnv(cfg *Config) {
	cfg.Log.Level = envOr("STORYSCOUT_LOG_LEVEL", cfg.Log.Level)
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	cfg.HTTP.Addr = envOr("STORYSCOUT_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.CORSOrigin = envOr("CORS_ORIGIN", cfg.HTTP.CORSOrigin)

	cfg.Source.BaseURL = envOr("STORYSCOUT_SOURCE_URL", cfg.Source.BaseURL)
	cfg.Source.UserAgent = envOr("STORYSCOUT_USER_AGENT", cfg.Source.UserAgent)

	cfg.Store.Backend = envOr("STORYSCOUT_STORE", cfg.Store.Backend)
	cfg.Store.Mongo.URI = envOr("MONGO_URI", cfg.Store.Mongo.URI)
	cfg.Store.Neo4j.URL = envOr("NEO4J_URL", cfg.Store.Neo4j.URL)
	cfg.Store.Neo4j.User = envOr("NEO4J_USER", cfg.Store.Neo4j.User)
	cfg.Store.Neo4j.Password = envOr("NEO4J_PASS", cfg.Store.Neo4j.Password)
	cfg.Store.Qdrant.Addr = envOr("QDRANT_URL", cfg.Store.Qdrant.Addr)
	cfg.Store.Postgres.DSN = envOr("DATABASE_URL", cfg.Store.Postgres.DSN)
	cfg.Store.SQLite.Path = envOr("STORYSCOUT_SQLITE_PATH", cfg.Store.SQLite.Path)

	cfg.NATS.URL = envOr("NATS_URL", cfg.NATS.URL)
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := logx.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("config: log.level: %w", err))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("config: http.addr is required"))
	}
	if c.Source.BaseURL == "" {
		errs = append(errs, errors.New("config: source.base_url is required"))
	}
	if c.Source.PageSize < 0 || c.Source.PageSize > 100 {
		errs = append(errs, fmt.Errorf("config: source.page_size must be in [1,100], got %d", c.Source.PageSize))
	}
	switch c.Store.Backend {
	case "", store.BackendMemory:
	case store.BackendMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("config: store.mongo.uri (or MONGO_URI) is required"))
		}
	case store.BackendNeo4j:
		if c.Store.Neo4j.URL == "" {
			errs = append(errs, errors.New("config: store.neo4j.url (or NEO4J_URL) is required"))
		}
	case store.BackendQdrant:
		if c.Store.Qdrant.Addr == "" {
			errs = append(errs, errors.New("config: store.qdrant.addr (or QDRANT_URL) is required"))
		}
	case store.BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("config: store.postgres.dsn (or DATABASE_URL) is required"))
		}
	case store.BackendSQLite:
		if c.Store.SQLite.Path == "" {
			errs = append(errs, errors.New("config: store.sqlite.path (or STORYSCOUT_SQLITE_PATH) is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store.backend %q", c.Store.Backend))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		errs = append(errs, errors.New("config: nats.subject is required when nats.url is set"))
	}
	return errors.Join(errs...)
}
