// Package store persists the current batch of scored posts. Every backend upserts
// by post id (last write wins), clears idempotently, and validates documents on
// the way out so queries never see a malformed post.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// Store holds exactly one batch: the output of the latest scrape run.
type Store interface {
	// Clear removes every persisted post. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	// Put inserts p or overwrites the post with the same id.
	Put(ctx context.Context, p domain.Post) error
	// PutAll is the batch form of Put. A failure may leave a partial write behind.
	PutAll(ctx context.Context, posts []domain.Post) error
	// ScanAll returns every persisted post in no particular order.
	ScanAll(ctx context.Context) ([]domain.Post, error)
	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendNeo4j    = "neo4j"
	BackendQdrant   = "qdrant"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Backend  string         `yaml:"backend"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Neo4j    Neo4jConfig    `yaml:"neo4j"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// Open connects to the configured backend. The caller owns the returned Store
// and must Close it on shutdown.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (Store, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(log), nil
	case BackendMongo:
		return OpenMongo(ctx, cfg.Mongo, log)
	case BackendNeo4j:
		return OpenNeo4j(ctx, cfg.Neo4j, log)
	case BackendQdrant:
		return OpenQdrant(ctx, cfg.Qdrant, log)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.Postgres, log)
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLite, log)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// dedupe keeps the last value for each id, at the position the id first appeared.
func dedupe(posts []domain.Post) []domain.Post {
	idx := make(map[string]int, len(posts))
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if i, ok := idx[p.ID]; ok {
			out[i] = p
			continue
		}
		idx[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
