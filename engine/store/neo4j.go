package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// Neo4jConfig locates the graph database.
type Neo4jConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// neo4jSessionAdapter adapts neo4j.SessionWithContext to the runner interface.
type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// Neo4j stores posts as (:Post {id}) nodes.
type Neo4j struct {
	driver     neo4j.DriverWithContext
	database   string
	log        *slog.Logger
	newSession func(ctx context.Context) runner // for testing
}

var _ Store = (*Neo4j)(nil)

const (
	cypherClear  = `MATCH (n:Post) DETACH DELETE n`
	cypherPut    = `MERGE (n:Post {id: $id}) SET n = $props`
	cypherPutAll = `UNWIND $rows AS row MERGE (n:Post {id: row.id}) SET n = row`
	cypherScan   = `MATCH (n:Post) RETURN n`
	cypherIndex  = `CREATE CONSTRAINT post_id IF NOT EXISTS FOR (n:Post) REQUIRE n.id IS UNIQUE`
)

// OpenNeo4j connects, verifies connectivity and ensures the id constraint exists.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig, log *slog.Logger) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("store: neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("store: neo4j connect: %w", err)
	}
	n := &Neo4j{driver: driver, database: cfg.Database, log: log}
	if err := n.exec(ctx, cypherIndex, nil); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("store: neo4j constraint: %w", err)
	}
	return n, nil
}

func (n *Neo4j) session(ctx context.Context) runner {
	if n.newSession != nil {
		return n.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})}
}

// exec runs a write statement and drains its result so errors surface.
func (n *Neo4j) exec(ctx context.Context, cypher string, params map[string]any) error {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	for res.Next(ctx) {
	}
	return res.Err()
}

func (n *Neo4j) Clear(ctx context.Context) error {
	if err := n.exec(ctx, cypherClear, nil); err != nil {
		return domain.PersistenceError("neo4j clear", err)
	}
	return nil
}

func (n *Neo4j) Put(ctx context.Context, p domain.Post) error {
	if err := n.exec(ctx, cypherPut, map[string]any{"id": p.ID, "props": toDocument(p)}); err != nil {
		return domain.PersistenceError("neo4j put "+p.ID, err)
	}
	return nil
}

func (n *Neo4j) PutAll(ctx context.Context, posts []domain.Post) error {
	posts = dedupe(posts)
	if len(posts) == 0 {
		return nil
	}
	rows := make([]any, len(posts))
	for i, p := range posts {
		rows[i] = toDocument(p)
	}
	if err := n.exec(ctx, cypherPutAll, map[string]any{"rows": rows}); err != nil {
		return domain.PersistenceError(fmt.Sprintf("neo4j put %d posts", len(posts)), err)
	}
	return nil
}

func (n *Neo4j) ScanAll(ctx context.Context) ([]domain.Post, error) {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypherScan, nil)
	if err != nil {
		return nil, domain.PersistenceError("neo4j scan", err)
	}
	var docs []map[string]any
	for res.Next(ctx) {
		docs = append(docs, nodeProps(res.Record()))
	}
	if err := res.Err(); err != nil {
		return nil, domain.PersistenceError("neo4j scan", err)
	}
	return decodeAll(n.log, BackendNeo4j, docs), nil
}

// nodeProps extracts the properties of the "n" column.
func nodeProps(rec *neo4j.Record) map[string]any {
	v, ok := rec.Get("n")
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case dbtype.Node:
		return n.Props
	case map[string]any:
		return n
	default:
		return nil
	}
}

func (n *Neo4j) Close(ctx context.Context) error {
	if n.driver == nil {
		return nil
	}
	return n.driver.Close(ctx)
}
