package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// PostgresConfig locates the jsonb document table.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
	MaxConns int32  `yaml:"max_conns"`
}

// pgConn is the subset of *pgxpool.Pool the store uses.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Postgres stores each post as a jsonb document keyed by id.
type Postgres struct {
	db    pgConn
	table string
	log   *slog.Logger
}

var _ Store = (*Postgres)(nil)

// OpenPostgres opens a pool and creates the table if needed.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, log *slog.Logger) (*Postgres, error) {
	if cfg.Table == "" {
		cfg.Table = "posts"
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("store: invalid postgres table name %q", cfg.Table)
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	p := &Postgres{db: pool, table: cfg.Table, log: log}
	if err := p.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) init(ctx context.Context) error {
	_, err := p.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id  TEXT PRIMARY KEY,
		doc JSONB NOT NULL
	)`, p.table))
	if err != nil {
		return fmt.Errorf("store: initializing schema: %w", err)
	}
	return nil
}

func (p *Postgres) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`, p.table)
}

func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, p.table)); err != nil {
		return domain.PersistenceError("postgres clear", err)
	}
	return nil
}

func (p *Postgres) Put(ctx context.Context, post domain.Post) error {
	if _, err := p.db.Exec(ctx, p.upsertSQL(), post.ID, toDocument(post)); err != nil {
		return domain.PersistenceError("postgres put "+post.ID, err)
	}
	return nil
}

func (p *Postgres) PutAll(ctx context.Context, posts []domain.Post) error {
	posts = dedupe(posts)
	if len(posts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	q := p.upsertSQL()
	for _, post := range posts {
		batch.Queue(q, post.ID, toDocument(post))
	}
	br := p.db.SendBatch(ctx, batch)
	defer br.Close()
	for range posts {
		if _, err := br.Exec(); err != nil {
			return domain.PersistenceError(fmt.Sprintf("postgres put %d posts", len(posts)), err)
		}
	}
	return nil
}

func (p *Postgres) ScanAll(ctx context.Context) ([]domain.Post, error) {
	rows, err := p.db.Query(ctx, fmt.Sprintf(`SELECT doc FROM %s`, p.table))
	if err != nil {
		return nil, domain.PersistenceError("postgres scan", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[map[string]any])
	if err != nil {
		return nil, domain.PersistenceError("postgres scan", err)
	}
	return decodeAll(p.log, BackendPostgres, docs), nil
}

func (p *Postgres) Close(_ context.Context) error {
	if p.db != nil {
		p.db.Close()
	}
	return nil
}
