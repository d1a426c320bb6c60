package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// MongoConfig locates the posts collection.
type MongoConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// collection is the subset of *mongo.Collection the store uses.
type collection interface {
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// Mongo stores each post as one document whose _id is the post id.
type Mongo struct {
	client *mongo.Client
	coll   collection
	log    *slog.Logger
}

var _ Store = (*Mongo)(nil)

// OpenMongo connects and pings the server before returning.
func OpenMongo(ctx context.Context, cfg MongoConfig, log *slog.Logger) (*Mongo, error) {
	if cfg.Database == "" {
		cfg.Database = "storyscout"
	}
	if cfg.Collection == "" {
		cfg.Collection = "posts"
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("store: mongo ping: %w", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		log:    log,
	}, nil
}

func mongoDocument(p domain.Post) bson.M {
	doc := bson.M(toDocument(p))
	delete(doc, fieldID)
	doc["_id"] = p.ID
	return doc
}

func (m *Mongo) Clear(ctx context.Context) error {
	if _, err := m.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return domain.PersistenceError("mongo clear", err)
	}
	return nil
}

func (m *Mongo) Put(ctx context.Context, p domain.Post) error {
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, mongoDocument(p), options.Replace().SetUpsert(true))
	if err != nil {
		return domain.PersistenceError("mongo put "+p.ID, err)
	}
	return nil
}

func (m *Mongo) PutAll(ctx context.Context, posts []domain.Post) error {
	posts = dedupe(posts)
	if len(posts) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(posts))
	for i, p := range posts {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetReplacement(mongoDocument(p)).
			SetUpsert(true)
	}
	if _, err := m.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return domain.PersistenceError(fmt.Sprintf("mongo put %d posts", len(posts)), err)
	}
	return nil
}

func (m *Mongo) ScanAll(ctx context.Context) ([]domain.Post, error) {
	cur, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, domain.PersistenceError("mongo find", err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, domain.PersistenceError("mongo decode", err)
	}
	docs := make([]map[string]any, len(raw))
	for i, d := range raw {
		docs[i] = map[string]any(d)
	}
	return decodeAll(m.log, BackendMongo, docs), nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
