package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// QdrantConfig locates the collection holding post payloads.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// postNamespace derives stable point ids from post ids.
var postNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("storyscout/post"))

const scrollPageSize = 256

// Qdrant keeps each post as a point payload. The single vector dimension carries
// the score so points can be browsed by score in the Qdrant console.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	log         *slog.Logger
}

var _ Store = (*Qdrant)(nil)

// OpenQdrant dials Qdrant over gRPC and ensures the collection exists.
func OpenQdrant(ctx context.Context, cfg QdrantConfig, log *slog.Logger) (*Qdrant, error) {
	if cfg.Collection == "" {
		cfg.Collection = "storyscout_posts"
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("store: dial qdrant %s: %w", cfg.Addr, err)
	}
	q := newQdrantWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), cfg.Collection, log)
	q.conn = conn
	if err := q.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

// newQdrantWithClients builds a store over existing gRPC clients.
func newQdrantWithClients(points pb.PointsClient, collections pb.CollectionsClient, collection string, log *slog.Logger) *Qdrant {
	return &Qdrant{points: points, collections: collections, collection: collection, log: log}
}

// pointID maps a post id to its UUIDv5 point id.
func pointID(postID string) string {
	return uuid.NewSHA1(postNamespace, []byte(postID)).String()
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("store: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     1,
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("store: create collection %s: %w", q.collection, err)
	}
	return nil
}

// Clear drops and recreates the collection.
func (q *Qdrant) Clear(ctx context.Context) error {
	if _, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collection}); err != nil {
		return domain.PersistenceError("qdrant clear", err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		return domain.PersistenceError("qdrant clear", err)
	}
	return nil
}

func (q *Qdrant) Put(ctx context.Context, p domain.Post) error {
	return q.upsert(ctx, []domain.Post{p})
}

func (q *Qdrant) PutAll(ctx context.Context, posts []domain.Post) error {
	return q.upsert(ctx, dedupe(posts))
}

func (q *Qdrant) upsert(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(posts))
	for i, p := range posts {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(p.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: []float32{float32(p.Score)}},
				},
			},
			Payload: toPayload(toDocument(p)),
		}
	}
	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return domain.PersistenceError(fmt.Sprintf("qdrant upsert %d points", len(posts)), err)
	}
	return nil
}

// ScanAll pages through the collection with Scroll.
func (q *Qdrant) ScanAll(ctx context.Context) ([]domain.Post, error) {
	limit := uint32(scrollPageSize)
	var (
		docs   []map[string]any
		offset *pb.PointId
	)
	for {
		resp, err := q.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: q.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, domain.PersistenceError("qdrant scroll", err)
		}
		for _, pt := range resp.GetResult() {
			docs = append(docs, fromPayload(pt.GetPayload()))
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	return decodeAll(q.log, BackendQdrant, docs), nil
}

func (q *Qdrant) Close(_ context.Context) error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

func toPayload(doc map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(doc))
	for k, val := range doc {
		switch tv := val.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return payload
}

func fromPayload(payload map[string]*pb.Value) map[string]any {
	doc := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			doc[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			doc[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			doc[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			doc[k] = kind.BoolValue
		}
	}
	return doc
}
