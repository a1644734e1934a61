package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"genai-campaign-api/pkg/logger"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// embeddingNamespace scopes point IDs so different embedding models never share vectors.
var embeddingNamespace = uuid.MustParse("6f1c2a9e-3b5d-4e8a-9c47-2d1e0b7f5a31")

// VectorStore persists embeddings by point ID.
type VectorStore interface {
	Lookup(ctx context.Context, id string) ([]float32, bool, error)
	Save(ctx context.Context, id, text string, vector []float32) error
}

// EmbeddingCache wraps an Embedder and keeps every result in a VectorStore,
// so uploading the same catalog twice does not embed the same text twice.
// Store failures are logged and never fail the embedding call.
type EmbeddingCache struct {
	next  Embedder
	store VectorStore
	model string
	log   *logger.Logger
}

// NewEmbeddingCache creates a cache. model is mixed into the point ID.
func NewEmbeddingCache(next Embedder, store VectorStore, model string, log *logger.Logger) *EmbeddingCache {
	return &EmbeddingCache{next: next, store: store, model: model, log: logger.OrNop(log)}
}

func embeddingPointID(model, text string) string {
	return uuid.NewSHA1(embeddingNamespace, []byte(model+"\x00"+text)).String()
}

func (c *EmbeddingCache) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	id := embeddingPointID(c.model, text)
	vec, ok, err := c.store.Lookup(ctx, id)
	switch {
	case err != nil:
		c.log.Warn("embedding cache lookup failed", "error", err)
	case ok:
		return vec, nil
	}

	vec, err = c.next.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, id, text, vec); err != nil {
		c.log.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

type pointsAPI interface {
	Get(ctx context.Context, in *qdrant.GetPoints, opts ...grpc.CallOption) (*qdrant.GetResponse, error)
	Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *qdrant.ListCollectionsRequest, opts ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error)
	Create(ctx context.Context, in *qdrant.CreateCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error)
}

// QdrantVectorStore is a VectorStore backed by one Qdrant collection.
type QdrantVectorStore struct {
	points     pointsAPI
	collection string
	dimensions int
	timeout    time.Duration
}

// DialQdrant connects over gRPC and makes sure the collection exists.
// An API key switches to TLS with the key sent as request metadata; without
// one the connection is plaintext, which suits a local instance.
func DialQdrant(ctx context.Context, addr, apiKey, collection string, dimensions int, log *logger.Logger) (*QdrantVectorStore, func() error, error) {
	log = logger.OrNop(log)

	var dialOpts []grpc.DialOption
	if apiKey != "" {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
			return invoker(ctx, method, req, reply, cc, opts...)
		}))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("qdrant client: %w", err)
	}

	store := newQdrantVectorStore(qdrant.NewPointsClient(conn), collection, dimensions)
	if err := ensureCollection(ctx, qdrant.NewCollectionsClient(conn), collection, dimensions, log); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return store, conn.Close, nil
}

func newQdrantVectorStore(points pointsAPI, collection string, dimensions int) *QdrantVectorStore {
	return &QdrantVectorStore{points: points, collection: collection, dimensions: dimensions, timeout: 3 * time.Second}
}

// ensureCollection creates the collection when it is missing.
func ensureCollection(ctx context.Context, collections collectionsAPI, name string, dimensions int, log *logger.Logger) error {
	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := collections.List(listCtx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list qdrant collections: %w", err)
	}
	for _, c := range res.GetCollections() {
		if c.GetName() == name {
			return nil
		}
	}

	createCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = collections.Create(createCtx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimensions),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection %q: %w", name, err)
	}
	log.Info("qdrant collection created", "collection", name, "dimensions", dimensions)
	return nil
}

// Lookup returns the stored vector. A vector of the wrong size counts as a miss.
func (s *QdrantVectorStore) Lookup(ctx context.Context, id string) ([]float32, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.points.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, false, fmt.Errorf("qdrant get %s: %w", id, err)
	}
	for _, p := range res.GetResult() {
		vec := p.GetVectors().GetVector().GetData()
		if len(vec) == s.dimensions {
			return vec, true, nil
		}
	}
	return nil, false, nil
}

func (s *QdrantVectorStore) Save(ctx context.Context, id, text string, vector []float32) error {
	if len(vector) != s.dimensions {
		return fmt.Errorf("embedding has %d dimensions, collection expects %d", len(vector), s.dimensions)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	wait := true
	_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}},
				Vectors: &qdrant.Vectors{
					VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: vector}},
				},
				Payload: map[string]*qdrant.Value{
					"text": {Kind: &qdrant.Value_StringValue{StringValue: text}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %s: %w", id, err)
	}
	return nil
}
