package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

type memoryVectorStore struct {
	vectors map[string][]float32
	failGet bool
	failPut bool
}

func (m *memoryVectorStore) Lookup(_ context.Context, id string) ([]float32, bool, error) {
	if m.failGet {
		return nil, false, errors.New("unavailable")
	}
	v, ok := m.vectors[id]
	return v, ok, nil
}

func (m *memoryVectorStore) Save(_ context.Context, id, _ string, vector []float32) error {
	if m.failPut {
		return errors.New("unavailable")
	}
	m.vectors[id] = vector
	return nil
}

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (e *countingEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.6, 0.8}, nil
}

func TestEmbeddingCacheHit(t *testing.T) {
	next := &countingEmbedder{}
	store := &memoryVectorStore{vectors: map[string][]float32{}}
	cache := NewEmbeddingCache(next, store, "text-embedding-3-small", nil)

	for i := 0; i < 3; i++ {
		vec, err := cache.CreateEmbedding(context.Background(), "passage: Колонка")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.6, 0.8}, vec)
	}

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Len(t, store.vectors, 1)
}

func TestEmbeddingCacheStoreFailuresAreNotFatal(t *testing.T) {
	next := &countingEmbedder{}
	cache := NewEmbeddingCache(next, &memoryVectorStore{failGet: true, failPut: true}, "m", nil)

	vec, err := cache.CreateEmbedding(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
}

func TestEmbeddingCachePropagatesEmbedderError(t *testing.T) {
	store := &memoryVectorStore{vectors: map[string][]float32{}}
	cache := NewEmbeddingCache(&countingEmbedder{err: errors.New("quota")}, store, "m", nil)

	_, err := cache.CreateEmbedding(context.Background(), "x")
	assert.ErrorContains(t, err, "quota")
	assert.Empty(t, store.vectors)
}

func TestEmbeddingPointIDDependsOnModel(t *testing.T) {
	a := embeddingPointID("model-a", "text")
	assert.Equal(t, a, embeddingPointID("model-a", "text"))
	assert.NotEqual(t, a, embeddingPointID("model-b", "text"))
	assert.NotEqual(t, a, embeddingPointID("model-a", "other"))
}

type fakeQdrant struct {
	getErr      error
	getResult   []*qdrant.RetrievedPoint
	gets        []*qdrant.GetPoints
	upserts     []*qdrant.UpsertPoints
	collections []string
	created     []*qdrant.CreateCollection
}

func (f *fakeQdrant) Get(_ context.Context, in *qdrant.GetPoints, _ ...grpc.CallOption) (*qdrant.GetResponse, error) {
	f.gets = append(f.gets, in)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &qdrant.GetResponse{Result: f.getResult}, nil
}

func (f *fakeQdrant) Upsert(_ context.Context, in *qdrant.UpsertPoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f.upserts = append(f.upserts, in)
	return &qdrant.PointsOperationResponse{}, nil
}

func (f *fakeQdrant) List(context.Context, *qdrant.ListCollectionsRequest, ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error) {
	res := &qdrant.ListCollectionsResponse{}
	for _, name := range f.collections {
		res.Collections = append(res.Collections, &qdrant.CollectionDescription{Name: name})
	}
	return res, nil
}

func (f *fakeQdrant) Create(_ context.Context, in *qdrant.CreateCollection, _ ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	f.created = append(f.created, in)
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func TestEnsureCollection(t *testing.T) {
	f := &fakeQdrant{}
	require.NoError(t, ensureCollection(context.Background(), f, "embeddings", 1536, nil))
	require.Len(t, f.created, 1)
	assert.Equal(t, "embeddings", f.created[0].GetCollectionName())
	assert.Equal(t, uint64(1536), f.created[0].GetVectorsConfig().GetParams().GetSize())

	existing := &fakeQdrant{collections: []string{"embeddings"}}
	require.NoError(t, ensureCollection(context.Background(), existing, "embeddings", 1536, nil))
	assert.Empty(t, existing.created)
}

func TestQdrantVectorStoreSave(t *testing.T) {
	f := &fakeQdrant{}
	store := newQdrantVectorStore(f, "embeddings", 2)

	require.NoError(t, store.Save(context.Background(), "id-1", "Колонка", []float32{0.1, 0.2}))

	require.Len(t, f.upserts, 1)
	req := f.upserts[0]
	assert.Equal(t, "embeddings", req.GetCollectionName())
	require.Len(t, req.GetPoints(), 1)
	point := req.GetPoints()[0]
	assert.Equal(t, "id-1", point.GetId().GetUuid())
	assert.Equal(t, []float32{0.1, 0.2}, point.GetVectors().GetVector().GetData())
	assert.Equal(t, "Колонка", point.GetPayload()["text"].GetStringValue())

	assert.Error(t, store.Save(context.Background(), "id-2", "x", []float32{1}), "dimension mismatch must be rejected")
	assert.Len(t, f.upserts, 1)
}

func TestQdrantVectorStoreLookupMissAndError(t *testing.T) {
	f := &fakeQdrant{}
	store := newQdrantVectorStore(f, "embeddings", 2)

	vec, ok, err := store.Lookup(context.Background(), "id-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, vec)
	require.Len(t, f.gets, 1)
	assert.Equal(t, "id-1", f.gets[0].GetIds()[0].GetUuid())
	assert.True(t, f.gets[0].GetWithVectors().GetEnable())

	f.getErr = errors.New("unavailable")
	_, _, err = store.Lookup(context.Background(), "id-1")
	assert.ErrorContains(t, err, "unavailable")
}
