package services

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	config "genai-campaign-api/configs"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTrendSource struct {
	calls  atomic.Int32
	values map[string]float64
}

func (s *stubTrendSource) Name() string { return "stub" }

func (s *stubTrendSource) Popularity(_ context.Context, keyword string) (float64, error) {
	s.calls.Add(1)
	v, ok := s.values[keyword]
	if !ok {
		return 0, errors.New("unknown keyword")
	}
	return v, nil
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRandomTrendSourceRangeAndSeed(t *testing.T) {
	a := NewRandomTrendSource(rand.New(rand.NewSource(1)))
	b := NewRandomTrendSource(rand.New(rand.NewSource(1)))

	for i := 0; i < 50; i++ {
		va, err := a.Popularity(context.Background(), "x")
		require.NoError(t, err)
		vb, _ := b.Popularity(context.Background(), "x")
		assert.Equal(t, va, vb)
		assert.GreaterOrEqual(t, va, 5.0)
		assert.LessOrEqual(t, va, 15.0)
	}
}

func TestHTTPTrendSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("keyword") {
		case "наушники":
			w.Write([]byte(`{"keyword":"наушники","popularity":12.5}`))
		case "broken":
			w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	src := NewHTTPTrendSource(server.URL, "token", time.Second)

	v, err := src.Popularity(context.Background(), "наушники")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	_, err = src.Popularity(context.Background(), "broken")
	assert.Error(t, err)

	_, err = src.Popularity(context.Background(), "missing")
	assert.ErrorContains(t, err, "404")
}

func TestHTTPTrendSourceTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	src := NewHTTPTrendSource(server.URL, "", 50*time.Millisecond)
	start := time.Now()
	_, err := src.Popularity(context.Background(), "slow")

	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCachedTrendSourceUsesRedis(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	stub := &stubTrendSource{values: map[string]float64{"lamp": 9}}
	src := NewCachedTrendSource(stub, rdb, time.Hour, nil)

	for i := 0; i < 3; i++ {
		v, err := src.Popularity(context.Background(), "Lamp")
		require.NoError(t, err)
		assert.Equal(t, 9.0, v)
	}
	assert.Equal(t, int32(1), stub.calls.Load())

	stored, err := mr.Get("trend:stub:lamp")
	require.NoError(t, err)
	assert.Equal(t, "9", stored)
	assert.Equal(t, time.Hour, mr.TTL("trend:stub:lamp"))
}

func TestCachedTrendSourceSurvivesRedisOutage(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	stub := &stubTrendSource{values: map[string]float64{"lamp": 3}}
	src := NewCachedTrendSource(stub, rdb, time.Hour, nil)
	mr.Close()

	v, err := src.Popularity(context.Background(), "lamp")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestFetchAllDegradesFailuresToZero(t *testing.T) {
	stub := &stubTrendSource{values: map[string]float64{"a": 1, "c": 3}}

	got := FetchAll(context.Background(), stub, []string{"a", "b", "c"}, nil)

	assert.Equal(t, []float64{1, 0, 3}, got)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestNewTrendSourceSelection(t *testing.T) {
	cfg := &config.Config{}
	src, closeFn := NewTrendSource(context.Background(), cfg, rand.New(rand.NewSource(1)), nil)
	assert.Equal(t, "random", src.Name())
	assert.NoError(t, closeFn())

	mr, _ := setupTestRedis(t)
	cfg = &config.Config{TrendAPIURL: "http://127.0.0.1:1", RedisURL: "redis://" + mr.Addr(), TrendCacheTTL: time.Minute}
	src, closeFn = NewTrendSource(context.Background(), cfg, nil, nil)
	defer closeFn()
	assert.Equal(t, "redis+http", src.Name())
}
