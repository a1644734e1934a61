package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// TrendSource reports how popular a search keyword currently is. The value
// feeds the trend term of the semantic score.
type TrendSource interface {
	Name() string
	Popularity(ctx context.Context, keyword string) (float64, error)
}

const (
	trendRandomMin   = 5.0
	trendRandomMax   = 15.0
	trendFanOutLimit = 8
)

// RandomTrendSource is the demo placeholder used when no demand API is
// configured. Values are uniform in [5,15].
type RandomTrendSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomTrendSource(rnd *rand.Rand) *RandomTrendSource {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomTrendSource{rnd: rnd}
}

func (s *RandomTrendSource) Name() string { return "random" }

func (s *RandomTrendSource) Popularity(ctx context.Context, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return trendRandomMin + s.rnd.Float64()*(trendRandomMax-trendRandomMin), nil
}

// HTTPTrendSource queries a keyword-demand API:
//
//	GET {base}?keyword=<kw>  ->  {"keyword": "...", "popularity": 12.5}
type HTTPTrendSource struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

type trendResponse struct {
	Keyword    string  `json:"keyword"`
	Popularity float64 `json:"popularity"`
}

func NewHTTPTrendSource(baseURL, apiKey string, timeout time.Duration) *HTTPTrendSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTrendSource{
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

func (s *HTTPTrendSource) Name() string { return "http" }

func (s *HTTPTrendSource) Popularity(ctx context.Context, keyword string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return 0, fmt.Errorf("trend api url: %w", err)
	}
	q := u.Query()
	q.Set("keyword", keyword)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build trend request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("trend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("trend api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out trendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode trend response: %w", err)
	}
	if isBad(out.Popularity) || out.Popularity < 0 {
		return 0, fmt.Errorf("trend api returned invalid popularity %v", out.Popularity)
	}
	return out.Popularity, nil
}

// CachedTrendSource keeps lookups from another source in Redis. Cache errors
// are logged and bypassed; only the wrapped source can fail a lookup.
type CachedTrendSource struct {
	next   TrendSource
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

func NewCachedTrendSource(next TrendSource, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CachedTrendSource {
	return &CachedTrendSource{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		prefix: "trend:" + next.Name() + ":",
		log:    logger.OrNop(log),
	}
}

func (s *CachedTrendSource) Name() string { return "redis+" + s.next.Name() }

func (s *CachedTrendSource) Popularity(ctx context.Context, keyword string) (float64, error) {
	key := s.prefix + strings.ToLower(strings.TrimSpace(keyword))

	val, err := s.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if f, perr := strconv.ParseFloat(val, 64); perr == nil {
			return f, nil
		}
		s.log.Warn("discarding corrupt trend cache entry", "key", key, "value", val)
	case errors.Is(err, redis.Nil):
	default:
		s.log.Warn("trend cache read failed", "key", key, "error", err)
	}

	f, err := s.next.Popularity(ctx, keyword)
	if err != nil {
		return 0, err
	}
	if err := s.rdb.Set(ctx, key, strconv.FormatFloat(f, 'f', -1, 64), s.ttl).Err(); err != nil {
		s.log.Warn("trend cache write failed", "key", key, "error", err)
	}
	return f, nil
}

// FetchAll looks up every keyword concurrently. A failed lookup yields 0 for
// that keyword and never aborts the batch. Results are index-aligned with keywords.
func FetchAll(ctx context.Context, src TrendSource, keywords []string, log *logger.Logger) []float64 {
	log = logger.OrNop(log)
	out := make([]float64, len(keywords))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trendFanOutLimit)
	for i, kw := range keywords {
		i, kw := i, kw
		g.Go(func() error {
			v, err := src.Popularity(gctx, kw)
			if err != nil {
				log.Warn("trend lookup failed, using zero demand", "keyword", kw, "source", src.Name(), "error", err)
				return nil
			}
			out[i] = v
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// NewTrendSource builds the configured source: the demand API when a URL is
// set, otherwise the random placeholder, wrapped in a Redis cache when
// REDIS_URL is present. The returned close func releases the Redis client.
func NewTrendSource(ctx context.Context, cfg *config.Config, rnd *rand.Rand, log *logger.Logger) (TrendSource, func() error) {
	log = logger.OrNop(log)
	noop := func() error { return nil }

	var src TrendSource
	if cfg.TrendAPIURL != "" {
		src = NewHTTPTrendSource(cfg.TrendAPIURL, cfg.TrendAPIKey, cfg.TrendTimeout)
	} else {
		src = NewRandomTrendSource(rnd)
	}

	if cfg.RedisURL == "" {
		log.Info("trend source ready", "source", src.Name())
		return src, noop
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		opts = &redis.Options{Addr: cfg.RedisURL}
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, trend cache disabled", "error", err)
		_ = rdb.Close()
		return src, noop
	}

	cached := NewCachedTrendSource(src, rdb, cfg.TrendCacheTTL, log)
	log.Info("trend source ready", "source", cached.Name(), "ttl", cfg.TrendCacheTTL)
	return cached, rdb.Close
}
