package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/logger"
	"genai-campaign-api/pkg/models"
)

// Embedder turns text into a vector. *azure.OpenAIClient satisfies it.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

const (
	semanticWeight      = 1.5
	semanticMarginScale = 0.4
	semanticAxisOffset  = 5.0
)

type anchorPair struct {
	axis     string
	positive []float32
	negative []float32
}

// SemanticScorer ranks products by embedding similarity to positive and
// negative anchor phrases on three axes, plus margin and keyword demand.
// Scores are unbounded.
//
// The scorer returned by NewSemanticScorer is safe to share. Prepare returns
// a copy bound to one catalog; its trend values are never written back.
type SemanticScorer struct {
	embedder Embedder
	trends   TrendSource
	anchors  []anchorPair
	log      *logger.Logger

	// read-only once built by Prepare
	trendFor map[string]float64
}

// NewSemanticScorer embeds the anchor phrases once. It fails if any anchor
// cannot be embedded since the scorer would be meaningless without them.
func NewSemanticScorer(ctx context.Context, embedder Embedder, trends TrendSource, keywords *config.ScoringKeywords, log *logger.Logger) (*SemanticScorer, error) {
	if keywords == nil {
		keywords = config.DefaultScoringKeywords()
	}
	a := keywords.Anchors
	phrases := []struct{ axis, pos, neg string }{
		{"visual", a.VisualPositive, a.VisualNegative},
		{"novelty", a.NoveltyPositive, a.NoveltyNegative},
		{"hype", a.HypePositive, a.HypeNegative},
	}

	s := &SemanticScorer{
		embedder: embedder,
		trends:   trends,
		log:      logger.OrNop(log),
	}
	for _, p := range phrases {
		pos, err := embedder.CreateEmbedding(ctx, p.pos)
		if err != nil {
			return nil, fmt.Errorf("embed %s positive anchor: %w", p.axis, err)
		}
		neg, err := embedder.CreateEmbedding(ctx, p.neg)
		if err != nil {
			return nil, fmt.Errorf("embed %s negative anchor: %w", p.axis, err)
		}
		s.anchors = append(s.anchors, anchorPair{axis: p.axis, positive: pos, negative: neg})
	}
	return s, nil
}

func (s *SemanticScorer) Mode() string { return config.ScoringModeSemantic }

// Prepare fans out trend lookups for the whole catalog and returns a scorer
// that answers Score from those values. The receiver is left untouched.
func (s *SemanticScorer) Prepare(ctx context.Context, catalog []models.Product) ProductScorer {
	if s.trends == nil || len(catalog) == 0 {
		return s
	}
	keywords := make([]string, len(catalog))
	for i, p := range catalog {
		keywords[i] = p.Name
	}
	values := FetchAll(ctx, s.trends, keywords, s.log)

	run := *s
	run.trendFor = make(map[string]float64, len(keywords))
	for i, kw := range keywords {
		run.trendFor[kw] = values[i]
	}
	return &run
}

func (s *SemanticScorer) Score(ctx context.Context, p models.Product) models.ProductScore {
	semantic := 0.0
	components := map[string]float64{}

	vec, err := s.embedder.CreateEmbedding(ctx, "passage: "+strings.TrimSpace(p.Name+". "+p.Description))
	if err != nil {
		s.log.Warn("product embedding failed, semantic term set to zero", "product", p.Name, "error", err)
	} else {
		sum := 0.0
		for _, a := range s.anchors {
			axis := AxisScore(vec, a.positive, a.negative)
			components[a.axis] = axis
			sum += axis
		}
		semantic = sum / float64(len(s.anchors))
	}

	marginPct := 0.0
	if pct, ok := marginPercent(p); ok {
		marginPct = pct
	}
	trend := s.trend(ctx, p.Name)

	total := semantic*semanticWeight + marginPct*semanticMarginScale + trend
	if isBad(total) {
		total = 0
	}
	components["semantic"] = semantic
	components["margin_pct"] = marginPct
	components["trend"] = trend

	return models.ProductScore{
		Score:      total,
		Components: components,
		Recommendation: fmt.Sprintf("Скор привлекательности/новизны: %.1f. Маржинальность: %d%%. Общий скор (демо): %.1f.",
			semantic, int(marginPct), total),
	}
}

func (s *SemanticScorer) trend(ctx context.Context, keyword string) float64 {
	v, ok := s.trendFor[keyword]
	if ok || s.trends == nil {
		return v
	}

	v, err := s.trends.Popularity(ctx, keyword)
	if err != nil {
		s.log.Warn("trend lookup failed, using zero demand", "keyword", keyword, "error", err)
		return 0
	}
	return v
}

// AxisScore is max(0, (cos(e,pos) - cos(e,neg))*100 + 5).
func AxisScore(embedding, positive, negative []float32) float64 {
	diff := cosineSimilarity(embedding, positive) - cosineSimilarity(embedding, negative)
	return math.Max(0, diff*100+semanticAxisOffset)
}

// catalogPreparer is implemented by scorers that can batch work over the
// whole catalog before individual Score calls. The returned scorer is only
// valid for that catalog.
type catalogPreparer interface {
	Prepare(ctx context.Context, catalog []models.Product) ProductScorer
}
