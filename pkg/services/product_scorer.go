package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/models"
)

const (
	defaultMarginPct    = 30.0
	marginScoreDivisor  = 80.0
	noPriceMarginScore  = 0.2
	keywordWeightMargin = 0.5
	keywordWeightTags   = 0.3
	keywordWeightVisual = 0.2
	tagNoveltyBonus     = 0.3
	tagBestsellerBonus  = 0.3
	tagVisualBonus      = 0.2
	descHighVisualBonus = 0.4
	descCompactBonus    = 0.2
)

// ProductScorer rates a product's advertising fitness. Implementations are
// deterministic for the keyword mode; the semantic mode may consult
// external services through its context.
type ProductScorer interface {
	Mode() string
	Score(ctx context.Context, p models.Product) models.ProductScore
}

// KeywordScorer combines margin, tag and description keyword buckets into a
// score in [0,1].
type KeywordScorer struct {
	keywords *config.ScoringKeywords
}

// NewKeywordScorer creates a KeywordScorer. A nil keyword set uses the defaults.
func NewKeywordScorer(keywords *config.ScoringKeywords) *KeywordScorer {
	if keywords == nil {
		keywords = config.DefaultScoringKeywords()
	}
	return &KeywordScorer{keywords: keywords}
}

func (s *KeywordScorer) Mode() string { return config.ScoringModeKeyword }

// Score computes 0.5*margin + 0.3*tags + 0.2*visual rounded to 4 places.
func (s *KeywordScorer) Score(_ context.Context, p models.Product) models.ProductScore {
	m := MarginScore(p)
	t := s.TagScore(p)
	v := s.VisualScore(p)
	total := roundTo(m*keywordWeightMargin+t*keywordWeightTags+v*keywordWeightVisual, 4)

	pct, _ := marginPercent(p)
	return models.ProductScore{
		Score: total,
		Components: map[string]float64{
			"margin": m,
			"tags":   t,
			"visual": v,
		},
		Recommendation: fmt.Sprintf("Маржа: %.0f%% (оценка %.2f). Теги: %.2f. Визуал: %.2f. Итоговый скор: %.4f.",
			pct, m, t, v, total),
	}
}

// MarginScore maps the margin percentage onto [0,1] by dividing by 80.
// A product without a usable price scores 0.2 unless its margin is explicit.
func MarginScore(p models.Product) float64 {
	if p.Margin == nil && p.Price <= 0 {
		return noPriceMarginScore
	}
	pct, _ := marginPercent(p)
	return clamp01(pct / marginScoreDivisor)
}

// marginPercent resolves the margin: explicit value, then derived from the
// market cost, then the default. ok is false only for the default.
func marginPercent(p models.Product) (float64, bool) {
	if p.Margin != nil && !isBad(*p.Margin) {
		return *p.Margin, true
	}
	if p.Price > 0 && p.MarketCost != nil && *p.MarketCost > 0 {
		return (p.Price - *p.MarketCost) / p.Price * 100, true
	}
	return defaultMarginPct, false
}

// TagScore matches tags against the novelty, bestseller and visual buckets.
func (s *KeywordScorer) TagScore(p models.Product) float64 {
	text := strings.ToLower(strings.Join(p.Tags, " "))
	score := 0.0
	if containsAny(text, s.keywords.Tags.Novelty) {
		score += tagNoveltyBonus
	}
	if containsAny(text, s.keywords.Tags.Bestseller) {
		score += tagBestsellerBonus
	}
	if containsAny(text, s.keywords.Tags.Visual) {
		score += tagVisualBonus
	}
	return clamp01(score)
}

// VisualScore matches description and category text.
func (s *KeywordScorer) VisualScore(p models.Product) float64 {
	text := strings.ToLower(p.Description + " " + p.Category)
	score := 0.0
	if containsAny(text, s.keywords.Description.HighVisual) {
		score += descHighVisualBonus
	}
	if containsAny(text, s.keywords.Description.Compact) {
		score += descCompactBonus
	}
	return clamp01(score)
}

// SelectTop scores the whole catalog and returns the best k, highest first.
// Equal scores keep catalog order.
func SelectTop(ctx context.Context, scorer ProductScorer, catalog []models.Product, k int) ([]models.ScoredProduct, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d: %w", k, models.ErrInvalidArgument)
	}

	if p, ok := scorer.(catalogPreparer); ok {
		scorer = p.Prepare(ctx, catalog)
	}

	scored := make([]models.ScoredProduct, 0, len(catalog))
	for i, p := range catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := scorer.Score(ctx, p)
		scored = append(scored, models.ScoredProduct{
			Product:        p,
			Score:          res.Score,
			Recommendation: res.Recommendation,
			Index:          i,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
