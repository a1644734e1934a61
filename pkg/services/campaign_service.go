package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"genai-campaign-api/pkg/logger"
	"genai-campaign-api/pkg/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BuildState is a step of a campaign run. Runs move forward only.
type BuildState string

const (
	StateInit          BuildState = "INIT"
	StateScored        BuildState = "SCORED"
	StateAudienceReady BuildState = "AUDIENCE_READY"
	StateGenerating    BuildState = "GENERATING"
	StateGenerated     BuildState = "GENERATED"
	StateSelected      BuildState = "SELECTED"
	StateAssembled     BuildState = "ASSEMBLED"
)

const (
	campaignPlatform    = "GENAI-4"
	campaignDescription = "Автоматически сгенерированная рекламная кампания по топ-товарам."
	sampleExampleCount  = 2
)

// CampaignOptions are per-run knobs. Zero values fall back to the builder defaults.
type CampaignOptions struct {
	Niche              string
	TopK               int
	VariantsPerChannel int
	AudienceSize       int
	Concurrency        int
	Trends             []string
	Channels           []models.Channel
}

// CampaignResult carries the document together with the intermediate sets
// it was derived from.
type CampaignResult struct {
	Document    *models.CampaignDocument
	TopProducts []models.ScoredProduct
	Audience    []models.ConsumerProfile
	AllAds      []models.ScoredAd
	BestAds     []models.ScoredAd
	Examples    []models.ScoredAd
}

// RunRecorder receives a summary of every finished run.
type RunRecorder interface {
	RecordCampaignRun(stat CampaignRunStat)
}

// CampaignRunStat summarizes one run for monitoring.
type CampaignRunStat struct {
	RunID        string        `json:"run_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Backend      string        `json:"backend"`
	ScoringMode  string        `json:"scoring_mode"`
	Products     int           `json:"products"`
	AdsGenerated int           `json:"ads_generated"`
	FallbackAds  int           `json:"fallback_ads"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// CampaignBuilder runs the full pipeline: select top products, build an
// audience, generate and evaluate variants, pick the best and assemble the
// document.
type CampaignBuilder struct {
	scorer    ProductScorer
	audience  AudienceGenerator
	creative  CreativeClient
	simulator *ResponseSimulator
	defaults  CampaignOptions
	recorder  RunRecorder
	log       *logger.Logger
	now       func() time.Time
}

func NewCampaignBuilder(scorer ProductScorer, audience AudienceGenerator, creative CreativeClient, simulator *ResponseSimulator, defaults CampaignOptions, log *logger.Logger) *CampaignBuilder {
	if defaults.TopK <= 0 {
		defaults.TopK = 3
	}
	if defaults.VariantsPerChannel <= 0 {
		defaults.VariantsPerChannel = 3
	}
	if defaults.AudienceSize <= 0 {
		defaults.AudienceSize = 12
	}
	if defaults.Concurrency <= 0 {
		defaults.Concurrency = 4
	}
	if len(defaults.Channels) == 0 {
		defaults.Channels = models.AllChannels
	}
	return &CampaignBuilder{
		scorer:    scorer,
		audience:  audience,
		creative:  creative,
		simulator: simulator,
		defaults:  defaults,
		log:       logger.OrNop(log),
		now:       time.Now,
	}
}

// WithRecorder attaches a run recorder and returns the builder.
func (b *CampaignBuilder) WithRecorder(r RunRecorder) *CampaignBuilder {
	b.recorder = r
	return b
}

// Backend names the creative backend chosen for this process.
func (b *CampaignBuilder) Backend() string { return b.creative.Name() }

// ScoringMode names the active product scorer.
func (b *CampaignBuilder) ScoringMode() string { return b.scorer.Mode() }

// Defaults returns the options used when a run leaves a field unset.
func (b *CampaignBuilder) Defaults() CampaignOptions { return b.defaults }

func (b *CampaignBuilder) merge(opts CampaignOptions) CampaignOptions {
	d := b.defaults
	if opts.Niche != "" {
		d.Niche = opts.Niche
	}
	if opts.TopK > 0 {
		d.TopK = opts.TopK
	}
	if opts.VariantsPerChannel > 0 {
		d.VariantsPerChannel = opts.VariantsPerChannel
	}
	if opts.AudienceSize > 0 {
		d.AudienceSize = opts.AudienceSize
	}
	if opts.Concurrency > 0 {
		d.Concurrency = opts.Concurrency
	}
	if len(opts.Trends) > 0 {
		d.Trends = opts.Trends
	}
	if len(opts.Channels) > 0 {
		d.Channels = opts.Channels
	}
	return d
}

// TopProducts scores the catalog and returns the best k without generating ads.
func (b *CampaignBuilder) TopProducts(ctx context.Context, catalog []models.Product, k int) ([]models.ScoredProduct, error) {
	if len(catalog) == 0 {
		return nil, models.ErrEmptyCatalog
	}
	if k <= 0 {
		k = b.defaults.TopK
	}
	return SelectTop(ctx, b.scorer, catalog, k)
}

// Run executes one campaign build over an already parsed catalog.
func (b *CampaignBuilder) Run(ctx context.Context, catalog []models.Product, opts CampaignOptions) (*CampaignResult, error) {
	opts = b.merge(opts)
	runID := uuid.NewString()
	started := b.now()
	log := b.log.With("run_id", runID)

	res, err := b.run(ctx, log, runID, catalog, opts)

	if b.recorder != nil {
		stat := CampaignRunStat{
			RunID:       runID,
			Timestamp:   started,
			Backend:     b.creative.Name(),
			ScoringMode: b.scorer.Mode(),
			Duration:    b.now().Sub(started),
		}
		if err != nil {
			stat.Error = err.Error()
		} else {
			stat.Products = res.Document.NTopProductsUsed
			stat.AdsGenerated = res.Document.NAllAdsGenerated
			stat.FallbackAds = res.Document.NFallbackAds
		}
		b.recorder.RecordCampaignRun(stat)
	}
	return res, err
}

func (b *CampaignBuilder) run(ctx context.Context, log *logger.Logger, runID string, catalog []models.Product, opts CampaignOptions) (*CampaignResult, error) {
	state := StateInit
	advance := func(next BuildState, kv ...interface{}) {
		log.Info("campaign state", append([]interface{}{"from", state, "to", next}, kv...)...)
		state = next
	}

	if len(catalog) == 0 {
		return nil, models.ErrEmptyCatalog
	}
	top, err := SelectTop(ctx, b.scorer, catalog, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("select top products: %w", err)
	}
	advance(StateScored, "catalog", len(catalog), "top", len(top), "mode", b.scorer.Mode())

	consumers, err := b.audience.Generate(opts.AudienceSize)
	if err != nil {
		return nil, fmt.Errorf("generate audience: %w", err)
	}
	advance(StateAudienceReady, "consumers", len(consumers), "strategy", b.audience.Strategy())

	advance(StateGenerating, "backend", b.creative.Name(), "concurrency", opts.Concurrency)
	all, err := b.generate(ctx, top, consumers, opts)
	if err != nil {
		return nil, err
	}
	advance(StateGenerated, "ads", len(all))

	best := PickBestPerChannel(all)
	examples := TopOverall(all, sampleExampleCount)
	advance(StateSelected, "best", len(best), "examples", len(examples))

	doc := BuildDocument(DocumentInput{
		RunID:       runID,
		GeneratedAt: b.now(),
		Niche:       opts.Niche,
		Backend:     b.creative.Name(),
		ScoringMode: b.scorer.Mode(),
		CatalogSize: len(catalog),
		TopProducts: top,
		AllAds:      all,
		BestAds:     best,
		Examples:    examples,
		Consumers:   consumers,
		Trends:      opts.Trends,
	})
	advance(StateAssembled, "campaigns", len(doc.Campaigns), "fallback_ads", doc.NFallbackAds)

	return &CampaignResult{
		Document:    doc,
		TopProducts: top,
		Audience:    consumers,
		AllAds:      all,
		BestAds:     best,
		Examples:    examples,
	}, nil
}

// generate requests variants for every (product, channel) pair in parallel.
// Each task owns one slot, so the flattened result is always in
// products -> channels -> variants order. Evaluation happens afterwards in
// that same order to keep the simulator's random stream reproducible.
func (b *CampaignBuilder) generate(ctx context.Context, top []models.ScoredProduct, consumers []models.ConsumerProfile, opts CampaignOptions) ([]models.ScoredAd, error) {
	audience := SummarizeAudience(consumers)
	channels := opts.Channels
	slots := make([][]models.AdVariant, len(top)*len(channels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for pi, sp := range top {
		for ci, ch := range channels {
			slot := pi*len(channels) + ci
			product, channel := sp.Product, ch
			g.Go(func() error {
				req := BuildGenerationRequest(product, channel, audience, opts.Trends, opts.VariantsPerChannel)
				variants, err := b.creative.GenerateVariants(gctx, req)
				if err != nil {
					return fmt.Errorf("generate variants for %q on %s: %w", product.Name, channel, err)
				}
				slots[slot] = variants
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]models.ScoredAd, 0, len(slots)*opts.VariantsPerChannel)
	for pi, sp := range top {
		for ci, ch := range channels {
			for _, v := range slots[pi*len(channels)+ci] {
				click, purchase, err := b.simulator.EvaluateOnAudience(v, sp.Product, consumers)
				if err != nil {
					return nil, err
				}
				all = append(all, models.ScoredAd{
					Product:                sp.Product,
					ProductIndex:           sp.Index,
					Channel:                ch,
					Variant:                v,
					AvgClickProbability:    roundTo(click, 4),
					AvgPurchaseProbability: roundTo(purchase, 4),
					Order:                  len(all),
				})
			}
		}
	}
	return all, nil
}

type bestKey struct {
	product int
	channel models.Channel
}

// PickBestPerChannel keeps the highest-click ad for every (product, channel)
// pair. Ties go to the ad seen first; output follows first appearance.
func PickBestPerChannel(ads []models.ScoredAd) []models.ScoredAd {
	best := map[bestKey]int{}
	var order []bestKey
	for i, ad := range ads {
		key := bestKey{product: ad.ProductIndex, channel: ad.Channel}
		cur, ok := best[key]
		if !ok {
			best[key] = i
			order = append(order, key)
			continue
		}
		if ad.AvgClickProbability > ads[cur].AvgClickProbability {
			best[key] = i
		}
	}

	out := make([]models.ScoredAd, 0, len(order))
	for _, key := range order {
		out = append(out, ads[best[key]])
	}
	return out
}

// TopOverall returns the k highest-click ads, ties in enumeration order.
func TopOverall(ads []models.ScoredAd, k int) []models.ScoredAd {
	sorted := append([]models.ScoredAd(nil), ads...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AvgClickProbability > sorted[j].AvgClickProbability
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// DocumentInput is everything BuildDocument needs.
type DocumentInput struct {
	RunID       string
	GeneratedAt time.Time
	Niche       string
	Backend     string
	ScoringMode string
	CatalogSize int
	TopProducts []models.ScoredProduct
	AllAds      []models.ScoredAd
	BestAds     []models.ScoredAd
	Examples    []models.ScoredAd
	Consumers   []models.ConsumerProfile
	Trends      []string
}

// BuildDocument assembles the exported campaign document. Campaign entries
// are the best-per-(product, channel) ads; those also among the overall
// examples are flagged.
func BuildDocument(in DocumentInput) *models.CampaignDocument {
	segments := Segments(in.Consumers)
	targeting := models.Targeting{
		AudienceSegment: dominantSegment(in.Consumers),
		Segments:        segments,
		ConsumerCount:   len(in.Consumers),
	}

	sample := map[int]bool{}
	for _, ex := range in.Examples {
		sample[ex.Order] = true
	}

	doc := &models.CampaignDocument{
		Platform:           campaignPlatform,
		Description:        campaignDescription,
		Niche:              in.Niche,
		RunID:              in.RunID,
		GeneratedAt:        in.GeneratedAt.UTC(),
		GenerationBackend:  in.Backend,
		ScoringMode:        in.ScoringMode,
		NProductsInCatalog: in.CatalogSize,
		NTopProductsUsed:   len(in.TopProducts),
		NAllAdsGenerated:   len(in.AllAds),
		NBestAds:           len(in.BestAds),
		NExampleAdsShown:   len(in.Examples),
		TopProducts:        make([]models.TopProductEntry, 0, len(in.TopProducts)),
		Campaigns:          make([]models.CampaignEntry, 0, len(in.BestAds)),
		Examples:           make([]models.CampaignEntry, 0, len(in.Examples)),
	}

	if in.Backend != models.SourceMock {
		for _, ad := range in.AllAds {
			if ad.Variant.Source == models.SourceMock {
				doc.NFallbackAds++
			}
		}
	}

	for _, sp := range in.TopProducts {
		doc.TopProducts = append(doc.TopProducts, models.TopProductEntry{
			Name:           sp.Product.Name,
			Category:       sp.Product.Category,
			Price:          sp.Product.Price,
			Score:          roundTo(sp.Score, 4),
			Recommendation: sp.Recommendation,
		})
	}
	for _, ad := range in.BestAds {
		doc.Campaigns = append(doc.Campaigns, campaignEntry(ad, targeting, in.Trends, sample[ad.Order]))
	}
	for _, ad := range in.Examples {
		doc.Examples = append(doc.Examples, campaignEntry(ad, targeting, in.Trends, true))
	}
	return doc
}

func campaignEntry(ad models.ScoredAd, targeting models.Targeting, trends []string, sample bool) models.CampaignEntry {
	return models.CampaignEntry{
		Product: models.ProductSummary{
			Name:     ad.Product.Name,
			Category: ad.Product.Category,
			Price:    ad.Product.Price,
		},
		Channel: ad.Channel,
		Ad: models.AdCopy{
			Headline: ad.Variant.Headline,
			Text:     ad.Variant.Text,
			CTA:      ad.Variant.CTA,
			Notes:    ad.Variant.Notes,
			Source:   ad.Variant.Source,
		},
		Evaluation: models.Evaluation{
			ClickProbability:    ad.AvgClickProbability,
			PurchaseProbability: ad.AvgPurchaseProbability,
		},
		Targeting: targeting,
		ImageRecommendation: models.ImageRecommendation{
			Status:      "placeholder",
			Description: imageDescription(ad.Product, ad.Channel, trends),
		},
		IsSampleExample: sample,
	}
}

func imageDescription(p models.Product, channel models.Channel, trends []string) string {
	style := "современный минимализм"
	if len(trends) > 0 {
		style = strings.Join(trends, ", ")
	}
	return fmt.Sprintf("Рекламный баннер для товара '%s' (категория: %s) в стиле '%s'. "+
		"Чистый фон, акцент на товаре, читаемый текст, формат под канал %s.", p.Name, p.Category, style, channel)
}

func dominantSegment(consumers []models.ConsumerProfile) string {
	labels := make([]string, 0, len(consumers))
	for _, c := range consumers {
		labels = append(labels, c.SegmentLabel)
	}
	if top := mostFrequent(labels, 1); len(top) == 1 {
		return top[0]
	}
	return ""
}
