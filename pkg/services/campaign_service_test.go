package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"genai-campaign-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endToEndCatalog() []models.Product {
	return []models.Product{
		{Name: "A", Price: 1000, Margin: ptr(50), Tags: []string{"bestseller"}},
		{Name: "B", Price: 500, Margin: ptr(10), Tags: []string{}},
	}
}

func newTestBuilder(creative CreativeClient) *CampaignBuilder {
	return NewCampaignBuilder(
		NewKeywordScorer(nil),
		NewRosterAudience(),
		creative,
		NewResponseSimulator(nil, rand.New(rand.NewSource(7))),
		CampaignOptions{Niche: "электроника", TopK: 1, VariantsPerChannel: 1, AudienceSize: 12},
		nil,
	)
}

type recorderStub struct {
	mu    sync.Mutex
	stats []CampaignRunStat
}

func (r *recorderStub) RecordCampaignRun(s CampaignRunStat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, s)
}

func TestCampaignEndToEndOneVariant(t *testing.T) {
	rec := &recorderStub{}
	b := newTestBuilder(NewMockCreativeClient()).WithRecorder(rec)

	res, err := b.Run(context.Background(), endToEndCatalog(), CampaignOptions{})
	require.NoError(t, err)

	doc := res.Document
	require.Len(t, res.TopProducts, 1)
	assert.Equal(t, "A", res.TopProducts[0].Product.Name)
	assert.Equal(t, 2, doc.NProductsInCatalog)
	assert.Equal(t, 1, doc.NTopProductsUsed)
	assert.Equal(t, 3, doc.NAllAdsGenerated)
	assert.Equal(t, 3, doc.NBestAds)
	assert.Equal(t, 2, doc.NExampleAdsShown)
	assert.Equal(t, "mock", doc.GenerationBackend)
	assert.Equal(t, "keyword", doc.ScoringMode)
	assert.Equal(t, "GENAI-4", doc.Platform)
	assert.NotEmpty(t, doc.RunID)
	assert.Zero(t, doc.NFallbackAds)

	require.Len(t, doc.Campaigns, 3)
	flagged := 0
	for i, entry := range doc.Campaigns {
		assert.Equal(t, models.AllChannels[i], entry.Channel)
		assert.Equal(t, "A", entry.Product.Name)
		assert.Equal(t, "placeholder", entry.ImageRecommendation.Status)
		assert.Contains(t, entry.ImageRecommendation.Description, "'A'")
		assert.Equal(t, 12, entry.Targeting.ConsumerCount)
		assert.Len(t, entry.Targeting.Segments, 6)
		assert.LessOrEqual(t, entry.Evaluation.PurchaseProbability, entry.Evaluation.ClickProbability)
		if entry.IsSampleExample {
			flagged++
		}
	}
	assert.Equal(t, 2, flagged)

	for _, ad := range res.AllAds {
		assert.Equal(t, "A", ad.Product.Name, "every ad must come from the top selection")
	}

	require.Len(t, rec.stats, 1)
	assert.Equal(t, doc.RunID, rec.stats[0].RunID)
	assert.Equal(t, 3, rec.stats[0].AdsGenerated)
}

func TestCampaignEndToEndThreeVariants(t *testing.T) {
	b := newTestBuilder(NewMockCreativeClient())

	res, err := b.Run(context.Background(), endToEndCatalog(), CampaignOptions{VariantsPerChannel: 3})
	require.NoError(t, err)

	assert.Equal(t, 9, res.Document.NAllAdsGenerated)
	assert.Len(t, res.BestAds, 3)
	for i, ad := range res.AllAds {
		assert.Equal(t, i, ad.Order)
		assert.Equal(t, models.AllChannels[i/3], ad.Channel)
	}
}

func TestCampaignDocumentJSONSchema(t *testing.T) {
	res, err := newTestBuilder(NewMockCreativeClient()).Run(context.Background(), endToEndCatalog(), CampaignOptions{})
	require.NoError(t, err)

	data, err := json.Marshal(res.Document)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{"platform", "description", "niche", "n_products_in_catalog", "n_top_products_used", "n_all_ads_generated", "n_best_ads", "n_example_ads_shown", "campaigns"} {
		assert.Contains(t, m, key)
	}
	entry := m["campaigns"].([]interface{})[0].(map[string]interface{})
	for _, key := range []string{"product", "channel", "ad", "evaluation", "targeting", "image_recommendation", "is_sample_example"} {
		assert.Contains(t, entry, key)
	}
}

func TestCampaignIsReproducibleWithConcurrency(t *testing.T) {
	catalog := append(endToEndCatalog(), models.Product{Name: "C", Price: 2000, Margin: ptr(60), Tags: []string{"новинка"}})
	opts := CampaignOptions{TopK: 3, VariantsPerChannel: 3, Concurrency: 8}

	a, err := newTestBuilder(NewMockCreativeClient()).Run(context.Background(), catalog, opts)
	require.NoError(t, err)
	b, err := newTestBuilder(NewMockCreativeClient()).Run(context.Background(), catalog, opts)
	require.NoError(t, err)

	assert.Equal(t, a.AllAds, b.AllAds)
	assert.Equal(t, a.BestAds, b.BestAds)
}

func TestCampaignRejectsEmptyCatalog(t *testing.T) {
	rec := &recorderStub{}
	_, err := newTestBuilder(NewMockCreativeClient()).WithRecorder(rec).Run(context.Background(), nil, CampaignOptions{})
	assert.ErrorIs(t, err, models.ErrEmptyCatalog)
	require.Len(t, rec.stats, 1)
	assert.NotEmpty(t, rec.stats[0].Error)
}

type failingCreative struct{}

func (failingCreative) Name() string { return "broken" }
func (failingCreative) GenerateVariants(context.Context, models.GenerationRequest) ([]models.AdVariant, error) {
	return nil, errors.New("boom")
}

func TestCampaignSurfacesUnwrappedClientErrors(t *testing.T) {
	_, err := newTestBuilder(failingCreative{}).Run(context.Background(), endToEndCatalog(), CampaignOptions{})
	assert.ErrorContains(t, err, "boom")
}

func TestCampaignWithFallbackCountsDegradedAds(t *testing.T) {
	remote := NewRemoteCreativeClient(&fakeCompleter{err: errors.New("down")}, nil, 0.5, time.Second)
	b := newTestBuilder(NewFallbackCreativeClient(remote, nil, nil))

	res, err := b.Run(context.Background(), endToEndCatalog(), CampaignOptions{})
	require.NoError(t, err)
	assert.Equal(t, "remote+mock-fallback", res.Document.GenerationBackend)
	assert.Equal(t, 3, res.Document.NFallbackAds)
}

func scoredAd(product int, channel models.Channel, click float64, order int) models.ScoredAd {
	return models.ScoredAd{
		Product:                models.Product{Name: "P"},
		ProductIndex:           product,
		Channel:                channel,
		Variant:                models.AdVariant{Channel: channel},
		AvgClickProbability:    click,
		AvgPurchaseProbability: click * 0.7,
		Order:                  order,
	}
}

func TestPickBestPerChannel(t *testing.T) {
	ads := []models.ScoredAd{
		scoredAd(0, models.ChannelTelegram, 0.1, 0),
		scoredAd(0, models.ChannelVK, 0.2, 1),
		scoredAd(0, models.ChannelVK, 0.5, 2),
		scoredAd(0, models.ChannelVK, 0.3, 3),
		scoredAd(0, models.ChannelYandexAds, 0.05, 4),
	}

	best := PickBestPerChannel(ads)

	require.Len(t, best, 3)
	byChannel := map[models.Channel]models.ScoredAd{}
	for _, ad := range best {
		byChannel[ad.Channel] = ad
	}
	assert.Equal(t, 0.5, byChannel[models.ChannelVK].AvgClickProbability)
	assert.Equal(t, 2, byChannel[models.ChannelVK].Order)
}

func TestPickBestPerChannelTiesAndProducts(t *testing.T) {
	ads := []models.ScoredAd{
		scoredAd(0, models.ChannelVK, 0.4, 0),
		scoredAd(0, models.ChannelVK, 0.4, 1),
		scoredAd(1, models.ChannelVK, 0.1, 2),
	}

	best := PickBestPerChannel(ads)

	require.Len(t, best, 2)
	assert.Equal(t, 0, best[0].Order)
	assert.Equal(t, 1, best[1].ProductIndex)
}

func TestTopOverall(t *testing.T) {
	ads := []models.ScoredAd{
		scoredAd(0, models.ChannelTelegram, 0.3, 0),
		scoredAd(0, models.ChannelVK, 0.5, 1),
		scoredAd(0, models.ChannelYandexAds, 0.3, 2),
	}

	top := TopOverall(ads, 2)

	require.Len(t, top, 2)
	assert.Equal(t, 1, top[0].Order)
	assert.Equal(t, 0, top[1].Order)
	assert.Equal(t, 0, ads[0].Order, "input must not be reordered")
	assert.Len(t, TopOverall(ads[:1], 2), 1)
}

func TestBuildDocumentFromSameAdSet(t *testing.T) {
	ads := []models.ScoredAd{
		scoredAd(0, models.ChannelVK, 0.6, 0),
		scoredAd(0, models.ChannelVK, 0.5, 1),
		scoredAd(0, models.ChannelTelegram, 0.1, 2),
	}
	best := PickBestPerChannel(ads)
	examples := TopOverall(ads, 2)

	doc := BuildDocument(DocumentInput{
		Backend:   "mock",
		AllAds:    ads,
		BestAds:   best,
		Examples:  examples,
		Consumers: []models.ConsumerProfile{{SegmentLabel: SegmentGamer}, {SegmentLabel: SegmentGamer}, {SegmentLabel: SegmentConscious}},
	})

	require.Len(t, doc.Campaigns, 2)
	assert.True(t, doc.Campaigns[0].IsSampleExample)
	assert.False(t, doc.Campaigns[1].IsSampleExample)
	assert.Len(t, doc.Examples, 2)
	assert.Equal(t, 2, doc.NExampleAdsShown)
	assert.Equal(t, SegmentGamer, doc.Campaigns[0].Targeting.AudienceSegment)
	assert.Equal(t, []string{SegmentGamer, SegmentConscious}, doc.Campaigns[0].Targeting.Segments)
}

func TestTopProducts(t *testing.T) {
	b := newTestBuilder(NewMockCreativeClient())

	top, err := b.TopProducts(context.Background(), endToEndCatalog(), 0)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	_, err = b.TopProducts(context.Background(), nil, 1)
	assert.ErrorIs(t, err, models.ErrEmptyCatalog)
}
