package models

import "time"

// Channel is one of the fixed advertising surfaces.
type Channel string

const (
	ChannelTelegram  Channel = "telegram"
	ChannelVK        Channel = "vk"
	ChannelYandexAds Channel = "yandex_ads"
)

// AllChannels is the fixed enumeration order used for generation and tie-breaks.
var AllChannels = []Channel{ChannelTelegram, ChannelVK, ChannelYandexAds}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelTelegram, ChannelVK, ChannelYandexAds:
		return true
	}
	return false
}

// Variant sources
const (
	SourceRemote = "remote"
	SourceMock   = "mock"
)

// Product is a normalized catalog record.
type Product struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Margin      *float64 `json:"margin,omitempty"`      // percentage, nil when absent
	MarketCost  *float64 `json:"market_cost,omitempty"` // purchase cost, nil when absent
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// ScoredProduct attaches a fitness score to a catalog record without touching it.
type ScoredProduct struct {
	Product        Product `json:"product"`
	Score          float64 `json:"score"`
	Recommendation string  `json:"recommendation"`
	Index          int     `json:"index"` // position in the source catalog
}

// ProductScore is the result of scoring one product.
type ProductScore struct {
	Score          float64            `json:"score"`
	Components     map[string]float64 `json:"components"`
	Recommendation string             `json:"recommendation"`
}

// ConsumerProfile is one synthetic audience member.
type ConsumerProfile struct {
	ID               string   `json:"id"`
	AgeRange         string   `json:"age_range"`
	Interests        []string `json:"interests"`
	Behavior         []string `json:"behavior"`
	SegmentLabel     string   `json:"segment_label"`
	PriceSensitivity float64  `json:"price_sensitivity"`
}

// AdVariant is one candidate ad copy for a product on a channel.
type AdVariant struct {
	Channel  Channel `json:"channel"`
	Headline string  `json:"headline"`
	Text     string  `json:"text"`
	CTA      string  `json:"cta"`
	Notes    string  `json:"notes"`
	Source   string  `json:"source"` // remote or mock
}

// FullText joins the parts the audience actually reads.
func (v AdVariant) FullText() string {
	return v.Headline + "\n" + v.Text + "\n" + v.CTA
}

// ScoredAd is a variant evaluated against the audience.
type ScoredAd struct {
	Product                Product   `json:"product"`
	ProductIndex           int       `json:"product_index"` // catalog position of Product
	Channel                Channel   `json:"channel"`
	Variant                AdVariant `json:"variant"`
	AvgClickProbability    float64   `json:"avg_click_probability"`
	AvgPurchaseProbability float64   `json:"avg_purchase_probability"`
	Order                  int       `json:"order"` // products -> channels -> variants enumeration index
}

// GenerationProduct is the product part of a text-generation request.
type GenerationProduct struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    float64  `json:"price"`
	Margin   *float64 `json:"margin"`
	Tags     []string `json:"tags"`
	Features []string `json:"features"`
}

// AudienceSummary is the audience part of a text-generation request.
type AudienceSummary struct {
	AgeRange  string   `json:"age_range"`
	Interests []string `json:"interests"`
	Behavior  []string `json:"behavior"`
}

// GenerationRequest is sent to the text-generation service as JSON.
type GenerationRequest struct {
	Product         GenerationProduct `json:"product"`
	AudienceProfile AudienceSummary   `json:"audience_profile"`
	Channel         Channel           `json:"channel"`
	Trends          []string          `json:"trends"`
	NVariants       int               `json:"n_variants"`
}

// GenerationResponse is the strict JSON the text-generation service must return.
type GenerationResponse struct {
	Variants []GeneratedVariant `json:"variants"`
}

// GeneratedVariant is one raw variant as returned by the service.
type GeneratedVariant struct {
	Channel  string `json:"channel"`
	Headline string `json:"headline"`
	Text     string `json:"text"`
	CTA      string `json:"cta"`
	Notes    string `json:"notes"`
}

// CampaignDocument is the terminal artifact of one run.
type CampaignDocument struct {
	Platform           string            `json:"platform"`
	Description        string            `json:"description"`
	Niche              string            `json:"niche"`
	RunID              string            `json:"run_id"`
	GeneratedAt        time.Time         `json:"generated_at"`
	GenerationBackend  string            `json:"generation_backend"`
	ScoringMode        string            `json:"scoring_mode"`
	NProductsInCatalog int               `json:"n_products_in_catalog"`
	NTopProductsUsed   int               `json:"n_top_products_used"`
	NAllAdsGenerated   int               `json:"n_all_ads_generated"`
	NBestAds           int               `json:"n_best_ads"`
	NExampleAdsShown   int               `json:"n_example_ads_shown"`
	NFallbackAds       int               `json:"n_fallback_ads"` // ads produced by the mock while a remote backend was active
	TopProducts        []TopProductEntry `json:"top_products"`
	Campaigns          []CampaignEntry   `json:"campaigns"`
	Examples           []CampaignEntry   `json:"examples"`
}

// TopProductEntry summarizes a selected product in the document.
type TopProductEntry struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Price          float64 `json:"price"`
	Score          float64 `json:"score"`
	Recommendation string  `json:"recommendation"`
}

// CampaignEntry wraps a selected ScoredAd for export.
type CampaignEntry struct {
	Product             ProductSummary      `json:"product"`
	Channel             Channel             `json:"channel"`
	Ad                  AdCopy              `json:"ad"`
	Evaluation          Evaluation          `json:"evaluation"`
	Targeting           Targeting           `json:"targeting"`
	ImageRecommendation ImageRecommendation `json:"image_recommendation"`
	IsSampleExample     bool                `json:"is_sample_example"`
}

// ProductSummary is the product block of a campaign entry.
type ProductSummary struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// AdCopy is the ad block of a campaign entry.
type AdCopy struct {
	Headline string `json:"headline"`
	Text     string `json:"text"`
	CTA      string `json:"cta"`
	Notes    string `json:"notes"`
	Source   string `json:"source"`
}

// Evaluation holds simulated response for a campaign entry.
type Evaluation struct {
	ClickProbability    float64 `json:"click_probability"`
	PurchaseProbability float64 `json:"purchase_probability"`
}

// Targeting describes the synthetic audience an entry was evaluated on.
type Targeting struct {
	AudienceSegment string   `json:"audience_segment"`
	Segments        []string `json:"segments"`
	ConsumerCount   int      `json:"consumer_count"`
}

// ImageRecommendation is a textual placeholder; no images are generated.
type ImageRecommendation struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}
