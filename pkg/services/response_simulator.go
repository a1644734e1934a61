package services

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/models"
)

// Simulation constants. Probabilities are absolute, not relative.
const (
	baselineCTR             = 0.03
	discountBoost           = 0.07
	discountReactiveBoost   = 0.08
	discountSensitivityGain = 0.02
	scarcityBoost           = 0.05
	scarcityImpulsiveBoost  = 0.03
	deliveryBoost           = 0.05
	noveltyBoost            = 0.04
	socialProofBoost        = 0.04
	gamingBoost             = 0.06
	lengthPenalty           = 0.01
	minTextLength           = 40
	maxTextLength           = 600
	minimalistEmojiPenalty  = 0.03
	minimalistEmojiLimit    = 3
	jitterAmplitude         = 0.015
	purchaseFactor          = 0.7
)

var (
	gamingInterests     = []string{"игры", "геймерская периферия"}
	minimalistInterests = []string{"минимализм"}
)

// ResponseSimulator estimates click and purchase probability of an ad for a
// synthetic consumer. The random source is injected so runs are reproducible.
type ResponseSimulator struct {
	signals config.ScoringKeywords
	emoji   string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewResponseSimulator creates a simulator. A nil rnd seeds from the clock.
func NewResponseSimulator(keywords *config.ScoringKeywords, rnd *rand.Rand) *ResponseSimulator {
	if keywords == nil {
		keywords = config.DefaultScoringKeywords()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ResponseSimulator{signals: *keywords, emoji: keywords.Signals.Emoji, rnd: rnd}
}

// Evaluate scores one consumer's reaction to the ad text. Both results are in
// [0,1] and purchase never exceeds click.
func (s *ResponseSimulator) Evaluate(text string, _ models.Product, c models.ConsumerProfile) (click, purchase float64) {
	t := strings.ToLower(text)
	sig := s.signals.Signals

	click = baselineCTR
	if containsAny(t, sig.Discount) {
		click += discountBoost + discountSensitivityGain*clamp01(c.PriceSensitivity)
		if hasTag(c.Behavior, BehaviorDiscountReactive) {
			click += discountReactiveBoost
		}
	}
	if containsAny(t, sig.Scarcity) {
		click += scarcityBoost
		if hasTag(c.Behavior, BehaviorImpulsive) {
			click += scarcityImpulsiveBoost
		}
	}
	if containsAny(t, sig.Delivery) && (hasTag(c.Behavior, BehaviorDeliveryValue) || hasTag(c.Behavior, BehaviorDeliveryMatters)) {
		click += deliveryBoost
	}
	if containsAny(t, sig.Novelty) && hasTag(c.Behavior, BehaviorTracksNovelty) {
		click += noveltyBoost
	}
	if containsAny(t, sig.SocialProof) && hasTag(c.Behavior, BehaviorReadsReviews) {
		click += socialProofBoost
	}
	if containsAny(t, sig.Gaming) && hasAnyTag(c.Interests, gamingInterests) {
		click += gamingBoost
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < minTextLength || n > maxTextLength {
		click -= lengthPenalty
	}
	if hasAnyTag(c.Interests, minimalistInterests) && s.countEmoji(text) > minimalistEmojiLimit {
		click -= minimalistEmojiPenalty
	}

	click = clamp01(click + s.jitter())
	purchase = click * purchaseFactor
	return click, purchase
}

// EvaluateOnAudience averages Evaluate over every consumer.
func (s *ResponseSimulator) EvaluateOnAudience(v models.AdVariant, p models.Product, consumers []models.ConsumerProfile) (avgClick, avgPurchase float64, err error) {
	if len(consumers) == 0 {
		return 0, 0, fmt.Errorf("evaluate %q on %s: %w", p.Name, v.Channel, models.ErrAudienceEmpty)
	}
	text := v.FullText()
	clicks := make([]float64, len(consumers))
	purchases := make([]float64, len(consumers))
	for i, c := range consumers {
		clicks[i], purchases[i] = s.Evaluate(text, p, c)
	}
	return calculateMean(clicks), calculateMean(purchases), nil
}

func (s *ResponseSimulator) jitter() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.rnd.Float64()*2 - 1) * jitterAmplitude
}

func (s *ResponseSimulator) countEmoji(text string) int {
	n := 0
	for _, r := range text {
		if strings.ContainsRune(s.emoji, r) {
			n++
		}
	}
	return n
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(strings.TrimSpace(t), want) {
			return true
		}
	}
	return false
}

func hasAnyTag(tags []string, wants []string) bool {
	for _, w := range wants {
		if hasTag(tags, w) {
			return true
		}
	}
	return false
}
