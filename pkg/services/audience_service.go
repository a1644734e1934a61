package services

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/models"

	"github.com/google/uuid"
)

// Behavior tags the response simulator reacts to.
const (
	BehaviorDiscountReactive = "реагирует на скидки"
	BehaviorImpulsive        = "импульсивные покупки"
	BehaviorDeliveryValue    = "ценит удобную доставку"
	BehaviorDeliveryMatters  = "важна доставка"
	BehaviorTracksNovelty    = "следит за новинками"
	BehaviorReadsReviews     = "читает отзывы"
	BehaviorComparesPrices   = "сравнивает цены"
	BehaviorPaysForQuality   = "готов платить за качество"
	BehaviorDesignReactive   = "реагирует на RGB/дизайн"
	BehaviorValuesReliable   = "ценит надежность"
	BehaviorDislikesClutter  = "не любит перегруженный текст"
	BehaviorShopsOnline      = "часто покупает онлайн"
)

// Segment labels.
const (
	SegmentBargainYouth = "Молодой охотник за скидками"
	SegmentBusyParent   = "Занятый родитель"
	SegmentPragmatic    = "Прагматичный офисный"
	SegmentGamer        = "Геймер"
	SegmentMinimalist   = "Любитель минимализма"
	SegmentConscious    = "Осознанный покупатель"
)

// SegmentPriceSensitivity is the fixed segment -> price sensitivity table.
var SegmentPriceSensitivity = map[string]float64{
	SegmentBargainYouth: 0.9,
	SegmentBusyParent:   0.7,
	SegmentPragmatic:    0.6,
	SegmentGamer:        0.5,
	SegmentMinimalist:   0.5,
	SegmentConscious:    0.4,
}

const defaultPriceSensitivity = 0.6

// PriceSensitivityFor returns the table value, or 0.6 for unknown segments.
func PriceSensitivityFor(segment string) float64 {
	if v, ok := SegmentPriceSensitivity[segment]; ok {
		return v
	}
	return defaultPriceSensitivity
}

// AudienceGenerator produces a synthetic consumer set of size n.
type AudienceGenerator interface {
	Strategy() string
	Generate(n int) ([]models.ConsumerProfile, error)
}

// NewAudienceGenerator picks the strategy named in the configuration.
func NewAudienceGenerator(cfg *config.Config) AudienceGenerator {
	if cfg.AudienceStrategy == config.AudienceRandom {
		return NewRandomAudience(cfg.AudienceSeed)
	}
	return NewRosterAudience()
}

func validateAudienceSize(n int) error {
	if n < 1 {
		return fmt.Errorf("audience size must be at least 1, got %d: %w", n, models.ErrInvalidArgument)
	}
	return nil
}

// RosterAudience cycles a curated list of archetypes.
type RosterAudience struct {
	archetypes []models.ConsumerProfile
}

func NewRosterAudience() *RosterAudience {
	return &RosterAudience{archetypes: []models.ConsumerProfile{
		{
			ID:           "disc_young",
			AgeRange:     "18-24",
			Interests:    []string{"скидки", "маркетплейсы", "гаджеты"},
			Behavior:     []string{BehaviorDiscountReactive, BehaviorShopsOnline, BehaviorImpulsive},
			SegmentLabel: SegmentBargainYouth,
		},
		{
			ID:           "pragmatic_25_35",
			AgeRange:     "25-35",
			Interests:    []string{"электроника", "работа из дома", "логистика"},
			Behavior:     []string{BehaviorDeliveryValue, BehaviorComparesPrices},
			SegmentLabel: SegmentPragmatic,
		},
		{
			ID:           "eco_lover",
			AgeRange:     "25-40",
			Interests:    []string{"экология", "долговечные вещи"},
			Behavior:     []string{BehaviorReadsReviews, BehaviorPaysForQuality},
			SegmentLabel: SegmentConscious,
		},
		{
			ID:           "gamer",
			AgeRange:     "18-30",
			Interests:    []string{"игры", "геймерская периферия", "стримы"},
			Behavior:     []string{BehaviorDesignReactive, BehaviorTracksNovelty},
			SegmentLabel: SegmentGamer,
		},
		{
			ID:           "parent",
			AgeRange:     "30-45",
			Interests:    []string{"товары для дома", "семья"},
			Behavior:     []string{BehaviorValuesReliable, BehaviorDeliveryMatters},
			SegmentLabel: SegmentBusyParent,
		},
		{
			ID:           "minimalist",
			AgeRange:     "20-35",
			Interests:    []string{"минимализм", "чистый дизайн"},
			Behavior:     []string{BehaviorDislikesClutter},
			SegmentLabel: SegmentMinimalist,
		},
	}}
}

func (a *RosterAudience) Strategy() string { return config.AudienceRoster }

// Generate repeats the roster until n profiles exist. Repeats get a numeric
// suffix ("gamer_2") so IDs stay unique within the audience.
func (a *RosterAudience) Generate(n int) ([]models.ConsumerProfile, error) {
	if err := validateAudienceSize(n); err != nil {
		return nil, err
	}
	out := make([]models.ConsumerProfile, 0, n)
	for i := 0; i < n; i++ {
		base := a.archetypes[i%len(a.archetypes)]
		p := cloneProfile(base)
		if round := i / len(a.archetypes); round > 0 {
			p.ID = base.ID + "_" + strconv.Itoa(round+1)
		}
		p.PriceSensitivity = PriceSensitivityFor(p.SegmentLabel)
		out = append(out, p)
	}
	return out, nil
}

// RandomAudience samples profiles from fixed pools. The same seed always
// yields the same audience, IDs included.
type RandomAudience struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	ages      []string
	interests []string
	behaviors []string
	segments  []string
}

func NewRandomAudience(seed int64) *RandomAudience {
	return &RandomAudience{
		rnd:  rand.New(rand.NewSource(seed)),
		ages: []string{"18-24", "25-34", "35-44", "45-54"},
		interests: []string{
			"гаджеты", "игры", "геймерская периферия", "скидки", "экология",
			"минимализм", "товары для дома", "спорт", "путешествия", "технологии",
		},
		behaviors: []string{
			BehaviorDiscountReactive, BehaviorImpulsive, BehaviorDeliveryValue,
			BehaviorTracksNovelty, BehaviorReadsReviews, BehaviorComparesPrices,
			BehaviorPaysForQuality, BehaviorShopsOnline,
		},
		segments: []string{
			SegmentBargainYouth, SegmentBusyParent, SegmentPragmatic,
			SegmentGamer, SegmentMinimalist, SegmentConscious,
		},
	}
}

func (a *RandomAudience) Strategy() string { return config.AudienceRandom }

func (a *RandomAudience) Generate(n int) ([]models.ConsumerProfile, error) {
	if err := validateAudienceSize(n); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.ConsumerProfile, 0, n)
	for i := 0; i < n; i++ {
		id, err := uuid.NewRandomFromReader(a.rnd)
		if err != nil {
			return nil, fmt.Errorf("generate consumer id: %w", err)
		}
		segment := a.segments[a.rnd.Intn(len(a.segments))]
		out = append(out, models.ConsumerProfile{
			ID:               "rnd_" + id.String(),
			AgeRange:         a.ages[a.rnd.Intn(len(a.ages))],
			Interests:        a.sample(a.interests, 2+a.rnd.Intn(2)),
			Behavior:         a.sample(a.behaviors, 1+a.rnd.Intn(2)),
			SegmentLabel:     segment,
			PriceSensitivity: PriceSensitivityFor(segment),
		})
	}
	return out, nil
}

// sample picks k distinct items, keeping pool order.
func (a *RandomAudience) sample(pool []string, k int) []string {
	idx := a.rnd.Perm(len(pool))[:k]
	sort.Ints(idx)
	out := make([]string, k)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}

func cloneProfile(p models.ConsumerProfile) models.ConsumerProfile {
	p.Interests = append([]string(nil), p.Interests...)
	p.Behavior = append([]string(nil), p.Behavior...)
	return p
}

// SummarizeAudience condenses an audience into the profile sent to the text
// generator: the most common age range plus the three most frequent
// interests and behaviors. Ties keep first-seen order.
func SummarizeAudience(consumers []models.ConsumerProfile) models.AudienceSummary {
	var ages, interests, behaviors []string
	for _, c := range consumers {
		ages = append(ages, c.AgeRange)
		interests = append(interests, c.Interests...)
		behaviors = append(behaviors, c.Behavior...)
	}
	summary := models.AudienceSummary{
		Interests: mostFrequent(interests, 3),
		Behavior:  mostFrequent(behaviors, 3),
	}
	if top := mostFrequent(ages, 1); len(top) == 1 {
		summary.AgeRange = top[0]
	}
	return summary
}

// Segments lists distinct segment labels in first-seen order.
func Segments(consumers []models.ConsumerProfile) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range consumers {
		if c.SegmentLabel != "" && !seen[c.SegmentLabel] {
			seen[c.SegmentLabel] = true
			out = append(out, c.SegmentLabel)
		}
	}
	return out
}

func mostFrequent(items []string, k int) []string {
	counts := map[string]int{}
	var order []string
	for _, it := range items {
		if it == "" {
			continue
		}
		if counts[it] == 0 {
			order = append(order, it)
		}
		counts[it]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > k {
		order = order[:k]
	}
	return order
}
