package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScoringKeywords defines the substring buckets used by product scoring and
// response simulation. Matching is done on lower-cased text; the loader
// lower-cases every bucket entry.
type ScoringKeywords struct {
	Tags struct {
		Novelty    []string `yaml:"novelty"`
		Bestseller []string `yaml:"bestseller"`
		Visual     []string `yaml:"visual"`
	} `yaml:"tags"`

	Description struct {
		HighVisual []string `yaml:"high_visual"`
		Compact    []string `yaml:"compact"`
	} `yaml:"description"`

	// Anchor phrases for the semantic scorer, one positive and one negative per axis.
	Anchors struct {
		VisualPositive  string `yaml:"visual_positive"`
		VisualNegative  string `yaml:"visual_negative"`
		NoveltyPositive string `yaml:"novelty_positive"`
		NoveltyNegative string `yaml:"novelty_negative"`
		HypePositive    string `yaml:"hype_positive"`
		HypeNegative    string `yaml:"hype_negative"`
	} `yaml:"anchors"`

	// Ad text signals for the response simulator.
	Signals struct {
		Discount    []string `yaml:"discount"`
		Scarcity    []string `yaml:"scarcity"`
		Delivery    []string `yaml:"delivery"`
		Novelty     []string `yaml:"novelty"`
		SocialProof []string `yaml:"social_proof"`
		Gaming      []string `yaml:"gaming"`
		Emoji       string   `yaml:"emoji"`
	} `yaml:"signals"`
}

// DefaultScoringKeywords returns the built-in Russian/English buckets.
func DefaultScoringKeywords() *ScoringKeywords {
	k := &ScoringKeywords{}
	k.Tags.Novelty = []string{"новинка", "new", "2024", "2025"}
	k.Tags.Bestseller = []string{"bestseller", "хит", "топ", "hit"}
	k.Tags.Visual = []string{"яркий", "rgb", "подсветка", "стильный"}

	k.Description.HighVisual = []string{"rgb", "подсветк", "amoled", "oled", "4k", "игров", "геймер"}
	k.Description.Compact = []string{"компактн", "тонкий", "минимализм"}

	k.Anchors.VisualPositive = "query: яркий красочный насыщенный неоновый броский дизайн визуально привлекательный"
	k.Anchors.VisualNegative = "query: тусклый серый блеклый простой стандартный обычный скучный матовый"
	k.Anchors.NoveltyPositive = "query: новинка новый релиз последняя модель 2024 современный инновация тренд"
	k.Anchors.NoveltyNegative = "query: старый антиквариат устаревший ретро винтаж прошлый век история"
	k.Anchors.HypePositive = "query: бестселлер хит продаж топ популярный выбор покупателей высокий рейтинг"
	k.Anchors.HypeNegative = "query: средний неизвестный нишевый базовый запасная часть обыденный"

	k.Signals.Discount = []string{"скидк", "распродаж", "sale", "discount", "выгод"}
	k.Signals.Scarcity = []string{"успей", "пока есть", "количество ограничено", "последние", "limited"}
	k.Signals.Delivery = []string{"доставк", "delivery"}
	k.Signals.Novelty = []string{"новинк", "новый", "new"}
	k.Signals.SocialProof = []string{"отзыв", "покупатели выбирают", "оценили", "рейтинг", "reviews"}
	k.Signals.Gaming = []string{"игров", "геймер", "rgb", "подсветк"}
	k.Signals.Emoji = "🔥✨💥⭐😍👍👀💡🚀🎁"
	return k
}

// LoadScoringKeywords reads keyword buckets from a YAML file. A missing file
// (or empty path) yields the defaults; buckets absent from the file keep their
// default values.
func LoadScoringKeywords(path string) (*ScoringKeywords, error) {
	defaults := DefaultScoringKeywords()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults, nil
		}
		return nil, fmt.Errorf("read scoring keywords file: %w", err)
	}

	var loaded ScoringKeywords
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse scoring keywords yaml: %w", err)
	}
	loaded.fillFrom(defaults)
	loaded.lowerBuckets()
	return &loaded, nil
}

func (k *ScoringKeywords) fillFrom(d *ScoringKeywords) {
	fillList(&k.Tags.Novelty, d.Tags.Novelty)
	fillList(&k.Tags.Bestseller, d.Tags.Bestseller)
	fillList(&k.Tags.Visual, d.Tags.Visual)
	fillList(&k.Description.HighVisual, d.Description.HighVisual)
	fillList(&k.Description.Compact, d.Description.Compact)
	fillString(&k.Anchors.VisualPositive, d.Anchors.VisualPositive)
	fillString(&k.Anchors.VisualNegative, d.Anchors.VisualNegative)
	fillString(&k.Anchors.NoveltyPositive, d.Anchors.NoveltyPositive)
	fillString(&k.Anchors.NoveltyNegative, d.Anchors.NoveltyNegative)
	fillString(&k.Anchors.HypePositive, d.Anchors.HypePositive)
	fillString(&k.Anchors.HypeNegative, d.Anchors.HypeNegative)
	fillList(&k.Signals.Discount, d.Signals.Discount)
	fillList(&k.Signals.Scarcity, d.Signals.Scarcity)
	fillList(&k.Signals.Delivery, d.Signals.Delivery)
	fillList(&k.Signals.Novelty, d.Signals.Novelty)
	fillList(&k.Signals.SocialProof, d.Signals.SocialProof)
	fillList(&k.Signals.Gaming, d.Signals.Gaming)
	fillString(&k.Signals.Emoji, d.Signals.Emoji)
}

func (k *ScoringKeywords) lowerBuckets() {
	for _, b := range []*[]string{
		&k.Tags.Novelty, &k.Tags.Bestseller, &k.Tags.Visual,
		&k.Description.HighVisual, &k.Description.Compact,
		&k.Signals.Discount, &k.Signals.Scarcity, &k.Signals.Delivery,
		&k.Signals.Novelty, &k.Signals.SocialProof, &k.Signals.Gaming,
	} {
		for i, e := range *b {
			(*b)[i] = strings.ToLower(strings.TrimSpace(e))
		}
	}
	k.Signals.Emoji = strings.ToLower(k.Signals.Emoji)
}

func fillList(dst *[]string, def []string) {
	if len(*dst) == 0 {
		*dst = append([]string(nil), def...)
	}
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
