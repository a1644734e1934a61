package services

import (
	"context"
	"fmt"
	"strings"

	"genai-campaign-api/pkg/models"
)

const (
	yandexHeadlineMax = 56
	yandexTextMax     = 81
)

type adTemplate struct {
	headline string
	text     string
	cta      string
	notes    string
}

// MockCreativeClient renders fixed per-channel templates. It never touches
// the network and always returns exactly the requested number of variants.
type MockCreativeClient struct {
	templates map[models.Channel][]adTemplate
}

func NewMockCreativeClient() *MockCreativeClient {
	return &MockCreativeClient{templates: map[models.Channel][]adTemplate{
		models.ChannelTelegram: {
			{"%[1]s — забери, пока есть", "%[1]s: %[2]s. Успей, пока цена ещё держится 🔥", "Успеть взять сейчас", "кратко, эмоции, FOMO"},
			{"Новинка недели: %[1]s", "%[2]s. Количество ограничено, разбирают быстро ✨", "Смотреть в каталоге", "новизна и дефицит"},
			{"%[1]s со скидкой сегодня", "Только сегодня %[1]s дешевле. %[2]s 💥", "Перейти к покупке", "скидка и срочность"},
		},
		models.ChannelVK: {
			{"%[1]s: техника, которая радует каждый день", "%[1]s — выбор тех, кто ценит комфорт и качество. Особенности: %[2]s. Многие покупатели уже оценили этот вариант.", "Заказать онлайн", "длиннее текст, социальное доказательство"},
			{"Почему все выбирают %[1]s", "Мы собрали отзывы покупателей: %[1]s хвалят за то, что это %[2]s. Попробуйте сами и поделитесь впечатлениями.", "Узнать цену", "история и отзывы"},
			{"%[1]s для дома и работы", "Когда нужна надежная вещь, выбирают %[1]s. %[2]s. Быстрая доставка по всей стране.", "Смотреть характеристики", "практичность и доставка"},
		},
		models.ChannelYandexAds: {
			{"%[1]s — выгодная цена", "%[1]s: %[2]s. Быстрая доставка, заказать онлайн.", "Купить онлайн", "сухо, по делу, под поиск"},
			{"Купить %[1]s онлайн", "%[1]s со скидкой. Доставка по России.", "Заказать с доставкой", "ключевые слова: купить, скидка, доставка"},
			{"%[1]s в наличии", "%[2]s. Официальная гарантия, доставка.", "Смотреть в магазине", "наличие и гарантия"},
		},
	}}
}

func (c *MockCreativeClient) Name() string { return models.SourceMock }

// GenerateVariants rotates through the channel's templates. Notes carry the
// variant number so repeated templates stay distinguishable.
func (c *MockCreativeClient) GenerateVariants(_ context.Context, req models.GenerationRequest) ([]models.AdVariant, error) {
	return c.render(req, 0, variantCount(req.NVariants)), nil
}

// render produces variants [from, to) so callers can pad a partial result
// with the templates that follow it.
func (c *MockCreativeClient) render(req models.GenerationRequest, from, to int) []models.AdVariant {
	channel := req.Channel
	templates, ok := c.templates[channel]
	if !ok {
		channel = models.ChannelTelegram
		templates = c.templates[channel]
	}

	name := strings.TrimSpace(req.Product.Name)
	if name == "" {
		name = "Товар"
	}
	features := featuresText(req.Product.Features)

	out := make([]models.AdVariant, 0, to-from)
	for i := from; i < to; i++ {
		t := templates[i%len(templates)]
		v := models.AdVariant{
			Channel:  channel,
			Headline: fmt.Sprintf(t.headline, name, features),
			Text:     fmt.Sprintf(t.text, name, features),
			CTA:      t.cta,
			Notes:    fmt.Sprintf("Mock #%d: %s.", i+1, t.notes),
			Source:   models.SourceMock,
		}
		if channel == models.ChannelYandexAds {
			v.Headline = truncateRunes(v.Headline, yandexHeadlineMax)
			v.Text = truncateRunes(v.Text, yandexTextMax)
		}
		out = append(out, v)
	}
	return out
}

func featuresText(features []string) string {
	parts := make([]string, 0, len(features))
	for _, f := range features {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return "отличные характеристики"
	}
	return strings.Join(parts, ", ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-1])) + "…"
}

func variantCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
