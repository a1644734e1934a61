package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChannelStyle is the copy-style contract for one advertising channel.
type ChannelStyle struct {
	Title string   `yaml:"title"`
	Rules []string `yaml:"rules"`
	CTAs  []string `yaml:"ctas"`
}

// CreativePromptConfig defines the structure of creative_prompt.yaml
type CreativePromptConfig struct {
	System struct {
		Role     string `yaml:"role"`
		Platform string `yaml:"platform"`
		Language string `yaml:"language"`
	} `yaml:"system"`

	Rules         []string                `yaml:"rules"`
	DefaultTrends []string                `yaml:"default_trends"`
	Channels      map[string]ChannelStyle `yaml:"channels"`
	InputFormat   string                  `yaml:"input_format"`
	OutputFormat  string                  `yaml:"output_format"`
	Closing       string                  `yaml:"closing"`
}

// channelOrder keeps the rendered prompt stable regardless of map iteration.
var channelOrder = []string{"telegram", "vk", "yandex_ads"}

// DefaultCreativePrompt returns the built-in prompt configuration.
func DefaultCreativePrompt() *CreativePromptConfig {
	c := &CreativePromptConfig{}
	c.System.Role = "модуль генерации рекламных креативов"
	c.System.Platform = "GENAI-4"
	c.System.Language = "русский"
	c.Rules = []string{
		"Не придумывай характеристик, которых нет в описании товара.",
		"Подчеркивай выгоды и понятные пользователю результаты.",
		"Учитывай тренды: минимализм, честность, FOMO, социальное доказательство, юмор (легкий).",
		"Фокус: максимальная конверсия (клик / покупка).",
	}
	c.DefaultTrends = []string{"минимализм", "FOMO", "социальное доказательство"}
	c.Channels = map[string]ChannelStyle{
		"telegram": {
			Title: "TELEGRAM",
			Rules: []string{
				"Короткий, эмоциональный текст.",
				"Заголовок до ~50 символов.",
				"1–3 предложения, можно эмодзи (до 5 шт).",
				"FOMO приветствуется.",
			},
			CTAs: []string{"Успеть взять сейчас", "Смотреть в каталоге", "Перейти к покупке"},
		},
		"vk": {
			Title: "VK",
			Rules: []string{
				"2–5 предложений, можно 1–2 абзаца.",
				"Легкий сторителлинг, социальное доказательство (\"покупатели выбирают\", \"отзывы\").",
			},
			CTAs: []string{"Заказать онлайн", "Узнать цену", "Смотреть характеристики"},
		},
		"yandex_ads": {
			Title: "Yandex Ads",
			Rules: []string{
				"Сухо, конкретно, без эмодзи.",
				"Короткий заголовок с выгодой, до 56 символов.",
				"1–2 предложения до 81 символа, ключевые слова (доставка, скидка, купить онлайн).",
			},
			CTAs: []string{"Купить онлайн", "Заказать с доставкой", "Смотреть в магазине"},
		},
	}
	c.InputFormat = `{"product": {"name", "category", "price", "margin", "tags", "features"}, "audience_profile": {"age_range", "interests", "behavior"}, "channel": "telegram" | "vk" | "yandex_ads", "trends": [...], "n_variants": 3}`
	c.OutputFormat = `{"variants": [{"channel": "<канал>", "headline": "<заголовок>", "text": "<основной текст>", "cta": "<призыв>", "notes": "<почему это должно конвертировать>"}]}`
	c.Closing = "Верни строго один JSON-объект. Никакого текста вне JSON."
	return c
}

// LoadCreativePrompt reads the prompt configuration from YAML. A missing file
// yields the built-in default; absent sections keep their default values.
func LoadCreativePrompt(path string) (*CreativePromptConfig, error) {
	defaults := DefaultCreativePrompt()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults, nil
		}
		return nil, fmt.Errorf("read creative prompt file: %w", err)
	}

	var loaded CreativePromptConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse creative prompt yaml: %w", err)
	}

	fillString(&loaded.System.Role, defaults.System.Role)
	fillString(&loaded.System.Platform, defaults.System.Platform)
	fillString(&loaded.System.Language, defaults.System.Language)
	fillList(&loaded.Rules, defaults.Rules)
	fillList(&loaded.DefaultTrends, defaults.DefaultTrends)
	fillString(&loaded.InputFormat, defaults.InputFormat)
	fillString(&loaded.OutputFormat, defaults.OutputFormat)
	fillString(&loaded.Closing, defaults.Closing)
	if loaded.Channels == nil {
		loaded.Channels = map[string]ChannelStyle{}
	}
	for _, ch := range channelOrder {
		if _, ok := loaded.Channels[ch]; !ok {
			loaded.Channels[ch] = defaults.Channels[ch]
		}
	}
	return &loaded, nil
}

// BuildSystemPrompt renders the system instruction sent with every generation call.
func (c *CreativePromptConfig) BuildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Ты — %s для ИИ-платформы %s.\n", c.System.Role, c.System.Platform))
	sb.WriteString("Твоя задача — создавать эффективные рекламные тексты, адаптированные под разные каналы (Telegram, VK, Yandex Ads).\n\n")

	sb.WriteString("ОБЩИЕ ПРАВИЛА:\n")
	sb.WriteString(fmt.Sprintf("- Пиши только на языке: %s.\n", c.System.Language))
	for _, rule := range c.Rules {
		sb.WriteString(fmt.Sprintf("- %s\n", rule))
	}
	sb.WriteString("\n")

	sb.WriteString("ФОРМАТ ВХОДА (один объект в JSON):\n")
	sb.WriteString(c.InputFormat)
	sb.WriteString("\n\nТВОЯ ЗАДАЧА: сгенерировать n_variants объявлений для одного канала и одного товара.\n\n")

	sb.WriteString("ТРЕБОВАНИЯ К КАНАЛАМ:\n")
	for _, name := range channelOrder {
		style, ok := c.Channels[name]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n[%s]\n", style.Title))
		for _, rule := range style.Rules {
			sb.WriteString(fmt.Sprintf("- %s\n", rule))
		}
		if len(style.CTAs) > 0 {
			quoted := make([]string, len(style.CTAs))
			for i, cta := range style.CTAs {
				quoted[i] = fmt.Sprintf("%q", cta)
			}
			sb.WriteString(fmt.Sprintf("- CTA: %s.\n", strings.Join(quoted, ", ")))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("ФОРМАТ ВЫХОДА:\n")
	sb.WriteString(c.OutputFormat)
	sb.WriteString("\n\n")
	sb.WriteString(c.Closing)
	sb.WriteString("\n")

	return sb.String()
}
