package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	testCases := map[string]string{
		"PORT":                              "9090",
		"ENVIRONMENT":                       "test",
		"AZURE_OPENAI_ENDPOINT":             "https://test.openai.azure.com/",
		"AZURE_OPENAI_API_KEY":              "test-key",
		"AZURE_OPENAI_CHAT_DEPLOYMENT_NAME": "test-deployment",
		"GENERATION_TIMEOUT":                "12s",
		"TREND_TIMEOUT":                     "3",
		"TOP_K":                             "5",
		"SCORING_MODE":                      "semantic",
	}
	for key, value := range testCases {
		t.Setenv(key, value)
	}

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "https://test.openai.azure.com/", cfg.AzureOpenAIEndpoint)
	assert.Equal(t, "test-key", cfg.AzureOpenAIAPIKey)
	assert.Equal(t, "test-deployment", cfg.AzureOpenAIChatDeploymentName)
	assert.Equal(t, 12*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 3*time.Second, cfg.TrendTimeout)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, ScoringModeSemantic, cfg.ScoringMode)
	assert.True(t, cfg.HasRemoteCredentials())
}

func TestLoadConfigDefaults(t *testing.T) {
	vars := []string{
		"PORT", "ENVIRONMENT", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_KEY",
		"TOP_K", "AUDIENCE_SIZE", "VARIANTS_PER_CHANNEL", "SCORING_MODE", "GENERATION_TIMEOUT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 12, cfg.AudienceSize)
	assert.Equal(t, 3, cfg.VariantsPerChannel)
	assert.Equal(t, ScoringModeKeyword, cfg.ScoringMode)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.False(t, cfg.HasRemoteCredentials())
}

func TestLoadConfigIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("TOP_K", "three")
	t.Setenv("GENERATION_TIMEOUT", "soon")

	cfg := LoadConfig()

	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
}

func TestLoadScoringKeywordsMissingFileUsesDefaults(t *testing.T) {
	k, err := LoadScoringKeywords(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultScoringKeywords(), k)
}

func TestLoadScoringKeywordsPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tags:\n  novelty: [\"fresh\"]\n"), 0o644))

	k, err := LoadScoringKeywords(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh"}, k.Tags.Novelty)
	assert.Equal(t, DefaultScoringKeywords().Tags.Bestseller, k.Tags.Bestseller)
	assert.NotEmpty(t, k.Signals.Emoji)
}

func TestLoadScoringKeywordsLowercasesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kw.yaml")
	yml := "tags:\n  visual: [\"RGB\", \" Неон \"]\n  bestseller: [\"Хит\"]\nsignals:\n  discount: [\"SALE\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	k, err := LoadScoringKeywords(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"rgb", "неон"}, k.Tags.Visual)
	assert.Equal(t, []string{"хит"}, k.Tags.Bestseller)
	assert.Equal(t, []string{"sale"}, k.Signals.Discount)
}

func TestLoadScoringKeywordsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tags: [unclosed"), 0o644))

	_, err := LoadScoringKeywords(path)
	assert.Error(t, err)
}

func TestRepositoryYAMLFilesParse(t *testing.T) {
	k, err := LoadScoringKeywords("scoring_keywords.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultScoringKeywords().Tags, k.Tags)

	p, err := LoadCreativePrompt("creative_prompt.yaml")
	require.NoError(t, err)
	assert.Len(t, p.Channels, 3)
}

func TestBuildSystemPromptContainsChannelContract(t *testing.T) {
	prompt := DefaultCreativePrompt().BuildSystemPrompt()

	for _, want := range []string{"[TELEGRAM]", "[VK]", "[Yandex Ads]", "без эмодзи", `"variants"`, "Никакого текста вне JSON"} {
		assert.True(t, strings.Contains(prompt, want), "prompt should contain %q", want)
	}
	assert.Less(t, strings.Index(prompt, "[TELEGRAM]"), strings.Index(prompt, "[VK]"))
	assert.Less(t, strings.Index(prompt, "[VK]"), strings.Index(prompt, "[Yandex Ads]"))
}

func TestLoadCreativePromptFillsMissingChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.yaml")
	yaml := "channels:\n  vk:\n    title: \"VK\"\n    rules: [\"Пиши длинно.\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	p, err := LoadCreativePrompt(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Пиши длинно."}, p.Channels["vk"].Rules)
	assert.Equal(t, DefaultCreativePrompt().Channels["telegram"], p.Channels["telegram"])
	assert.Equal(t, DefaultCreativePrompt().Closing, p.Closing)
}
