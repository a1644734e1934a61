package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/azure"
	"genai-campaign-api/pkg/logger"
	"genai-campaign-api/pkg/models"
)

// CreativeClient drafts ad variants for one product on one channel.
type CreativeClient interface {
	Name() string
	GenerateVariants(ctx context.Context, req models.GenerationRequest) ([]models.AdVariant, error)
}

// TextCompleter is the chat capability the remote client needs.
// *azure.OpenAIClient satisfies it.
type TextCompleter interface {
	CompleteText(ctx context.Context, systemPrompt, userPrompt string, opts azure.ChatOptions) (string, error)
}

// ErrMalformedGeneration marks a response that is not the expected strict JSON.
var ErrMalformedGeneration = errors.New("malformed generation response")

// BuildGenerationRequest assembles the structured input for the text generator.
func BuildGenerationRequest(p models.Product, channel models.Channel, audience models.AudienceSummary, trends []string, n int) models.GenerationRequest {
	features := []string{}
	if d := strings.TrimSpace(p.Description); d != "" {
		features = append(features, d)
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	if trends == nil {
		trends = []string{}
	}
	return models.GenerationRequest{
		Product: models.GenerationProduct{
			Name:     p.Name,
			Category: p.Category,
			Price:    p.Price,
			Margin:   p.Margin,
			Tags:     tags,
			Features: features,
		},
		AudienceProfile: audience,
		Channel:         channel,
		Trends:          trends,
		NVariants:       variantCount(n),
	}
}

// RemoteCreativeClient asks a hosted language model for variants using the
// configured system prompt and parses its strict JSON answer.
type RemoteCreativeClient struct {
	completer    TextCompleter
	systemPrompt string
	temperature  float32
	timeout      time.Duration
}

func NewRemoteCreativeClient(completer TextCompleter, prompt *config.CreativePromptConfig, temperature float64, timeout time.Duration) *RemoteCreativeClient {
	if prompt == nil {
		prompt = config.DefaultCreativePrompt()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteCreativeClient{
		completer:    completer,
		systemPrompt: prompt.BuildSystemPrompt(),
		temperature:  float32(temperature),
		timeout:      timeout,
	}
}

func (c *RemoteCreativeClient) Name() string { return models.SourceRemote }

func (c *RemoteCreativeClient) GenerateVariants(ctx context.Context, req models.GenerationRequest) ([]models.AdVariant, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content, err := c.completer.CompleteText(ctx, c.systemPrompt, string(payload), azure.ChatOptions{
		Temperature: c.temperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("text generation call: %w", err)
	}
	return ParseGenerationResponse(content, req.Channel)
}

// ParseGenerationResponse accepts exactly one JSON object with a "variants"
// array. Any surrounding prose, a missing key or a wrong type is an error.
// Entries with neither headline nor text are dropped.
func ParseGenerationResponse(content string, channel models.Channel) ([]models.AdVariant, error) {
	dec := json.NewDecoder(strings.NewReader(content))

	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrMalformedGeneration)
	}

	rawVariants, ok := raw["variants"]
	if !ok {
		return nil, fmt.Errorf("%w: missing \"variants\" key", ErrMalformedGeneration)
	}
	trimmed := bytes.TrimSpace(rawVariants)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: \"variants\" is not an array", ErrMalformedGeneration)
	}

	var generated []models.GeneratedVariant
	if err := json.Unmarshal(trimmed, &generated); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}

	variants := make([]models.AdVariant, 0, len(generated))
	for _, g := range generated {
		v := models.AdVariant{
			Channel:  channel,
			Headline: strings.TrimSpace(g.Headline),
			Text:     strings.TrimSpace(g.Text),
			CTA:      strings.TrimSpace(g.CTA),
			Notes:    strings.TrimSpace(g.Notes),
			Source:   models.SourceRemote,
		}
		if v.Headline == "" && v.Text == "" {
			continue
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// FallbackCreativeClient tries the primary client and fills whatever it could
// not deliver from the mock. It always returns exactly n variants and never
// an error.
type FallbackCreativeClient struct {
	primary CreativeClient
	mock    *MockCreativeClient
	log     *logger.Logger
}

func NewFallbackCreativeClient(primary CreativeClient, mock *MockCreativeClient, log *logger.Logger) *FallbackCreativeClient {
	if mock == nil {
		mock = NewMockCreativeClient()
	}
	return &FallbackCreativeClient{primary: primary, mock: mock, log: logger.OrNop(log)}
}

func (c *FallbackCreativeClient) Name() string {
	return c.primary.Name() + "+" + c.mock.Name() + "-fallback"
}

func (c *FallbackCreativeClient) GenerateVariants(ctx context.Context, req models.GenerationRequest) ([]models.AdVariant, error) {
	n := variantCount(req.NVariants)

	variants, err := c.primary.GenerateVariants(ctx, req)
	if err != nil {
		c.log.Warn("text generation failed, using mock variants",
			"product", req.Product.Name, "channel", req.Channel, "error", err)
		variants = nil
	}
	if len(variants) > n {
		variants = variants[:n]
	}
	if got := len(variants); got < n {
		if err == nil {
			c.log.Warn("text generation returned too few variants, padding with mock",
				"product", req.Product.Name, "channel", req.Channel, "requested", n, "received", got)
		}
		variants = append(variants, c.mock.render(req, got, n)...)
	}
	return variants, nil
}

// NewCreativeClient chooses the backend once per process: the remote model
// behind the mock fallback when credentials are configured, otherwise the
// mock alone.
func NewCreativeClient(cfg *config.Config, completer TextCompleter, prompt *config.CreativePromptConfig, log *logger.Logger) CreativeClient {
	log = logger.OrNop(log)
	mock := NewMockCreativeClient()
	if !cfg.HasRemoteCredentials() || completer == nil {
		log.Info("creative client: no remote credentials, using mock templates")
		return mock
	}
	remote := NewRemoteCreativeClient(completer, prompt, cfg.GenerationTemperature, cfg.GenerationTimeout)
	client := NewFallbackCreativeClient(remote, mock, log)
	log.Info("creative client ready", "backend", client.Name(), "timeout", cfg.GenerationTimeout)
	return client
}
