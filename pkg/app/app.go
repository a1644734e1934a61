package app

import (
	"context"
	"errors"
	"math/rand"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/azure"
	"genai-campaign-api/pkg/logger"
	"genai-campaign-api/pkg/services"
)

// App holds the long-lived services shared by the HTTP server, the
// serverless entry point and the CLI.
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Catalog    *services.CatalogService
	Builder    *services.CampaignBuilder
	Monitoring *services.MonitoringService
	Prompt     *config.CreativePromptConfig

	closers []func() error
}

// New wires every component from cfg. Configuration files that are missing
// fall back to built-in defaults; a malformed file is an error.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)

	keywords, err := config.LoadScoringKeywords(cfg.KeywordsFile)
	if err != nil {
		return nil, err
	}
	prompt, err := config.LoadCreativePrompt(cfg.PromptFile)
	if err != nil {
		return nil, err
	}

	openai := azure.NewOpenAIClient(
		cfg.AzureOpenAIEndpoint,
		cfg.AzureOpenAIAPIKey,
		cfg.AzureOpenAIAPIVersion,
		cfg.AzureOpenAIChatDeploymentName,
		cfg.AzureOpenAIEmbeddingDeploymentName,
		cfg.OpenAIProxyURL,
		log,
	)

	a := &App{
		Config:     cfg,
		Log:        log,
		Catalog:    services.NewCatalogService(log),
		Monitoring: services.NewMonitoringService(nil),
		Prompt:     prompt,
	}

	trends, closeTrends := services.NewTrendSource(ctx, cfg, rand.New(rand.NewSource(cfg.SimulatorSeed+1)), log)
	a.closers = append(a.closers, closeTrends)

	scorer := a.newScorer(ctx, openai, trends, keywords)
	creative := services.NewCreativeClient(cfg, openai, prompt, log)
	simulator := services.NewResponseSimulator(keywords, rand.New(rand.NewSource(cfg.SimulatorSeed)))

	a.Builder = services.NewCampaignBuilder(
		scorer,
		services.NewAudienceGenerator(cfg),
		creative,
		simulator,
		services.CampaignOptions{
			Niche:              cfg.Niche,
			TopK:               cfg.TopK,
			VariantsPerChannel: cfg.VariantsPerChannel,
			AudienceSize:       cfg.AudienceSize,
			Concurrency:        cfg.GenerationConcurrency,
			Trends:             prompt.DefaultTrends,
		},
		log,
	).WithRecorder(a.Monitoring)

	log.Info("application ready",
		"scoring_mode", scorer.Mode(),
		"backend", creative.Name(),
		"audience", cfg.AudienceStrategy,
	)
	return a, nil
}

// newScorer returns the semantic scorer when an embedding deployment is
// configured and its anchors embed successfully, otherwise the keyword scorer.
// With QDRANT_URL set, embeddings go through the Qdrant cache.
func (a *App) newScorer(ctx context.Context, embedder services.Embedder, trends services.TrendSource, keywords *config.ScoringKeywords) services.ProductScorer {
	cfg, log := a.Config, a.Log
	if cfg.ScoringMode != config.ScoringModeSemantic {
		return services.NewKeywordScorer(keywords)
	}
	if !cfg.HasRemoteCredentials() || cfg.AzureOpenAIEmbeddingDeploymentName == "" {
		log.Warn("semantic scoring needs an embedding deployment, using keyword scorer")
		return services.NewKeywordScorer(keywords)
	}
	if cfg.QdrantURL != "" {
		store, closeStore, err := services.DialQdrant(ctx, cfg.QdrantURL, cfg.QdrantAPIKey, cfg.QdrantCollection, cfg.EmbeddingDimensions, log)
		if err != nil {
			log.Warn("qdrant unavailable, embedding cache disabled", "error", err)
		} else {
			a.closers = append(a.closers, closeStore)
			embedder = services.NewEmbeddingCache(embedder, store, cfg.AzureOpenAIEmbeddingDeploymentName, log)
			log.Info("embedding cache ready", "collection", cfg.QdrantCollection)
		}
	}
	semantic, err := services.NewSemanticScorer(ctx, embedder, trends, keywords, log)
	if err != nil {
		log.Warn("semantic scorer unavailable, using keyword scorer", "error", err)
		return services.NewKeywordScorer(keywords)
	}
	return semantic
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.Log.Sync()
	return errors.Join(errs...)
}
