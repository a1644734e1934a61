package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/logger"
	"genai-campaign-api/pkg/models"
	"genai-campaign-api/pkg/services"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20 // 10MB

// RequestLimits caps the sizes a client may request.
type RequestLimits struct {
	TopK               int `json:"top_k"`
	VariantsPerChannel int `json:"variants_per_channel"`
	AudienceSize       int `json:"audience_size"`
}

// LimitsFromConfig reads the maxima from cfg, using the defaults for unset values.
func LimitsFromConfig(cfg *config.Config) RequestLimits {
	l := RequestLimits{
		TopK:               config.DefaultMaxTopK,
		VariantsPerChannel: config.DefaultMaxVariantsPerChannel,
		AudienceSize:       config.DefaultMaxAudienceSize,
	}
	if cfg == nil {
		return l
	}
	if cfg.MaxTopK > 0 {
		l.TopK = cfg.MaxTopK
	}
	if cfg.MaxVariantsPerChannel > 0 {
		l.VariantsPerChannel = cfg.MaxVariantsPerChannel
	}
	if cfg.MaxAudienceSize > 0 {
		l.AudienceSize = cfg.MaxAudienceSize
	}
	return l
}

// CampaignHandler exposes campaign generation over HTTP.
type CampaignHandler struct {
	catalog *services.CatalogService
	builder *services.CampaignBuilder
	limits  RequestLimits
	log     *logger.Logger
}

func NewCampaignHandler(catalog *services.CatalogService, builder *services.CampaignBuilder, limits RequestLimits, log *logger.Logger) *CampaignHandler {
	return &CampaignHandler{catalog: catalog, builder: builder, limits: limits, log: logger.OrNop(log)}
}

// CampaignRequest is the JSON body accepted instead of a file upload.
type CampaignRequest struct {
	Products           []map[string]interface{} `json:"products"`
	Niche              string                   `json:"niche"`
	TopK               int                      `json:"top_k"`
	VariantsPerChannel int                      `json:"variants_per_channel"`
	AudienceSize       int                      `json:"audience_size"`
	Trends             []string                 `json:"trends"`
	Channels           []string                 `json:"channels"`
	IncludeAllAds      bool                     `json:"include_all_ads"`
}

// readRequest accepts either multipart/form-data with a "file" field or a
// JSON CampaignRequest.
func (h *CampaignHandler) readRequest(c *gin.Context) ([]models.Product, CampaignRequest, error) {
	var req CampaignRequest
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, req, &models.InputFormatError{FileName: "request body", Reason: "invalid JSON", Err: err}
		}
		products := services.NormalizeRecords(req.Products)
		if len(products) == 0 {
			return nil, req, models.ErrEmptyCatalog
		}
		return products, req, nil
	}

	if err := c.Request.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, req, &models.InputFormatError{FileName: "upload", Reason: "invalid multipart form", Err: err}
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return nil, req, &models.InputFormatError{FileName: "upload", Reason: "file field is required", Err: err}
	}
	defer file.Close()

	products, err := h.catalog.Load(header.Filename, file)
	if err != nil {
		return nil, req, err
	}

	req.Niche = c.PostForm("niche")
	for field, dst := range map[string]*int{
		"top_k":                &req.TopK,
		"variants_per_channel": &req.VariantsPerChannel,
		"audience_size":        &req.AudienceSize,
	} {
		raw := c.PostForm(field)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, req, fmt.Errorf("%s must be an integer: %w", field, models.ErrInvalidArgument)
		}
		*dst = n
	}
	req.Trends = splitList(c.PostForm("trends"))
	req.Channels = splitList(c.PostForm("channels"))
	req.IncludeAllAds = c.PostForm("include_all_ads") == "true"
	return products, req, nil
}

func (req CampaignRequest) options(limits RequestLimits) (services.CampaignOptions, error) {
	if req.TopK < 0 || req.VariantsPerChannel < 0 || req.AudienceSize < 0 {
		return services.CampaignOptions{}, fmt.Errorf("sizes must not be negative: %w", models.ErrInvalidArgument)
	}
	for _, c := range []struct {
		field    string
		got, max int
	}{
		{"top_k", req.TopK, limits.TopK},
		{"variants_per_channel", req.VariantsPerChannel, limits.VariantsPerChannel},
		{"audience_size", req.AudienceSize, limits.AudienceSize},
	} {
		if c.got > c.max {
			return services.CampaignOptions{}, fmt.Errorf("%s must be at most %d, got %d: %w", c.field, c.max, c.got, models.ErrInvalidArgument)
		}
	}
	channels := make([]models.Channel, 0, len(req.Channels))
	for _, name := range req.Channels {
		ch := models.Channel(strings.ToLower(name))
		if !ch.Valid() {
			return services.CampaignOptions{}, fmt.Errorf("unknown channel %q: %w", name, models.ErrInvalidArgument)
		}
		channels = append(channels, ch)
	}
	return services.CampaignOptions{
		Niche:              req.Niche,
		TopK:               req.TopK,
		VariantsPerChannel: req.VariantsPerChannel,
		AudienceSize:       req.AudienceSize,
		Trends:             req.Trends,
		Channels:           channels,
	}, nil
}

// GenerateCampaign runs the full pipeline and returns the campaign document.
func (h *CampaignHandler) GenerateCampaign(c *gin.Context) {
	products, req, err := h.readRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	opts, err := req.options(h.limits)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.builder.Run(c.Request.Context(), products, opts)
	if err != nil {
		h.fail(c, err)
		return
	}

	body := gin.H{"success": true, "campaign": res.Document}
	if req.IncludeAllAds {
		body["all_ads"] = res.AllAds
	}
	c.JSON(http.StatusOK, body)
}

// GetTopProducts scores the catalog only.
func (h *CampaignHandler) GetTopProducts(c *gin.Context) {
	products, req, err := h.readRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.TopK < 0 || req.TopK > h.limits.TopK {
		h.fail(c, fmt.Errorf("top_k must be between 0 and %d: %w", h.limits.TopK, models.ErrInvalidArgument))
		return
	}

	top, err := h.builder.TopProducts(c.Request.Context(), products, req.TopK)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"scoring_mode": h.builder.ScoringMode(),
		"n_products":   len(products),
		"top_products": top,
	})
}

// GetSettings describes the active backends and the run defaults.
func (h *CampaignHandler) GetSettings(c *gin.Context) {
	d := h.builder.Defaults()
	c.JSON(http.StatusOK, gin.H{
		"generation_backend":   h.builder.Backend(),
		"scoring_mode":         h.builder.ScoringMode(),
		"niche":                d.Niche,
		"top_k":                d.TopK,
		"variants_per_channel": d.VariantsPerChannel,
		"audience_size":        d.AudienceSize,
		"concurrency":          d.Concurrency,
		"trends":               d.Trends,
		"channels":             d.Channels,
		"supported_formats":    services.SupportedCatalogFormats,
		"limits":               h.limits,
	})
}

func (h *CampaignHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("campaign request failed", "path", c.FullPath(), "error", err)
	} else {
		h.log.Warn("campaign request rejected", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInputFormat),
		errors.Is(err, models.ErrEmptyCatalog),
		errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
