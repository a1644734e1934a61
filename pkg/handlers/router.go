package handlers

import (
	"net/http"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/logger"
	"genai-campaign-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterDeps are the services the HTTP layer needs.
type RouterDeps struct {
	Config     *config.Config
	Catalog    *services.CatalogService
	Builder    *services.CampaignBuilder
	Monitoring *services.MonitoringService
	Log        *logger.Logger
}

// authMiddleware checks X-API-KEY. An empty or placeholder key disables the check.
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || apiKey == "default_secret_key" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// SetupRouter registers middleware and every route on a new engine.
func SetupRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(d.Monitoring.LoggingMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-KEY")
	r.Use(cors.New(corsConfig))

	campaignHandler := NewCampaignHandler(d.Catalog, d.Builder, LimitsFromConfig(d.Config), d.Log)
	adminHandler := NewAdminHandler(d.Config)
	monitoringHandler := NewMonitoringHandler(d.Monitoring)

	// health check
	r.GET("/health", HealthCheck)

	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(d.Config.APIKey))
	{
		// admin
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// monitoring
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
			monitoring.GET("/campaigns", monitoringHandler.GetCampaignRuns)
		}

		campaign := v1.Group("/campaign")
		{
			campaign.GET("/settings", campaignHandler.GetSettings)
			campaign.POST("/top-products", campaignHandler.GetTopProducts)
			campaign.POST("/generate", rejectDuringMaintenance(), campaignHandler.GenerateCampaign)
		}
	}

	return r
}
