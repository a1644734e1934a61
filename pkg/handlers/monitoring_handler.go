package handlers

import (
	"net/http"

	"genai-campaign-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler serves monitoring endpoints.
type MonitoringHandler struct {
	service *services.MonitoringService
}

// NewMonitoringHandler creates a MonitoringHandler.
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{service: service}
}

// periodHours maps the dashboard period selector to hours. Unknown values mean 24h.
func periodHours(period string) int {
	switch period {
	case "1h":
		return 1
	case "7d":
		return 24 * 7
	default:
		return 24
	}
}

// GetLogs returns aggregated request logs.
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	data := h.service.GetDashboardData(periodHours(c.DefaultQuery("period", "24h")))
	c.JSON(http.StatusOK, data)
}

// GetCampaignRuns returns only the campaign run summary for the period.
func (h *MonitoringHandler) GetCampaignRuns(c *gin.Context) {
	data := h.service.GetDashboardData(periodHours(c.DefaultQuery("period", "24h")))
	c.JSON(http.StatusOK, data.Campaigns)
}
