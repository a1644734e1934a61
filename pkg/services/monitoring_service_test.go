package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddlewareSkipsAdminAndMonitoring(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewMonitoringService(nil)

	r := gin.New()
	r.Use(svc.LoggingMiddleware())
	r.GET("/api/v1/campaign/settings", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/monitoring/logs", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/admin/maintenance/start", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/campaign/settings", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/monitoring/logs", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/admin/maintenance/start", nil),
		httptest.NewRequest(http.MethodGet, "/boom", nil),
		httptest.NewRequest(http.MethodGet, "/missing", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	data := svc.GetDashboardData(1)
	assert.Equal(t, 1, data.Endpoints["/api/v1/campaign/settings"])
	assert.Equal(t, 1, data.Endpoints["/boom"])
	assert.Equal(t, 1, data.Endpoints["/missing"])
	assert.NotContains(t, data.Endpoints, "/api/v1/monitoring/logs")
	assert.NotContains(t, data.Endpoints, "/api/v1/admin/maintenance/start")

	require.Len(t, data.RecentErrors, 1)
	assert.Equal(t, "/boom", data.RecentErrors[0].Path)
	require.Len(t, data.StatusCodes, 3)
	assert.Equal(t, map[string]interface{}{"name": "2xx Success", "value": 1}, data.StatusCodes[0])
	require.Len(t, data.RequestsOverTime, 1)
	assert.Equal(t, 3, data.RequestsOverTime[0]["requests"])
}

func TestDashboardFiltersByPeriod(t *testing.T) {
	svc := NewMonitoringService(nil)
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.LogRequest(LogEntry{Timestamp: now.Add(-10 * time.Minute), Path: "/a", StatusCode: 200, ResponseTime: 20 * time.Millisecond})
	svc.LogRequest(LogEntry{Timestamp: now.Add(-20 * time.Minute), Path: "/a", StatusCode: 200, ResponseTime: 40 * time.Millisecond})
	svc.LogRequest(LogEntry{Timestamp: now.Add(-5 * time.Hour), Path: "/old", StatusCode: 404})

	hour := svc.GetDashboardData(1)
	assert.Equal(t, map[string]int{"/a": 2}, hour.Endpoints)
	require.Len(t, hour.AvgResponseTimes, 1)
	assert.Equal(t, int64(30), hour.AvgResponseTimes[0]["responseTime"])

	day := svc.GetDashboardData(24)
	assert.Len(t, day.RequestsOverTime, 24)
	assert.Equal(t, 1, day.Endpoints["/old"])
	assert.Equal(t, "12:00", day.RequestsOverTime[23]["time"])
	assert.Equal(t, 2, day.RequestsOverTime[23]["requests"])
}

func TestCampaignRunSummary(t *testing.T) {
	svc := NewMonitoringService(nil)
	now := time.Now()

	svc.RecordCampaignRun(CampaignRunStat{RunID: "1", Timestamp: now, Backend: "mock", AdsGenerated: 9, Duration: 100 * time.Millisecond})
	svc.RecordCampaignRun(CampaignRunStat{RunID: "2", Timestamp: now, Backend: "remote+mock-fallback", AdsGenerated: 9, FallbackAds: 3, Duration: 300 * time.Millisecond})
	svc.RecordCampaignRun(CampaignRunStat{RunID: "3", Timestamp: now, Backend: "mock", Error: "empty"})
	svc.RecordCampaignRun(CampaignRunStat{RunID: "old", Timestamp: now.Add(-48 * time.Hour), Backend: "mock", AdsGenerated: 100})

	summary := svc.GetDashboardData(24).Campaigns

	assert.Equal(t, 3, summary.Runs)
	assert.Equal(t, 1, summary.FailedRuns)
	assert.Equal(t, 18, summary.AdsGenerated)
	assert.Equal(t, 3, summary.FallbackAds)
	assert.Equal(t, int64(133), summary.AvgDuration)
	assert.Equal(t, map[string]int{"mock": 2, "remote+mock-fallback": 1}, summary.Backends)
	require.Len(t, summary.RecentRuns, 3)
	assert.Equal(t, "3", summary.RecentRuns[0].RunID)
}

func TestRequestLogIsBounded(t *testing.T) {
	svc := NewMonitoringService(nil)
	for i := 0; i < maxRequestLogs+5; i++ {
		svc.LogRequest(LogEntry{Timestamp: time.Now(), Path: "/x", StatusCode: 200})
	}
	assert.Len(t, svc.logs, maxRequestLogs)
}
