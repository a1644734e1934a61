package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	maxRequestLogs  = 10000
	maxCampaignRuns = 500
)

// LogEntry is one recorded request.
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// MonitoringService keeps recent request logs and campaign run summaries in
// memory. Both buffers are bounded; the oldest entries are dropped first.
type MonitoringService struct {
	mu       sync.RWMutex
	logs     []LogEntry
	runs     []CampaignRunStat
	location *time.Location
	now      func() time.Time
}

// NewMonitoringService creates a MonitoringService.
// loc is used for the hourly buckets; nil means UTC.
func NewMonitoringService(loc *time.Location) *MonitoringService {
	if loc == nil {
		loc = time.UTC
	}
	return &MonitoringService{
		logs:     make([]LogEntry, 0),
		runs:     make([]CampaignRunStat, 0),
		location: loc,
		now:      time.Now,
	}
}

// LogRequest records a request.
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxRequestLogs {
		s.logs = s.logs[len(s.logs)-maxRequestLogs:]
	}
}

// RecordCampaignRun implements RunRecorder.
func (s *MonitoringService) RecordCampaignRun(stat CampaignRunStat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, stat)
	if len(s.runs) > maxCampaignRuns {
		s.runs = s.runs[len(s.runs)-maxCampaignRuns:]
	}
}

// LoggingMiddleware records every request passing through gin.
// Admin and monitoring calls are not recorded.
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()
		c.Next()

		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}
		if route := c.FullPath(); route != "" {
			path = route
		}

		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: s.now().Sub(start),
		})
	}
}

// CampaignSummary aggregates campaign runs in the dashboard period.
type CampaignSummary struct {
	Runs         int               `json:"runs"`
	FailedRuns   int               `json:"failedRuns"`
	AdsGenerated int               `json:"adsGenerated"`
	FallbackAds  int               `json:"fallbackAds"`
	AvgDuration  int64             `json:"avgDurationMs"`
	Backends     map[string]int    `json:"backends"`
	RecentRuns   []CampaignRunStat `json:"recentRuns"`
}

// DashboardData is the aggregated view served to the dashboard.
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
	Campaigns        CampaignSummary          `json:"campaigns"`
}

// GetDashboardData aggregates the logs of the last periodHours hours.
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours < 1 {
		periodHours = 1
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now().In(s.location)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	filtered := make([]LogEntry, 0)
	for _, entry := range s.logs {
		if entry.Timestamp.After(since) {
			filtered = append(filtered, entry)
		}
	}

	// hourly buckets, oldest first
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[string]int, periodHours)
	for i := 0; i < periodHours; i++ {
		target := now.Add(-time.Duration(periodHours-1-i) * time.Hour)
		bucketIndex[target.Truncate(time.Hour).Format(time.RFC3339)] = i
		requestsOverTime[i] = map[string]interface{}{"time": target.Format("15:00"), "requests": 0}
	}

	endpoints := make(map[string]int)
	statusCodes := map[string]int{"2xx Success": 0, "4xx Client Error": 0, "5xx Server Error": 0}
	responseTimeSum := make(map[string]time.Duration)
	for _, entry := range filtered {
		key := entry.Timestamp.In(s.location).Truncate(time.Hour).Format(time.RFC3339)
		if i, ok := bucketIndex[key]; ok {
			requestsOverTime[i]["requests"] = requestsOverTime[i]["requests"].(int) + 1
		}

		endpoints[entry.Path]++
		responseTimeSum[entry.Path] += entry.ResponseTime

		switch {
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			statusCodes["2xx Success"]++
		case entry.StatusCode >= 400 && entry.StatusCode < 500:
			statusCodes["4xx Client Error"]++
		case entry.StatusCode >= 500:
			statusCodes["5xx Server Error"]++
		}
	}

	statusCodesSlice := make([]map[string]interface{}, 0, len(statusCodes))
	for _, name := range []string{"2xx Success", "4xx Client Error", "5xx Server Error"} {
		statusCodesSlice = append(statusCodesSlice, map[string]interface{}{"name": name, "value": statusCodes[name]})
	}

	paths := make([]string, 0, len(responseTimeSum))
	for path := range responseTimeSum {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, path := range paths {
		avg := responseTimeSum[path].Milliseconds() / int64(endpoints[path])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": path, "responseTime": avg})
	}

	// latest 5xx errors, newest first, at most 10
	recentErrors := make([]LogEntry, 0)
	for i := len(filtered) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filtered[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filtered[i])
		}
	}

	return DashboardData{
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusCodesSlice,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
		Campaigns:        s.campaignSummary(since),
	}
}

// campaignSummary must be called with the read lock held.
func (s *MonitoringService) campaignSummary(since time.Time) CampaignSummary {
	summary := CampaignSummary{Backends: map[string]int{}, RecentRuns: make([]CampaignRunStat, 0)}
	var total time.Duration
	for _, run := range s.runs {
		if !run.Timestamp.After(since) {
			continue
		}
		summary.Runs++
		summary.Backends[run.Backend]++
		total += run.Duration
		if run.Error != "" {
			summary.FailedRuns++
			continue
		}
		summary.AdsGenerated += run.AdsGenerated
		summary.FallbackAds += run.FallbackAds
	}
	if summary.Runs > 0 {
		summary.AvgDuration = total.Milliseconds() / int64(summary.Runs)
	}
	for i := len(s.runs) - 1; i >= 0 && len(summary.RecentRuns) < 10; i-- {
		if s.runs[i].Timestamp.After(since) {
			summary.RecentRuns = append(summary.RecentRuns, s.runs[i])
		}
	}
	return summary
}
