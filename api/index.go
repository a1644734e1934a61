package handler

import (
	"context"
	"log"
	"net/http"
	"sync"

	config "genai-campaign-api/configs"
	"genai-campaign-api/pkg/app"
	"genai-campaign-api/pkg/handlers"
	"genai-campaign-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

var (
	engine *gin.Engine
	once   sync.Once
)

// setupApp builds the gin engine once per process.
// Serverless instances are reused across requests, so it runs under sync.Once.
func setupApp() *gin.Engine {
	once.Do(func() {
		// Vercel injects the environment, so godotenv is not loaded here.
		cfg := config.LoadConfig()
		gin.SetMode(gin.ReleaseMode)

		appLog, err := logger.New("production")
		if err != nil {
			log.Printf("logger init failed, falling back to nop: %v", err)
			appLog = logger.Nop()
		}

		a, err := app.New(context.Background(), cfg, appLog)
		if err != nil {
			appLog.Error("application init failed", "error", err)
			engine = unavailable(err)
			return
		}

		engine = handlers.SetupRouter(handlers.RouterDeps{
			Config:     a.Config,
			Catalog:    a.Catalog,
			Builder:    a.Builder,
			Monitoring: a.Monitoring,
			Log:        a.Log,
		})
	})
	return engine
}

// unavailable answers every request with 503 when initialization failed.
func unavailable(cause error) *gin.Engine {
	r := gin.New()
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable", "detail": cause.Error()})
	})
	return r
}

// Handler is the Vercel entry point for every request.
func Handler(w http.ResponseWriter, r *http.Request) {
	setupApp().ServeHTTP(w, r)
}
