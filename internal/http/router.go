package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/bookmatch-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bookmatch-backend/internal/http/middleware"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	TracingEnabled bool
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	BookHandler           *httpH.BookHandler
	RecommendationHandler *httpH.RecommendationHandler
	CatalogToolsHandler   *httpH.CatalogToolsHandler
	AdminHandler          *httpH.AdminHandler
	JobHandler            *httpH.JobHandler
	HealthHandler         *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	guard := cfg.AuthMiddleware.RequireToken()

	if cfg.BookHandler != nil {
		api.GET("/books/:isbn", cfg.BookHandler.GetBook)
		api.POST("/books/:isbn", guard, cfg.BookHandler.AddBook)
		api.DELETE("/books/:isbn", guard, cfg.BookHandler.DeleteBook)
	}
	if cfg.RecommendationHandler != nil {
		api.POST("/recommendations/:memberId", guard, cfg.RecommendationHandler.Recommend)
	}
	if cfg.CatalogToolsHandler != nil {
		api.POST("/classify", cfg.CatalogToolsHandler.Classify)
		api.GET("/crawl/:isbn", cfg.CatalogToolsHandler.Crawl)
		api.POST("/generate", cfg.CatalogToolsHandler.Generate)
	}
	if cfg.AdminHandler != nil {
		api.GET("/admin/drift", cfg.AdminHandler.Drift)
		api.POST("/admin/drift/repair", guard, cfg.AdminHandler.RepairDrift)
	}
	if cfg.JobHandler != nil {
		api.GET("/jobs/recent", cfg.JobHandler.Recent)
		api.POST("/jobs/:type/run", guard, cfg.JobHandler.Run)
	}
	return r
}
