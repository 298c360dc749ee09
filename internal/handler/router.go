package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterConfig controls which optional surfaces are mounted.
type RouterConfig struct {
	APIPrefix string
	// Development mounts /docs and the entitlement toggle.
	Development bool
}

// Handlers groups the route handlers mounted by RegisterRoutes.
type Handlers struct {
	Sessions  *SessionHandler
	Documents *DocumentHandler
	Captures  *CaptureHandler
	Exports   *ExportHandler
	Summaries *SummaryHandler
	Account   *AccountHandler
	Metrics   *MetricsHandler
	// Session guards every route that acts on behalf of a session.
	Session gin.HandlerFunc
}

// RegisterRoutes mounts the HTTP API on r.
func RegisterRoutes(r *gin.Engine, cfg RouterConfig, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Development {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.POST("/sessions", h.Sessions.Start)
	// Signed links carry their own authorization.
	api.GET("/exports/:token", h.Exports.Download)

	secured := api.Group("")
	secured.Use(h.Session)

	secured.DELETE("/sessions", h.Sessions.End)
	secured.POST("/sessions/background", h.Sessions.Background)
	secured.POST("/sessions/foreground", h.Sessions.Foreground)

	secured.GET("/quota", h.Account.Quota)
	secured.GET("/widget/snapshot", h.Account.Widget)
	if cfg.Development {
		secured.PUT("/entitlement", h.Account.SetEntitlement)
	}

	docs := secured.Group("/documents")
	docs.GET("", h.Documents.List)
	docs.GET("/:id", h.Documents.Get)
	docs.PATCH("/:id", h.Documents.Rename)
	docs.DELETE("/:id", h.Documents.Delete)
	docs.GET("/:id/pages/:position", h.Documents.Page)
	docs.POST("/:id/lock", h.Documents.Lock)
	docs.POST("/:id/unlock", h.Documents.Unlock)
	docs.POST("/:id/authenticate", h.Documents.Authenticate)
	docs.POST("/:id/duplicate", h.Documents.Duplicate)
	docs.POST("/:id/viewer", h.Documents.OpenViewer)
	docs.DELETE("/:id/viewer", h.Documents.CloseViewer)
	docs.POST("/:id/export", h.Exports.Export)
	docs.POST("/:id/summary", h.Summaries.Summarize)

	captures := secured.Group("/captures")
	captures.POST("/scan", h.Captures.Scan)
	captures.POST("/import", h.Captures.Import)
	captures.GET("/:id", h.Captures.Get)
	captures.DELETE("/:id", h.Captures.Cancel)

	secured.GET("/library.csv", h.Exports.LibraryCSV)
}
