package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"docbench/internal/handler"
	"docbench/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Setup. FineTune may be nil,
// in which case the fine-tune routes are not registered.
type Handlers struct {
	Health     *handler.HealthHandler
	Validation *handler.ValidationHandler
	FineTune   *handler.FineTuneHandler
}

// Options tune the engine.
type Options struct {
	CORSOrigins        []string
	MaxMultipartMemory int64
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(h Handlers, log zerolog.Logger, opts Options) *gin.Engine {
	r := gin.New()
	if opts.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = opts.MaxMultipartMemory
	}

	// Global middleware
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(opts.CORSOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	v1 := r.Group("/api/v1")

	v1.GET("/backends", h.Validation.ListBackends)
	v1.POST("/validations", h.Validation.Validate)
	v1.POST("/comparisons", h.Validation.Compare)

	if h.FineTune != nil {
		ft := v1.Group("/finetune")
		ft.POST("/flags", h.FineTune.Flag)
		ft.GET("/flags", h.FineTune.ListFlagged)
		ft.GET("/flags/:id/download", h.FineTune.Download)
		ft.POST("/train", h.FineTune.Train)
	}

	return r
}
