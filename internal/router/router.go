package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/students-api/api/swagger"
	"github.com/noah-isme/students-api/internal/handler"
	"github.com/noah-isme/students-api/internal/middleware"
	"github.com/noah-isme/students-api/internal/service"
	"github.com/noah-isme/students-api/pkg/config"
	"github.com/noah-isme/students-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/students-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/students-api/pkg/middleware/requestid"
)

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *service.MetricsService
	Students *handler.StudentHandler
	System   *handler.MetricsHandler
}

// New builds the gin engine with middleware and every route registered.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.RedirectTrailingSlash = true
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(corsmiddleware.DefaultOptions(cfg.CORS.AllowedOrigins)))
	r.Use(middleware.Metrics(deps.Metrics))

	if deps.System != nil {
		r.GET("/health", deps.System.Health)
		r.GET("/ready", deps.System.Ready)
		r.GET("/metrics", deps.System.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if deps.Students != nil {
		api := r.Group(cfg.APIPrefix)
		students := api.Group("/students")
		students.GET("/", deps.Students.List)
		students.POST("/", deps.Students.Create)
		students.GET("/export", deps.Students.Export)
		students.GET("/:id/", deps.Students.Get)
		students.PUT("/:id/", deps.Students.Update)
		students.PATCH("/:id/", deps.Students.Update)
		students.DELETE("/:id/", deps.Students.Delete)
	}

	return r
}
