package router

import (
	"net/http"
	"slices"
	"time"

	"digital-clone/frontend/pkg/config"
	"digital-clone/frontend/pkg/di"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the web front
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a router with the middleware chain every page shares
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.Warn("Invalid trusted proxies, trusting none", "error", err.Error())
		_ = engine.SetTrustedProxies(nil)
	}
	engine.SetHTMLTemplate(container.Templates)

	// Request id first so the request logger carries it
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.setupHealthRoutes()
	r.setupDocsRoutes()
	r.Engine.GET(r.Config.Observability.MetricsPath, gin.WrapH(r.Container.MetricsProvider.Handler()))

	// Audio URLs are capability links; they skip the session but not the limiter
	r.Engine.GET("/audio/:id", r.Container.RateLimiter.Middleware(), r.Container.Registry.Handler())

	pages := r.Engine.Group("/")
	pages.Use(r.Container.Sessions.Middleware())
	pages.Use(r.Container.RateLimiter.Middleware())
	r.Container.Handler.Register(pages)
}

// corsMiddleware only answers cross-origin requests from allowed origins
func corsMiddleware(allowed []string) gin.HandlerFunc {
	wildcard := slices.Contains(allowed, "*")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (wildcard || slices.Contains(allowed, origin)) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, X-Request-ID, Origin, Upgrade, Connection, Cache-Control")
			c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection, X-Request-ID")
			c.Writer.Header().Set("Access-Control-Max-Age", "86400")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
