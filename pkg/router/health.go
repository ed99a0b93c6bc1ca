package router

import (
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	checks := r.Container.Health.HTTPHandler()

	// Liveness answers as long as the process serves requests
	r.Engine.GET("/livez", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "uptime": time.Since(startTime).Round(time.Second).String()})
	})

	// Readiness reports the backend, the session store and the chat sockets
	r.Engine.GET("/health", gin.WrapF(checks))
	r.Engine.GET("/api/health", gin.WrapF(checks))

	r.Engine.GET("/api/health/details", func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		c.JSON(200, gin.H{
			"version":   os.Getenv("APP_VERSION"),
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(startTime).Round(time.Second).String(),
			"websocket": gin.H{
				"active_connections": r.Container.Hub.ActiveConnections(),
				"audio_urls":         r.Container.Registry.Len(),
			},
			"backend": r.Container.Breaker.Stats(),
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	})
}
