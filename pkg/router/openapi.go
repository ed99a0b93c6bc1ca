package router

import (
	"net/http"
	"os"

	"digital-clone/frontend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// setupDocsRoutes serves the backend description the client validates
// against
func (r *Router) setupDocsRoutes() {
	r.Engine.GET("/api/docs/backend.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", validator.Schema())
	})
	r.Logger.Debug("Backend schema available", "url", "/api/docs/backend.yaml")

	// Setup Swagger UI if available
	swaggerUIPath := os.Getenv("SWAGGER_UI_PATH")
	if swaggerUIPath != "" && dirExists(swaggerUIPath) {
		r.Engine.Static("/swagger-ui", swaggerUIPath)
		r.Logger.Info("Swagger UI available at", "url", "/swagger-ui/")
	}
}

// dirExists checks if a directory exists
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
