package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/vaultshare/backend/auth/middleware"
	"github.com/vaultshare/backend/handlers"
)

// RegisterAccessRoutes mounts the public access surface. Identity comes from
// an optional Bearer token; anonymous callers are keyed by IP.
func RegisterAccessRoutes(r *gin.Engine) {
	accessGroup := r.Group("/api/access")
	accessGroup.Use(middleware.AuthOptional())

	accessGroup.POST("/validate", handlers.ValidateAccess)
	accessGroup.POST("/grant", handlers.GrantAccess)
	accessGroup.GET("/serve/:capability", handlers.ServeFile)
}
