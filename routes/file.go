package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/vaultshare/backend/auth/middleware"
	"github.com/vaultshare/backend/handlers"
)

func RegisterFileRoutes(r *gin.Engine) {
	fileGroup := r.Group("/api/files")
	fileGroup.Use(middleware.AuthRequired())

	fileGroup.POST("/upload", handlers.UploadFile)
	fileGroup.GET("/", handlers.ListFiles)
	fileGroup.GET("/:id/logs", handlers.FileLogs)
	fileGroup.GET("/:id/qr", handlers.FileQR)
	fileGroup.POST("/:id/share", handlers.ShareFile)
	fileGroup.POST("/:id/deactivate", handlers.DeactivateFile)
	fileGroup.DELETE("/:id", handlers.DeleteFile)
}
