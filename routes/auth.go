package routes

import (
	"github.com/gin-gonic/gin"

	Oauth "github.com/vaultshare/backend/auth/Oauth"
	"github.com/vaultshare/backend/handlers"
)

func RegisterAuthRoutes(r *gin.Engine) {
	authGroup := r.Group("/api/auth")

	authGroup.POST("/register", handlers.Register)
	authGroup.POST("/login", handlers.Login)
	authGroup.POST("/refresh", handlers.RefreshToken)

	authGroup.GET("/:provider", Oauth.OauthCallbackHandler)
	authGroup.GET("/:provider/callback", Oauth.CompleteAuth)
}
