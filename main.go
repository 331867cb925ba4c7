package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	Oauth "github.com/vaultshare/backend/auth/Oauth"
	"github.com/vaultshare/backend/auth/middleware"
	"github.com/vaultshare/backend/handlers"
	"github.com/vaultshare/backend/initializers"
	"github.com/vaultshare/backend/jobs"
	"github.com/vaultshare/backend/notifications"
	"github.com/vaultshare/backend/routes"
)

const defaultPort = "8080"

func main() {
	initializers.LoadEnv()
	initializers.ConnectToDatabase()
	initializers.InitAWS()
	sessionStore := Oauth.InitStore()
	handlers.InitAccessEngine()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	jobs.StartCleanupJob()
	jobs.StartNotificationJob(notifications.LogSender{})

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("FRONTEND_URL")},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(
		sessions.Sessions("vaultshare_session", sessionStore),
		middleware.RateLimitMiddleware(),
	)

	routes.RegisterAuthRoutes(router)
	routes.RegisterFileRoutes(router)
	routes.RegisterAccessRoutes(router)

	log.Printf("listening on http://localhost:%s", port)
	log.Fatal(router.Run(":" + port))
}
