package Oauth

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"gorm.io/gorm"

	"github.com/vaultshare/backend/auth"
	"github.com/vaultshare/backend/initializers"
	"github.com/vaultshare/backend/models"
)

// InitStore configures the goth session store and the OAuth providers. The
// returned store must also be mounted as gin session middleware so
// CompleteAuth can persist its session data.
func InitStore() cookie.Store {
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET is not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   true,
	})
	gothic.Store = store

	provider := google.New(
		os.Getenv("GOOGLE_CLIENT_ID"),
		os.Getenv("GOOGLE_CLIENT_SECRET"),
		os.Getenv("GOOGLE_REDIRECT_URL"),
		"email",
		"profile",
	)
	provider.SetAccessType("offline")
	provider.SetPrompt("consent")

	goth.UseProviders(provider)
	return store
}

// Begin OAuth authentication
func OauthCallbackHandler(c *gin.Context) {
	provider := c.Param("provider")

	if provider == "google" {
		q := c.Request.URL.Query()
		q.Add("access_type", "offline")
		q.Add("prompt", "consent")
		c.Request.URL.RawQuery = q.Encode()
	}

	// Goth expects the provider to be in the URL query
	q := c.Request.URL.Query()
	q.Add("provider", provider)
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// Complete OAuth authentication: find or create the account, mint the JWT
// pair and hand the consumer back to the frontend.
func CompleteAuth(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Add("provider", c.Param("provider"))
	c.Request.URL.RawQuery = q.Encode()

	gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		log.Printf("Auth error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	user, err := findOrCreateOAuthUser(gothUser)
	if err != nil {
		log.Printf("Database error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process user data"})
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(user.ID.String())
	if err != nil {
		log.Printf("Token generation error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		HttpOnly: true,
		Secure:   true,
		Path:     "/api/auth/refresh",
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})

	session := sessions.Default(c)
	session.Set("authenticated", true)
	session.Set("user_id", user.ID.String())
	if err := session.Save(); err != nil {
		log.Printf("Session save error: %v", err)
		// session is a convenience, JWT auth already succeeded
	}

	log.Printf("OAuth authentication successful for user: %s", user.Email)

	frontendURL := os.Getenv("FRONTEND_URL")
	redirectURL := fmt.Sprintf("%s/auth/success?token=%s", frontendURL, accessToken)
	c.Redirect(http.StatusTemporaryRedirect, redirectURL)
}

func findOrCreateOAuthUser(gothUser goth.User) (*models.User, error) {
	var user models.User

	var err error
	switch gothUser.Provider {
	case "google":
		err = initializers.DB.Where("google_id = ?", gothUser.UserID).First(&user).Error
	case "github":
		err = initializers.DB.Where("git_hub_id = ?", gothUser.UserID).First(&user).Error
	default:
		return nil, fmt.Errorf("unsupported provider: %s", gothUser.Provider)
	}

	if err == nil {
		return updateExistingOAuthUser(&user, gothUser)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("database query error: %v", err)
	}

	// Not known by OAuth id; link by email when the account already exists.
	err = initializers.DB.Where("email = ?", gothUser.Email).First(&user).Error
	if err == nil {
		return linkOAuthToExistingUser(&user, gothUser)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("database query error: %v", err)
	}

	return createNewOAuthUser(gothUser)
}

func updateExistingOAuthUser(user *models.User, gothUser goth.User) (*models.User, error) {
	updates := map[string]interface{}{
		"name":       gothUser.Name,
		"avatar_url": gothUser.AvatarURL,
	}

	switch gothUser.Provider {
	case "google":
		updates["google_access_token"] = gothUser.AccessToken
		if gothUser.RefreshToken != "" {
			updates["google_refresh_token"] = gothUser.RefreshToken
		}
		if !gothUser.ExpiresAt.IsZero() {
			updates["google_token_expires_at"] = gothUser.ExpiresAt
		}
	case "github":
		updates["git_hub_access_token"] = gothUser.AccessToken
		if !gothUser.ExpiresAt.IsZero() {
			updates["git_hub_token_expires_at"] = gothUser.ExpiresAt
		}
	}

	if err := initializers.DB.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %v", err)
	}
	return user, nil
}

func linkOAuthToExistingUser(user *models.User, gothUser goth.User) (*models.User, error) {
	updates := map[string]interface{}{
		"name":       gothUser.Name,
		"avatar_url": gothUser.AvatarURL,
		"provider":   gothUser.Provider,
	}

	switch gothUser.Provider {
	case "google":
		updates["google_id"] = gothUser.UserID
		updates["google_access_token"] = gothUser.AccessToken
		if gothUser.RefreshToken != "" {
			updates["google_refresh_token"] = gothUser.RefreshToken
		}
		if !gothUser.ExpiresAt.IsZero() {
			updates["google_token_expires_at"] = gothUser.ExpiresAt
		}
	case "github":
		updates["git_hub_id"] = gothUser.UserID
		updates["git_hub_access_token"] = gothUser.AccessToken
		if !gothUser.ExpiresAt.IsZero() {
			updates["git_hub_token_expires_at"] = gothUser.ExpiresAt
		}
	}

	if err := initializers.DB.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to link OAuth account: %v", err)
	}
	return user, nil
}

func createNewOAuthUser(gothUser goth.User) (*models.User, error) {
	user := models.User{
		ID:        uuid.New(),
		Email:     gothUser.Email,
		Name:      gothUser.Name,
		AvatarURL: gothUser.AvatarURL,
		Provider:  &gothUser.Provider,
	}

	switch gothUser.Provider {
	case "google":
		user.GoogleID = &gothUser.UserID
		user.GoogleAccessToken = &gothUser.AccessToken
		if gothUser.RefreshToken != "" {
			user.GoogleRefreshToken = &gothUser.RefreshToken
		}
		if !gothUser.ExpiresAt.IsZero() {
			user.GoogleTokenExpiresAt = &gothUser.ExpiresAt
		}
	case "github":
		user.GitHubID = &gothUser.UserID
		user.GitHubAccessToken = &gothUser.AccessToken
		if !gothUser.ExpiresAt.IsZero() {
			user.GitHubTokenExpiresAt = &gothUser.ExpiresAt
		}
	}

	if err := initializers.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %v", err)
	}
	return &user, nil
}
