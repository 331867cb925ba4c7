package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vaultshare/backend/auth"
	"github.com/vaultshare/backend/initializers"
	"github.com/vaultshare/backend/models"
)

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func Register(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:        body.Email,
		Name:         body.Name,
		PasswordHash: string(hashBytes),
	}
	if err := initializers.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	respondWithTokens(c, &user, http.StatusCreated)
}

func Login(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	var user models.User
	err := initializers.DB.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(body.Email))).Error
	if err == gorm.ErrRecordNotFound || (err == nil && bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	respondWithTokens(c, &user, http.StatusOK)
}

// RefreshToken exchanges a valid refresh token (cookie or body) for a fresh
// pair.
func RefreshToken(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.RefreshToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token required"})
			return
		}
		refresh = body.RefreshToken
	}

	userID, err := auth.ValidateRefreshToken(refresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	var user models.User
	if err := initializers.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
		return
	}

	respondWithTokens(c, &user, http.StatusOK)
}

func respondWithTokens(c *gin.Context, user *models.User, status int) {
	accessToken, refreshToken, err := auth.GenerateTokens(user.ID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(status, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}
