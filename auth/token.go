package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateTokens mints the short-lived access token and long-lived refresh
// token pair for a signed-in user.
func GenerateTokens(userID string) (accessToken string, refreshToken string, err error) {
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Minute * 15).Unix(),
		"typ": "access",
	})
	accessToken, err = access.SignedString(jwtSecret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %v", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour * 24 * 30).Unix(),
		"typ": "refresh",
	})
	refreshToken, err = refresh.SignedString(jwtSecret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %v", err)
	}

	return accessToken, refreshToken, nil
}

// ValidateToken returns the user id a valid token was issued for.
func ValidateToken(tokenStr string) (string, error) {
	return validateTyped(tokenStr, "access")
}

// ValidateRefreshToken accepts only refresh tokens, so a leaked short-lived
// access token cannot be replayed against the refresh endpoint.
func ValidateRefreshToken(tokenStr string) (string, error) {
	return validateTyped(tokenStr, "refresh")
}

func validateTyped(tokenStr, wantTyp string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if typ, _ := claims["typ"].(string); typ != wantTyp {
		return "", fmt.Errorf("wrong token type")
	}
	userID, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("invalid sub claim")
	}
	return userID, nil
}
