package access

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultCapabilityTTL bounds how long an issued capability can be exchanged
// for bytes. Deliberately short and independent of the file's own expiry: the
// capability only proves a grant just happened, it is not a policy bypass.
const DefaultCapabilityTTL = 10 * time.Minute

// CapabilityIssuer mints and verifies the short-lived signed references the
// serve endpoint exchanges for a byte stream.
type CapabilityIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCapabilityIssuer(secret []byte, ttl time.Duration, now func() time.Time) *CapabilityIssuer {
	if ttl <= 0 {
		ttl = DefaultCapabilityTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CapabilityIssuer{secret: secret, ttl: ttl, now: now}
}

func (c *CapabilityIssuer) TTL() time.Duration {
	return c.ttl
}

func (c *CapabilityIssuer) Issue(fileID uuid.UUID, method string) (string, error) {
	claims := jwt.MapClaims{
		"sub":    fileID.String(),
		"method": method,
		"typ":    "capability",
		"iat":    c.now().Unix(),
		"exp":    c.now().Add(c.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign capability: %w", err)
	}
	return signed, nil
}

// Verify returns the file id and method a valid capability was issued for.
func (c *CapabilityIssuer) Verify(token string) (uuid.UUID, string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("parse capability: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, "", fmt.Errorf("invalid capability")
	}
	if typ, _ := claims["typ"].(string); typ != "capability" {
		return uuid.Nil, "", fmt.Errorf("not a capability token")
	}
	sub, _ := claims["sub"].(string)
	fileID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid capability subject")
	}
	method, _ := claims["method"].(string)
	return fileID, method, nil
}
