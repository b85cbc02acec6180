package token

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of tokens presented to the provisioning authority.
const DefaultTTL = time.Minute

// Claims are the claims of a provisioning bearer token. The subject is the
// telegram id of the user being provisioned.
type Claims struct {
	jwt.RegisteredClaims
	Force bool `json:"force,omitempty"`
}

// JWT issues HS256 bearer tokens for the provisioning authority.
type JWT struct {
	secretKey string
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewJWT creates a new JWT issuer with the provided secret key.
func NewJWT(secretKey, issuer string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWT{secretKey: secretKey, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue creates a short-lived token scoped to one provisioning request.
func (j *JWT) Issue(telegramID int64, force bool) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.issuer,
			Subject:   strconv.FormatInt(telegramID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		Force: force,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign provisioning token: %w", err)
	}

	return tokenString, nil
}

// Parse validates a token and returns its claims. The authority side of the
// protocol uses it; the bot only issues.
func (j *JWT) Parse(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse provisioning token: %w", err)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("provisioning token is invalid")
	}
	return claims, nil
}
