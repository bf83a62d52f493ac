// pkg/utils/jwt.go
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "aso-store"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrInvalidToken)
)

// SessionPayload содержимое сессионного токена
type SessionPayload struct {
	UserID      string
	Role        string
	AnonymousID string
}

// Claims JWT-представление SessionPayload
type Claims struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	AnonymousID string `json:"anonymousId,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec подписывает и проверяет сессионные токены.
// Секрет передается один раз при создании и больше не меняется.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL срок жизни выпускаемых токенов
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

func (c *TokenCodec) Sign(payload SessionPayload) (string, error) {
	now := c.now()
	claims := Claims{
		UserID:      payload.UserID,
		Role:        payload.Role,
		AnonymousID: payload.AnonymousID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Issuer:    tokenIssuer,
			Subject:   payload.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (c *TokenCodec) Verify(tokenString string) (*SessionPayload, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return &SessionPayload{
		UserID:      claims.UserID,
		Role:        claims.Role,
		AnonymousID: claims.AnonymousID,
	}, nil
}
