package classroom

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Provisioner создаёт сессии совместной работы и выдаёт токены для входа в них.
type Provisioner interface {
	CreateSession(ctx context.Context, projectID int) (string, error)
	Token(sessionID string, userID int) (string, error)
}

// SessionClaims - утверждения токена входа в сессию.
type SessionClaims struct {
	SessionID string `json:"session_id"`
	UserID    int    `json:"user_id"`
	jwt.RegisteredClaims
}

// LocalProvisioner выдаёт UUID сессий и подписывает токены входа HS256.
type LocalProvisioner struct {
	secret []byte
	ttl    time.Duration
}

func NewLocalProvisioner(secret string, ttl time.Duration) *LocalProvisioner {
	return &LocalProvisioner{secret: []byte(secret), ttl: ttl}
}

func (p *LocalProvisioner) CreateSession(ctx context.Context, projectID int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

func (p *LocalProvisioner) Token(sessionID string, userID int) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		SessionID: sessionID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprint(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// ParseToken проверяет токен входа и возвращает его утверждения.
func (p *LocalProvisioner) ParseToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}
