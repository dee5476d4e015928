package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"tutormarket/models"
)

type contextKey string

const userKey contextKey = "user"

// UserGetter загружает пользователя, указанного в токене.
type UserGetter interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
}

// UserFromContext возвращает аутентифицированного пользователя или nil.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// RequireAuth требует валидный Bearer-токен и загружает пользователя в контекст.
func RequireAuth(jwtManager *JWTManager, users UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticate(r, jwtManager, users)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth загружает пользователя, если токен передан и валиден.
// Анонимные запросы проходят без пользователя в контексте.
func OptionalAuth(jwtManager *JWTManager, users UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := authenticate(r, jwtManager, users)
			if err != nil {
				slog.Debug("optional auth rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func authenticate(r *http.Request, jwtManager *JWTManager, users UserGetter) (*models.User, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, ErrInvalidToken
	}

	claims, err := jwtManager.Validate(parts[1])
	if err != nil {
		return nil, err
	}
	user, err := users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		slog.Warn("token user lookup failed", "user_id", claims.UserID, "error", err)
		return nil, ErrInvalidToken
	}
	// Роль в токене должна совпадать с ролью в базе.
	if user.Role != claims.Role {
		return nil, ErrInvalidToken
	}
	return user, nil
}
