package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tutormarket/internal/auth"
	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

type users map[int]*models.User

func (u users) GetUser(ctx context.Context, id int) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, lifecycle.NotFound("user", id)
}

func TestJWTManager(t *testing.T) {
	m := auth.NewJWTManager("secret", time.Hour)
	token, err := m.Generate(&models.User{ID: 3, Role: models.RoleTutor})
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	require.Equal(t, 3, claims.UserID)
	require.Equal(t, models.RoleTutor, claims.Role)

	_, err = auth.NewJWTManager("other", time.Hour).Validate(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	expired, err := auth.NewJWTManager("secret", -time.Minute).Generate(&models.User{ID: 3, Role: models.RoleTutor})
	require.NoError(t, err)
	_, err = m.Validate(expired)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	anonymous, err := m.Generate(&models.User{Role: models.RoleTutor})
	require.NoError(t, err)
	_, err = m.Validate(anonymous)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	m := auth.NewJWTManager("secret", time.Hour)
	known := users{
		1: {ID: 1, Username: "alice", Role: models.RoleStudent},
		2: {ID: 2, Username: "bob", Role: models.RoleTutor},
	}
	aliceToken, err := m.Generate(known[1])
	require.NoError(t, err)
	// Роль в токене не совпадает с ролью в базе.
	forged, err := m.Generate(&models.User{ID: 2, Role: models.RoleStudent})
	require.NoError(t, err)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := auth.UserFromContext(r.Context()); u != nil {
			w.Write([]byte(u.Username))
			return
		}
		w.Write([]byte("anonymous"))
	})

	tests := []struct {
		name     string
		mw       func(http.Handler) http.Handler
		header   string
		wantCode int
		wantBody string
	}{
		{"required ok", auth.RequireAuth(m, known), "Bearer " + aliceToken, http.StatusOK, "alice"},
		{"required missing", auth.RequireAuth(m, known), "", http.StatusUnauthorized, ""},
		{"required wrong scheme", auth.RequireAuth(m, known), "Basic " + aliceToken, http.StatusUnauthorized, ""},
		{"required role mismatch", auth.RequireAuth(m, known), "Bearer " + forged, http.StatusUnauthorized, ""},
		{"optional anonymous", auth.OptionalAuth(m, known), "", http.StatusOK, "anonymous"},
		{"optional ok", auth.OptionalAuth(m, known), "Bearer " + aliceToken, http.StatusOK, "alice"},
		{"optional invalid", auth.OptionalAuth(m, known), "Bearer garbage", http.StatusOK, "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			tt.mw(echo).ServeHTTP(rr, req)

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantBody != "" {
				require.Equal(t, tt.wantBody, rr.Body.String())
			}
		})
	}
}
