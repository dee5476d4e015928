package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"tutormarket/internal/auth"
	"tutormarket/internal/lifecycle"
	"tutormarket/internal/payments"
	"tutormarket/models"
)

// Ограничение размера тела, чтобы избежать DoS
const maxBodyBytes = 1048576

// Handler связывает HTTP-маршруты с сервисами маркетплейса
type Handler struct {
	Categories CategoryStore
	Projects   ProjectService
	Bids       BidService
	Classrooms ClassroomService
	Payments   PaymentService
	Payouts    PayoutService
	Profiles   ProfileService

	PageSize    int
	MaxPageSize int
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// PaginationParams - limit и offset из query
type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func (h *Handler) parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: h.PageSize}
	if params.Limit <= 0 {
		params.Limit = 5 // дефолт
	}
	maxLimit := h.MaxPageSize
	if maxLimit <= 0 {
		maxLimit = 50
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxLimit {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// decodeJSON читает тело запроса с ограничением размера. При ошибке ответ уже отправлен.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError переводит доменные ошибки в HTTP-статусы.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lifecycle.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, lifecycle.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, payments.ErrNotConfigured):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// urlID читает числовой параметр пути. При ошибке ответ уже отправлен.
func urlID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// requireUser возвращает аутентифицированного пользователя.
func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, auth.ErrMissingToken.Error(), http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}
