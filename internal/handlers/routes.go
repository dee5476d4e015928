package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tutormarket/internal/auth"
)

// NewRouter собирает маршруты API. metrics может быть nil.
func NewRouter(h *Handler, jwt *auth.JWTManager, users auth.UserGetter, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		// Публичные маршруты: пользователь в контексте, если передан токен
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(jwt, users))
			r.Get("/categories", h.GetCategoriesHandler)
			r.Get("/projects", h.GetProjectsHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(jwt, users))
			// проекты
			r.Get("/projects/my", h.GetMyProjectsHandler)
			r.Post("/projects/new", h.CreateProjectHandler)
			r.Get("/projects/{projectId}", h.GetProjectHandler)
			r.Patch("/projects/{projectId}/edit", h.EditProjectHandler)
			r.Put("/projects/{projectId}/publish", h.PublishProjectHandler)
			r.Put("/projects/{projectId}/complete", h.CompleteProjectHandler)
			// предложения
			r.Post("/projects/{projectId}/bids", h.CreateBidHandler)
			r.Put("/projects/{projectId}/bids/{bidId}/award", h.AwardBidHandler)
			r.Put("/projects/{projectId}/bids/{bidId}/decline", h.DeclineBidHandler)
			r.Get("/bids/my", h.GetUserBidsHandler)
			r.Patch("/bids/{bidId}/edit", h.EditBidHandler)
			r.Get("/bids/{bidId}/history", h.GetBidHistoryHandler)
			// класс и платежи
			r.Get("/projects/{projectId}/classroom", h.OpenClassroomHandler)
			r.Post("/classrooms/{classroomId}/messages", h.PostMessageHandler)
			r.Post("/projects/{projectId}/payments", h.CreatePaymentHandler)
			r.Get("/payments/{transactionId}", h.GetPaymentHandler)
			r.Get("/payouts/connect", h.ConnectPayoutHandler)
			r.Get("/payouts/connect/callback", h.ConnectPayoutCallbackHandler)
			// профили
			r.Get("/users/me", h.GetMyProfileHandler)
			r.Patch("/users/me", h.EditProfileHandler)
			r.Get("/users/{userId}", h.GetProfileHandler)
		})
	})
	return r
}

// RequestLogger пишет каждый запрос в slog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			slog.Error("request", attrs...)
			return
		}
		slog.Info("request", attrs...)
	})
}
