package handlers

import (
	"net/http"
)

type paymentRequest struct {
	Amount string `json:"amount"`
	Token  string `json:"token"`
}

// CreatePaymentHandler проводит оплату текущему репетитору проекта
func (h *Handler) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlID(w, r, "projectId")
	if !ok {
		return
	}
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	project, err := h.Projects.Get(r.Context(), user, projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.Payments.Pay(r.Context(), user, project, req.Amount, req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetPaymentHandler возвращает платёж участнику проекта
func (h *Handler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "transactionId")
	if !ok {
		return
	}

	t, err := h.Payments.Get(r.Context(), user, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ConnectPayoutHandler отправляет репетитора на страницу подключения аккаунта выплат
func (h *Handler) ConnectPayoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	url, err := h.Payouts.Start(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// ConnectPayoutCallbackHandler сохраняет аккаунт по коду, с которым вернулся репетитор
func (h *Handler) ConnectPayoutCallbackHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	// Отказ пользователя приходит параметром error вместо code
	if reason := q.Get("error"); reason != "" {
		http.Error(w, "Payout account was not connected: "+reason, http.StatusBadRequest)
		return
	}

	u, err := h.Payouts.Complete(r.Context(), user, q.Get("code"), q.Get("state"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u, "payoutConnected": true})
}
