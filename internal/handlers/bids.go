package handlers

import (
	"context"
	"net/http"

	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

type submitBidRequest struct {
	Description string        `json:"description"`
	Budget      *models.Money `json:"budget"`
}

// CreateBidHandler обрабатывает POST /api/projects/{projectId}/bids
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlID(w, r, "projectId")
	if !ok {
		return
	}
	var req submitBidRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	bid, err := h.Bids.Submit(r.Context(), user, projectID, req.Description, req.Budget)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// GetUserBidsHandler возвращает предложения текущего репетитора
func (h *Handler) GetUserBidsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	params := h.parsePaginationParams(r)

	bids, err := h.Bids.TutorBids(r.Context(), user, params.Limit, params.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// EditBidHandler применяет правки репетитора, пока проект открыт
func (h *Handler) EditBidHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	bidID, ok := urlID(w, r, "bidId")
	if !ok {
		return
	}
	var in lifecycle.BidInput
	if !decodeJSON(w, r, &in) {
		return
	}

	bid, err := h.Bids.Edit(r.Context(), user, bidID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// GetBidHistoryHandler возвращает журнал предложения
func (h *Handler) GetBidHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	bidID, ok := urlID(w, r, "bidId")
	if !ok {
		return
	}

	history, err := h.Bids.History(r.Context(), user, bidID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// AwardBidHandler выбирает предложение
func (h *Handler) AwardBidHandler(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Bids.Award)
}

// DeclineBidHandler отклоняет предложение
func (h *Handler) DeclineBidHandler(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Bids.Decline)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, student *models.User, projectID, bidID int) (*models.Bid, error)) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlID(w, r, "projectId")
	if !ok {
		return
	}
	bidID, ok := urlID(w, r, "bidId")
	if !ok {
		return
	}

	bid, err := apply(r.Context(), user, projectID, bidID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}
