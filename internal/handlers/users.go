package handlers

import (
	"net/http"

	"tutormarket/internal/profiles"
)

// GetProfileHandler возвращает профиль пользователя
func (h *Handler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "userId")
	if !ok {
		return
	}

	p, err := h.Profiles.Get(r.Context(), user, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetMyProfileHandler возвращает профиль текущего пользователя
func (h *Handler) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	p, err := h.Profiles.Get(r.Context(), user, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// EditProfileHandler меняет имя и email текущего пользователя
func (h *Handler) EditProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in profiles.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := h.Profiles.Update(r.Context(), user, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
