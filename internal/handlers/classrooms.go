package handlers

import (
	"net/http"
)

// OpenClassroomHandler открывает класс проекта: сессия, токен входа и чат
func (h *Handler) OpenClassroomHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	projectID, ok := urlID(w, r, "projectId")
	if !ok {
		return
	}
	project, err := h.Projects.Get(r.Context(), user, projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.Classrooms.Open(r.Context(), user, project)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type postMessageRequest struct {
	Message string `json:"message"`
}

// PostMessageHandler добавляет сообщение в чат класса
func (h *Handler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	classroomID, ok := urlID(w, r, "classroomId")
	if !ok {
		return
	}
	var req postMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.Classrooms.Post(r.Context(), user, classroomID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
