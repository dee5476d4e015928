package handlers

import (
	"context"
	"net/http"
	"strconv"

	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

// projectView - проект с вычисляемыми полями для ответа API
type projectView struct {
	*models.Project
	Status        models.Status `json:"status"`
	BudgetDisplay string        `json:"budgetDisplay"`
}

type bidView struct {
	models.Bid
	BudgetDisplay string `json:"budgetDisplay"`
	CanEdit       bool   `json:"canEdit"`
}

type projectDetail struct {
	projectView
	TutorID *int      `json:"tutorId"`
	Bids    []bidView `json:"bids"`
}

func newProjectView(p *models.Project) projectView {
	return projectView{
		Project:       p,
		Status:        lifecycle.Status(p),
		BudgetDisplay: lifecycle.BudgetDisplay(p.Budget, p.BudgetType),
	}
}

func newProjectViews(projects []models.Project) []projectView {
	views := make([]projectView, 0, len(projects))
	for i := range projects {
		views = append(views, newProjectView(&projects[i]))
	}
	return views
}

func newBidView(b models.Bid, p *models.Project) bidView {
	return bidView{
		Bid:           b,
		BudgetDisplay: lifecycle.BudgetDisplay(b.Budget, b.BudgetType),
		CanEdit:       lifecycle.CanEdit(&b, p),
	}
}

// GetCategoriesHandler возвращает справочник категорий
func (h *Handler) GetCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Categories.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// parseProjectFilter читает фильтры c (категория) и s (статус). При ошибке ответ уже отправлен.
func (h *Handler) parseProjectFilter(w http.ResponseWriter, r *http.Request) (lifecycle.ProjectFilter, bool) {
	params := h.parsePaginationParams(r)
	f := lifecycle.ProjectFilter{Limit: params.Limit, Offset: params.Offset}

	if c := r.URL.Query().Get("c"); c != "" {
		id, err := strconv.Atoi(c)
		if err != nil || id <= 0 {
			http.Error(w, "Invalid category filter", http.StatusBadRequest)
			return f, false
		}
		f.CategoryID = id
	}
	if s := r.URL.Query().Get("s"); s != "" {
		status, ok := models.ParseStatus(s)
		if !ok {
			http.Error(w, "Invalid status filter", http.StatusBadRequest)
			return f, false
		}
		f.Status = status
	}
	return f, true
}

// GetProjectsHandler возвращает опубликованные проекты, новые первыми
func (h *Handler) GetProjectsHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := h.parseProjectFilter(w, r)
	if !ok {
		return
	}
	projects, err := h.Projects.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectViews(projects))
}

// GetMyProjectsHandler возвращает проекты студента или проекты с предложениями репетитора
func (h *Handler) GetMyProjectsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	f, ok := h.parseProjectFilter(w, r)
	if !ok {
		return
	}
	projects, err := h.Projects.Dashboard(r.Context(), user, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectViews(projects))
}

type createProjectRequest struct {
	lifecycle.ProjectInput
	Publish bool `json:"publish"`
}

// CreateProjectHandler обрабатывает POST /api/projects/new
func (h *Handler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Projects.Create(r.Context(), user, req.ProjectInput, req.Publish)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProjectView(p))
}

// GetProjectHandler возвращает проект с текущим репетитором и видимыми предложениями
func (h *Handler) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "projectId")
	if !ok {
		return
	}
	p, err := h.Projects.Get(r.Context(), viewer, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	detail := projectDetail{projectView: newProjectView(p), Bids: []bidView{}}
	tutorID, awarded, err := h.Projects.CurrentTutor(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if awarded {
		detail.TutorID = &tutorID
	}
	bids, err := h.Bids.VisibleBids(r.Context(), viewer, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, b := range bids {
		detail.Bids = append(detail.Bids, newBidView(b, p))
	}
	writeJSON(w, http.StatusOK, detail)
}

// EditProjectHandler применяет правки автора проекта
func (h *Handler) EditProjectHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "projectId")
	if !ok {
		return
	}
	var in lifecycle.ProjectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.Projects.Update(r.Context(), user, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(p))
}

// PublishProjectHandler переводит черновик в Open
func (h *Handler) PublishProjectHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Projects.Publish)
}

// CompleteProjectHandler закрывает проект
func (h *Handler) CompleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Projects.Complete)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, owner *models.User, id int) (*models.Project, error)) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "projectId")
	if !ok {
		return
	}
	p, err := apply(r.Context(), user, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(p))
}
