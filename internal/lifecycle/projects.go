package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"tutormarket/internal/metrics"
	"tutormarket/models"
)

// ProjectInput - редактируемые поля проекта. nil означает "не менять".
type ProjectInput struct {
	Title          *string             `json:"title"`
	CategoryID     *int                `json:"categoryId"`
	Description    *string             `json:"description"`
	ProjectType    *models.ProjectType `json:"projectType"`
	BudgetType     *models.BudgetType  `json:"budgetType"`
	Budget         *models.Money       `json:"budget"`
	RequiredSkills *[]string           `json:"requiredSkills"`
}

// Manager управляет публикацией, выбором исполнителя и завершением проектов.
type Manager struct {
	store   Store
	metrics *metrics.Metrics
}

func NewManager(store Store, m *metrics.Metrics) *Manager {
	return &Manager{store: store, metrics: m}
}

// Create создаёт проект студента: черновик, либо сразу опубликованный при publish.
func (m *Manager) Create(ctx context.Context, student *models.User, in ProjectInput, publish bool) (*models.Project, error) {
	if student.Role != models.RoleStudent {
		return nil, invalidState("only students can create projects")
	}
	p := &models.Project{
		StudentID:   student.ID,
		ProjectType: models.ProjectOneTime,
		BudgetType:  models.BudgetFixed,
		Published:   publish,
	}
	applyProjectInput(p, in)
	if err := m.validate(ctx, p, true); err != nil {
		return nil, err
	}

	err := m.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateProject(ctx, p); err != nil {
			return err
		}
		return tx.SetProjectSkills(ctx, p.ID, p.RequiredSkills)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create project")
	}

	m.metrics.ProjectTransition(string(Status(p)))
	slog.Info("project created", "project_id", p.ID, "student_id", p.StudentID, "status", Status(p))
	return p, nil
}

// Get возвращает проект. Черновик виден только автору, остальным - NotFound.
func (m *Manager) Get(ctx context.Context, viewer *models.User, id int) (*models.Project, error) {
	p, err := m.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Published && (viewer == nil || viewer.ID != p.StudentID) {
		return nil, NotFound("project", id)
	}
	return p, nil
}

// Update применяет правки автора. Завершённый проект не редактируется.
func (m *Manager) Update(ctx context.Context, owner *models.User, id int, in ProjectInput) (*models.Project, error) {
	if in.CategoryID != nil {
		if err := m.checkCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
	}

	var p *models.Project
	err := m.store.InTx(ctx, func(tx Tx) error {
		var err error
		p, err = tx.LockProject(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(p, owner); err != nil {
			return err
		}
		if Status(p) == models.StatusClosed {
			return invalidState("closed projects can't be edited")
		}
		applyProjectInput(p, in)
		if err := validateProject(p); err != nil {
			return err
		}
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		if in.RequiredSkills != nil {
			return tx.SetProjectSkills(ctx, p.ID, p.RequiredSkills)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Save сохраняет проект как есть. Хранилище пересчитывает кэш is_awarded,
// поэтому ручная правка флага исправляется при следующем сохранении.
func (m *Manager) Save(ctx context.Context, p *models.Project) error {
	return m.store.InTx(ctx, func(tx Tx) error {
		return tx.UpdateProject(ctx, p)
	})
}

// Publish переводит черновик в открытый проект.
func (m *Manager) Publish(ctx context.Context, owner *models.User, id int) (*models.Project, error) {
	return m.transition(ctx, owner, id, func(p *models.Project) error {
		if Status(p) != models.StatusDraft {
			return invalidState("only draft projects can be published")
		}
		p.Published = true
		return nil
	})
}

// Complete закрывает опубликованный проект вне зависимости от выбора исполнителя.
func (m *Manager) Complete(ctx context.Context, owner *models.User, id int) (*models.Project, error) {
	return m.transition(ctx, owner, id, func(p *models.Project) error {
		switch Status(p) {
		case models.StatusDraft:
			return invalidState("draft projects can't be completed")
		case models.StatusClosed:
			return invalidState("project is already closed")
		}
		p.Completed = true
		return nil
	})
}

func (m *Manager) transition(ctx context.Context, owner *models.User, id int, apply func(p *models.Project) error) (*models.Project, error) {
	var p *models.Project
	err := m.store.InTx(ctx, func(tx Tx) error {
		var err error
		p, err = tx.LockProject(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(p, owner); err != nil {
			return err
		}
		if err := apply(p); err != nil {
			return err
		}
		return tx.UpdateProject(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	m.metrics.ProjectTransition(string(Status(p)))
	slog.Info("project status changed", "project_id", p.ID, "status", Status(p))
	return p, nil
}

// CurrentTutor возвращает репетитора выбранного предложения, если оно есть.
func (m *Manager) CurrentTutor(ctx context.Context, p *models.Project) (int, bool, error) {
	bids, err := m.store.ListAwardedBids(ctx, p.ID)
	if err != nil {
		return 0, false, err
	}
	tutorID, ok := CurrentTutor(bids)
	return tutorID, ok, nil
}

// List возвращает опубликованные проекты по фильтру.
func (m *Manager) List(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	if f.Status == models.StatusDraft {
		return []models.Project{}, nil
	}
	f.StudentID, f.TutorID, f.Drafts = 0, 0, false
	return m.store.ListProjects(ctx, f)
}

// Dashboard возвращает проекты студента (вместе с черновиками) или проекты,
// на которые репетитор подавал предложения.
func (m *Manager) Dashboard(ctx context.Context, user *models.User, f ProjectFilter) ([]models.Project, error) {
	f.StudentID, f.TutorID, f.Drafts = 0, 0, false
	switch user.Role {
	case models.RoleStudent:
		f.StudentID = user.ID
		f.Drafts = true
	case models.RoleTutor:
		f.TutorID = user.ID
		if f.Status == models.StatusDraft {
			return []models.Project{}, nil
		}
	default:
		return nil, invalidState("unknown role %q", user.Role)
	}
	return m.store.ListProjects(ctx, f)
}

func (m *Manager) validate(ctx context.Context, p *models.Project, checkCategory bool) error {
	if err := validateProject(p); err != nil {
		return err
	}
	if checkCategory {
		return m.checkCategory(ctx, p.CategoryID)
	}
	return nil
}

func (m *Manager) checkCategory(ctx context.Context, id int) error {
	ok, err := m.store.CategoryExists(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check category")
	}
	if !ok {
		return invalid("category %d does not exist", id)
	}
	return nil
}

func requireOwner(p *models.Project, user *models.User) error {
	if user == nil || p.StudentID != user.ID {
		return invalidState("you don't have permission to change this project")
	}
	return nil
}

func applyProjectInput(p *models.Project, in ProjectInput) {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.ProjectType != nil {
		p.ProjectType = *in.ProjectType
	}
	if in.BudgetType != nil {
		p.BudgetType = *in.BudgetType
	}
	if in.Budget != nil {
		budget := *in.Budget
		p.Budget = &budget
	}
	if in.RequiredSkills != nil {
		p.RequiredSkills = cleanSkills(*in.RequiredSkills)
	}
}

func validateProject(p *models.Project) error {
	if p.Title == "" || utf8.RuneCountInString(p.Title) > 100 {
		return invalid("title is required and max length 100")
	}
	if p.Description == "" {
		return invalid("description is required")
	}
	if p.CategoryID <= 0 {
		return invalid("categoryId must be positive")
	}
	if !models.ValidProjectType(p.ProjectType) {
		return invalid("invalid projectType %q", p.ProjectType)
	}
	if !models.ValidBudgetType(p.BudgetType) {
		return invalid("invalid budgetType %q", p.BudgetType)
	}
	if p.Budget != nil && *p.Budget < 0 {
		return invalid("budget must not be negative")
	}
	for _, s := range p.RequiredSkills {
		if utf8.RuneCountInString(s) > 100 {
			return invalid("skill %q is longer than 100 characters", s)
		}
	}
	return nil
}

func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
