package db

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

const projectColumns = `p.id, p.student_id, p.title, p.category_id, p.description, p.project_type,
	p.budget_type, p.budget_cents, p.published, p.is_awarded, p.completed, p.created_at, p.modified_at`

// GetProject получает проект вместе с требуемыми навыками
func (q queries) GetProject(ctx context.Context, id int) (*models.Project, error) {
	return q.getProject(ctx, id, "")
}

// LockProject читает проект с блокировкой строки до конца транзакции.
func (t *txStorage) LockProject(ctx context.Context, id int) (*models.Project, error) {
	return t.getProject(ctx, id, t.forUpdate())
}

func (q queries) getProject(ctx context.Context, id int, lock string) (*models.Project, error) {
	var p models.Project
	err := q.get(ctx, &p, "SELECT "+projectColumns+" FROM project p WHERE p.id = ?"+lock, id)
	if err != nil {
		return nil, lookupErr(err, "project", id)
	}
	skills, err := q.projectSkills(ctx, id)
	if err != nil {
		return nil, err
	}
	p.RequiredSkills = skills
	return &p, nil
}

func (q queries) projectSkills(ctx context.Context, projectID int) ([]string, error) {
	skills := []string{}
	err := q.selectAll(ctx, &skills, "SELECT name FROM project_skill WHERE project_id = ? ORDER BY id", projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "get skills of project %d", projectID)
	}
	return skills, nil
}

// CreateProject создаёт проект. Новый проект не может быть выбран.
func (q queries) CreateProject(ctx context.Context, p *models.Project) error {
	p.CreatedAt = now()
	p.ModifiedAt = p.CreatedAt
	p.IsAwarded = false
	query := `INSERT INTO project (student_id, title, category_id, description, project_type, budget_type,
	          budget_cents, published, is_awarded, completed, created_at, modified_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := q.insert(ctx, &p.ID, query,
		p.StudentID, p.Title, p.CategoryID, p.Description, p.ProjectType, p.BudgetType,
		p.Budget, p.Published, p.IsAwarded, p.Completed, p.CreatedAt, p.ModifiedAt)
	return errors.Wrap(err, "insert project")
}

// UpdateProject сохраняет проект. is_awarded пересчитывается тем же запросом
// по текущему набору предложений, значение из p игнорируется.
func (q queries) UpdateProject(ctx context.Context, p *models.Project) error {
	p.ModifiedAt = now()
	query := `UPDATE project
	          SET title = ?, category_id = ?, description = ?, project_type = ?, budget_type = ?,
	              budget_cents = ?, published = ?, completed = ?, modified_at = ?,
	              is_awarded = EXISTS (SELECT 1 FROM bid WHERE bid.project_id = project.id AND bid.awarded = ?)
	          WHERE id = ?
	          RETURNING is_awarded`
	err := q.ext.QueryRowxContext(ctx, q.rebind(query),
		p.Title, p.CategoryID, p.Description, p.ProjectType, p.BudgetType,
		p.Budget, p.Published, p.Completed, p.ModifiedAt, true, p.ID).Scan(&p.IsAwarded)
	if err != nil {
		return lookupErr(err, "project", p.ID)
	}
	return nil
}

// SetProjectSkills заменяет список требуемых навыков проекта.
func (q queries) SetProjectSkills(ctx context.Context, projectID int, skills []string) error {
	if _, err := q.exec(ctx, "DELETE FROM project_skill WHERE project_id = ?", projectID); err != nil {
		return errors.Wrapf(err, "clear skills of project %d", projectID)
	}
	for _, name := range skills {
		if _, err := q.exec(ctx, "INSERT INTO project_skill (project_id, name) VALUES (?, ?)", projectID, name); err != nil {
			return errors.Wrapf(err, "add skill %q to project %d", name, projectID)
		}
	}
	return nil
}

// ListProjects возвращает проекты по фильтру, новые первыми.
func (q queries) ListProjects(ctx context.Context, f lifecycle.ProjectFilter) ([]models.Project, error) {
	var where []string
	var args []interface{}

	if !f.Drafts || f.StudentID == 0 {
		where = append(where, "p.published = ?")
		args = append(args, true)
	}
	if f.StudentID > 0 {
		where = append(where, "p.student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.TutorID > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM bid b WHERE b.project_id = p.id AND b.tutor_id = ?)")
		args = append(args, f.TutorID)
	}
	if f.CategoryID > 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}

	// Условия повторяют порядок проверок lifecycle.Status.
	switch f.Status {
	case models.StatusDraft:
		where = append(where, "p.published = ?")
		args = append(args, false)
	case models.StatusClosed:
		where = append(where, "p.published = ? AND p.completed = ?")
		args = append(args, true, true)
	case models.StatusAwarded:
		where = append(where, "p.published = ? AND p.completed = ? AND p.is_awarded = ?")
		args = append(args, true, false, true)
	case models.StatusOpen:
		where = append(where, "p.published = ? AND p.completed = ? AND p.is_awarded = ?")
		args = append(args, true, false, false)
	}

	query := "SELECT " + projectColumns + " FROM project p"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	projects := []models.Project{}
	if err := q.selectAll(ctx, &projects, query, args...); err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	return projects, nil
}
