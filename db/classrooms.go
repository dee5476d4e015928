package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"tutormarket/models"
)

const classroomColumns = "id, project_id, session_id, created_at, modified_at"

// GetClassroom получает класс по ID
func (q queries) GetClassroom(ctx context.Context, id int) (*models.Classroom, error) {
	var c models.Classroom
	if err := q.get(ctx, &c, "SELECT "+classroomColumns+" FROM classroom WHERE id = ?", id); err != nil {
		return nil, lookupErr(err, "classroom", id)
	}
	return &c, nil
}

// GetClassroomByProject получает класс проекта
func (q queries) GetClassroomByProject(ctx context.Context, projectID int) (*models.Classroom, error) {
	var c models.Classroom
	if err := q.get(ctx, &c, "SELECT "+classroomColumns+" FROM classroom WHERE project_id = ?", projectID); err != nil {
		return nil, lookupErr(err, "classroom of project", projectID)
	}
	return &c, nil
}

// SaveClassroom сохраняет класс, если у проекта его ещё нет, и возвращает
// сохранённую запись. При гонке побеждает первая вставка.
func (q queries) SaveClassroom(ctx context.Context, c *models.Classroom) (*models.Classroom, error) {
	c.CreatedAt = now()
	c.ModifiedAt = c.CreatedAt
	query := `INSERT INTO classroom (project_id, session_id, created_at, modified_at)
	          VALUES (?, ?, ?, ?)
	          ON CONFLICT (project_id) DO NOTHING
	          RETURNING id`
	err := q.insert(ctx, &c.ID, query, c.ProjectID, c.SessionID, c.CreatedAt, c.ModifiedAt)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, sql.ErrNoRows):
		return q.GetClassroomByProject(ctx, c.ProjectID)
	default:
		return nil, errors.Wrapf(err, "insert classroom for project %d", c.ProjectID)
	}
}

// AddChatMessage сохраняет сообщение чата класса
func (q queries) AddChatMessage(ctx context.Context, m *models.ChatMessage) error {
	m.CreatedAt = now()
	query := `INSERT INTO chat_message (classroom_id, user_id, message, created_at) VALUES (?, ?, ?, ?) RETURNING id`
	err := q.insert(ctx, &m.ID, query, m.ClassroomID, m.UserID, m.Message, m.CreatedAt)
	return errors.Wrapf(err, "insert chat message into classroom %d", m.ClassroomID)
}

// ListChatMessages возвращает сообщения класса в порядке отправки.
func (q queries) ListChatMessages(ctx context.Context, classroomID int) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	query := `SELECT id, classroom_id, user_id, message, created_at
	          FROM chat_message WHERE classroom_id = ? ORDER BY created_at, id`
	if err := q.selectAll(ctx, &messages, query, classroomID); err != nil {
		return nil, errors.Wrapf(err, "list messages of classroom %d", classroomID)
	}
	return messages, nil
}
