package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

const userColumns = "id, username, email, first_name, last_name, role, payout_account, created_at, updated_at"

// CreateUser создаёт пользователя
func (q queries) CreateUser(ctx context.Context, u *models.User) error {
	if !models.ValidRole(u.Role) {
		return errors.Errorf("invalid role %q", u.Role)
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	query := `INSERT INTO users (username, email, first_name, last_name, role, payout_account, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := q.insert(ctx, &u.ID, query,
		u.Username, u.Email, u.FirstName, u.LastName, u.Role, u.PayoutAccount, u.CreatedAt, u.UpdatedAt)
	return errors.Wrapf(err, "create user %s", u.Username)
}

// GetUser получает пользователя по ID
func (q queries) GetUser(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return nil, lookupErr(err, "user", id)
	}
	return &u, nil
}

// GetUserByUsername получает пользователя по имени
func (q queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE username = ?", username); err != nil {
		return nil, lookupErr(err, "user", username)
	}
	return &u, nil
}

// SetPayoutAccount сохраняет подключённый аккаунт выплат репетитора.
// Уже подключённый аккаунт не перезаписывается.
func (q queries) SetPayoutAccount(ctx context.Context, userID int, account string) error {
	res, err := q.exec(ctx,
		"UPDATE users SET payout_account = ?, updated_at = ? WHERE id = ? AND payout_account = ''",
		account, now(), userID)
	if err != nil {
		return errors.Wrapf(err, "set payout account for user %d", userID)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := q.GetUser(ctx, userID); err != nil {
		return err
	}
	return errors.Wrapf(lifecycle.ErrInvalidState, "user %d already has a payout account", userID)
}

// UpdateProfile сохраняет имя и email пользователя.
func (q queries) UpdateProfile(ctx context.Context, u *models.User) error {
	u.UpdatedAt = now()
	res, err := q.exec(ctx, "UPDATE users SET first_name = ?, last_name = ?, email = ?, updated_at = ? WHERE id = ?",
		u.FirstName, u.LastName, u.Email, u.UpdatedAt, u.ID)
	if err != nil {
		return errors.Wrapf(err, "update profile of user %d", u.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lookupErr(sql.ErrNoRows, "user", u.ID)
	}
	return nil
}

func (q queries) CreateCategory(ctx context.Context, c *models.Category) error {
	c.CreatedAt = now()
	c.ModifiedAt = c.CreatedAt
	query := `INSERT INTO category (title, description, created_at, modified_at) VALUES (?, ?, ?, ?) RETURNING id`
	err := q.insert(ctx, &c.ID, query, c.Title, c.Description, c.CreatedAt, c.ModifiedAt)
	return errors.Wrapf(err, "create category %s", c.Title)
}

// ListCategories возвращает все категории по алфавиту.
func (q queries) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := q.selectAll(ctx, &categories,
		"SELECT id, title, description, created_at, modified_at FROM category ORDER BY title, id")
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

func (q queries) CategoryExists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := q.get(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM category WHERE id = ?)", id)
	if err != nil {
		return false, errors.Wrapf(err, "check category %d", id)
	}
	return exists, nil
}
