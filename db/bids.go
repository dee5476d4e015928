package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"tutormarket/models"
)

const bidColumns = `id, project_id, tutor_id, description, budget_type, budget_cents,
	awarded, declined, created_at, modified_at`

// GetBid получает предложение по ID
func (q queries) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	var b models.Bid
	if err := q.get(ctx, &b, "SELECT "+bidColumns+" FROM bid WHERE id = ?", id); err != nil {
		return nil, lookupErr(err, "bid", id)
	}
	return &b, nil
}

// CreateBid создаёт предложение
func (q queries) CreateBid(ctx context.Context, b *models.Bid) error {
	b.CreatedAt = now()
	b.ModifiedAt = b.CreatedAt
	query := `INSERT INTO bid (project_id, tutor_id, description, budget_type, budget_cents,
	          awarded, declined, created_at, modified_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := q.insert(ctx, &b.ID, query,
		b.ProjectID, b.TutorID, b.Description, b.BudgetType, b.Budget,
		b.Awarded, b.Declined, b.CreatedAt, b.ModifiedAt)
	return errors.Wrapf(err, "insert bid for project %d", b.ProjectID)
}

// UpdateBid сохраняет изменяемые поля предложения
func (q queries) UpdateBid(ctx context.Context, b *models.Bid) error {
	b.ModifiedAt = now()
	query := `UPDATE bid
	          SET description = ?, budget_type = ?, budget_cents = ?, awarded = ?, declined = ?, modified_at = ?
	          WHERE id = ?`
	res, err := q.exec(ctx, query, b.Description, b.BudgetType, b.Budget, b.Awarded, b.Declined, b.ModifiedAt, b.ID)
	if err != nil {
		return errors.Wrapf(err, "update bid %d", b.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lookupErr(sql.ErrNoRows, "bid", b.ID)
	}
	return nil
}

// ListProjectBids возвращает предложения проекта, новые первыми.
func (q queries) ListProjectBids(ctx context.Context, projectID int) ([]models.Bid, error) {
	bids := []models.Bid{}
	err := q.selectAll(ctx, &bids,
		"SELECT "+bidColumns+" FROM bid WHERE project_id = ? ORDER BY created_at DESC, id DESC", projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "list bids of project %d", projectID)
	}
	return bids, nil
}

// ListAwardedBids возвращает выбранные предложения в порядке создания.
func (q queries) ListAwardedBids(ctx context.Context, projectID int) ([]models.Bid, error) {
	bids := []models.Bid{}
	err := q.selectAll(ctx, &bids,
		"SELECT "+bidColumns+" FROM bid WHERE project_id = ? AND awarded = ? ORDER BY created_at, id", projectID, true)
	if err != nil {
		return nil, errors.Wrapf(err, "list awarded bids of project %d", projectID)
	}
	return bids, nil
}

// ListTutorBids возвращает предложения репетитора с пагинацией.
func (q queries) ListTutorBids(ctx context.Context, tutorID int, limit, offset int) ([]models.Bid, error) {
	query := "SELECT " + bidColumns + " FROM bid WHERE tutor_id = ? ORDER BY created_at DESC, id DESC"
	args := []interface{}{tutorID}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	bids := []models.Bid{}
	if err := q.selectAll(ctx, &bids, query, args...); err != nil {
		return nil, errors.Wrapf(err, "list bids of tutor %d", tutorID)
	}
	return bids, nil
}

func (q queries) CountAwardedBids(ctx context.Context, projectID, exceptBidID int) (int, error) {
	var n int
	err := q.get(ctx, &n, "SELECT COUNT(1) FROM bid WHERE project_id = ? AND awarded = ? AND id <> ?",
		projectID, true, exceptBidID)
	if err != nil {
		return 0, errors.Wrapf(err, "count awarded bids of project %d", projectID)
	}
	return n, nil
}

// AppendBidHistory записывает снимок предложения следующей версией журнала.
// Вызывается под блокировкой проекта, поэтому версии не конкурируют.
func (q queries) AppendBidHistory(ctx context.Context, b *models.Bid, event models.BidEvent) error {
	var version int
	if err := q.get(ctx, &version, "SELECT COALESCE(MAX(version), 0) + 1 FROM bid_history WHERE bid_id = ?", b.ID); err != nil {
		return errors.Wrapf(err, "next history version of bid %d", b.ID)
	}
	query := `INSERT INTO bid_history (bid_id, version, event, description, budget_type, budget_cents,
	          awarded, declined, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.exec(ctx, query, b.ID, version, event, b.Description, b.BudgetType, b.Budget,
		b.Awarded, b.Declined, now())
	return errors.Wrapf(err, "append history of bid %d", b.ID)
}

// GetBidHistory возвращает журнал предложения по возрастанию версий.
func (q queries) GetBidHistory(ctx context.Context, bidID int) ([]models.BidHistory, error) {
	history := []models.BidHistory{}
	query := `SELECT id, bid_id, version, event, description, budget_type, budget_cents, awarded, declined, created_at
	          FROM bid_history WHERE bid_id = ? ORDER BY version`
	if err := q.selectAll(ctx, &history, query, bidID); err != nil {
		return nil, errors.Wrapf(err, "get history of bid %d", bidID)
	}
	return history, nil
}
