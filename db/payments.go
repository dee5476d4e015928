package db

import (
	"context"

	"github.com/pkg/errors"

	"tutormarket/models"
)

// CreateTransaction сохраняет проведённый платёж
func (q queries) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	t.CreatedAt = now()
	t.ModifiedAt = t.CreatedAt
	query := `INSERT INTO payment_transaction (project_id, charge_id, description, currency,
	          total_amount, gateway_fee, platform_fee, created_at, modified_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := q.insert(ctx, &t.ID, query,
		t.ProjectID, t.ChargeID, t.Description, t.Currency,
		t.TotalAmount, t.GatewayFee, t.PlatformFee, t.CreatedAt, t.ModifiedAt)
	return errors.Wrapf(err, "insert transaction for charge %s", t.ChargeID)
}

// GetTransaction получает платёж по ID
func (q queries) GetTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	var t models.Transaction
	query := `SELECT id, project_id, charge_id, description, currency, total_amount, gateway_fee,
	          platform_fee, created_at, modified_at
	          FROM payment_transaction WHERE id = ?`
	if err := q.get(ctx, &t, query, id); err != nil {
		return nil, lookupErr(err, "transaction", id)
	}
	return &t, nil
}

// ListProjectTransactions возвращает платежи проекта в порядке проведения.
func (q queries) ListProjectTransactions(ctx context.Context, projectID int) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	query := `SELECT id, project_id, charge_id, description, currency, total_amount, gateway_fee,
	          platform_fee, created_at, modified_at
	          FROM payment_transaction WHERE project_id = ? ORDER BY created_at, id`
	if err := q.selectAll(ctx, &transactions, query, projectID); err != nil {
		return nil, errors.Wrapf(err, "list transactions of project %d", projectID)
	}
	return transactions, nil
}
