package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imageforge/backend/internal/models"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// CreateTx appends a transaction inside the given database transaction.
// Rows are append-only: there is no update or delete path.
func (r *CreditRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, account_id, artifact_id, kind, amount, description, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, c.ID, c.AccountID, c.ArtifactID, c.Kind, c.Amount, c.Description, c.BalanceAfter).Scan(&c.CreatedAt)
}

func (r *CreditRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, artifact_id, kind, amount, description, balance_after, created_at
		FROM credit_transactions WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var c models.CreditTransaction
		if err := rows.Scan(&c.ID, &c.AccountID, &c.ArtifactID, &c.Kind, &c.Amount, &c.Description, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

// SumSpentToday returns the total of spent transactions for the account
// since midnight UTC. Used by the daily spend cap.
func (r *CreditRepo) SumSpentToday(ctx context.Context, accountID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_transactions
		WHERE account_id = $1 AND kind = 'spent' AND created_at >= CURRENT_DATE
	`, accountID).Scan(&total)
	return total, err
}
