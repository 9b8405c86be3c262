package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imageforge/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, email, name, company, password_hash, credit_balance, hold_credits, subscription_tier, max_per_request, max_per_day, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Company, &a.PasswordHash, &a.CreditBalance, &a.HoldCredits, &a.SubscriptionTier, &a.MaxPerRequest, &a.MaxPerDay, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, name, company, password_hash, credit_balance, hold_credits, subscription_tier, max_per_request, max_per_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.Name, a.Company, a.PasswordHash, a.CreditBalance, a.HoldCredits, a.SubscriptionTier, a.MaxPerRequest, a.MaxPerDay).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

func (r *AccountRepo) Update(ctx context.Context, a *models.Account) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET email = $2, name = $3, company = $4, password_hash = $5, subscription_tier = $6, max_per_request = $7, max_per_day = $8, updated_at = now()
		WHERE id = $1
	`, a.ID, a.Email, a.Name, a.Company, a.PasswordHash, a.SubscriptionTier, a.MaxPerRequest, a.MaxPerDay)
	return err
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// HoldCredits atomically moves amount from credit_balance into hold_credits
// if the balance covers it. Returns pgx.ErrNoRows when the balance is short.
func (r *AccountRepo) HoldCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) error {
	result, err := tx.Exec(ctx, `
		UPDATE accounts SET credit_balance = credit_balance - $1, hold_credits = hold_credits + $1, updated_at = now()
		WHERE id = $2 AND credit_balance >= $1
	`, amount, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ClearHold removes amount from hold_credits without returning it to the
// balance. Used when a reservation is committed.
func (r *AccountRepo) ClearHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET hold_credits = hold_credits - $1, updated_at = now()
		WHERE id = $2
		RETURNING credit_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// ReturnHold moves amount back from hold_credits into credit_balance.
// Used when a reservation is released.
func (r *AccountRepo) ReturnHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET hold_credits = hold_credits - $1, credit_balance = credit_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING credit_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// AddCredits adds amount to the account balance and returns the new balance.
func (r *AccountRepo) AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET credit_balance = credit_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING credit_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}
