package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imageforge/backend/internal/models"
)

type ReservationRepo struct {
	pool *pgxpool.Pool
}

func NewReservationRepo(pool *pgxpool.Pool) *ReservationRepo {
	return &ReservationRepo{pool: pool}
}

func (r *ReservationRepo) CreateTx(ctx context.Context, tx pgx.Tx, res *models.Reservation) error {
	return tx.QueryRow(ctx, `
		INSERT INTO reservations (id, account_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, res.ID, res.AccountID, res.Amount, res.Status).Scan(&res.CreatedAt)
}

// GetForUpdate locks the reservation row. Call within a transaction.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := tx.QueryRow(ctx, `
		SELECT id, account_id, amount, status, created_at
		FROM reservations WHERE id = $1 FOR UPDATE
	`, id).Scan(&res.ID, &res.AccountID, &res.Amount, &res.Status, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `UPDATE reservations SET status = $2 WHERE id = $1`, id, status)
	return err
}
