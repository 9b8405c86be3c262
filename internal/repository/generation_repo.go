package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imageforge/backend/internal/models"
)

type GenerationRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRepo(pool *pgxpool.Pool) *GenerationRepo {
	return &GenerationRepo{pool: pool}
}

const generationColumns = `id, account_id, model_id, prompt, settings, status, artifact_id, failure_kind, failure_reason, created_at, updated_at`

func scanGeneration(row pgx.Row) (*models.Generation, error) {
	var g models.Generation
	err := row.Scan(&g.ID, &g.AccountID, &g.ModelID, &g.Prompt, &g.Settings, &g.Status, &g.ArtifactID, &g.FailureKind, &g.FailureReason, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateTx inserts the generation record inside the given transaction so it
// commits together with the queue job insert.
func (r *GenerationRepo) CreateTx(ctx context.Context, tx pgx.Tx, g *models.Generation) error {
	return tx.QueryRow(ctx, `
		INSERT INTO generations (id, account_id, model_id, prompt, settings, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, g.ID, g.AccountID, g.ModelID, g.Prompt, g.Settings, g.Status).Scan(&g.CreatedAt, &g.UpdatedAt)
}

func (r *GenerationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	return scanGeneration(r.pool.QueryRow(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = $1`, id))
}

func (r *GenerationRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE generations SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

func (r *GenerationRepo) MarkCompleted(ctx context.Context, id, artifactID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE generations SET status = $2, artifact_id = $3, updated_at = now() WHERE id = $1
	`, id, models.GenerationStatusCompleted, artifactID)
	return err
}

func (r *GenerationRepo) MarkFailed(ctx context.Context, id uuid.UUID, kind, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE generations SET status = $2, failure_kind = $3, failure_reason = $4, updated_at = now() WHERE id = $1
	`, id, models.GenerationStatusFailed, kind, reason)
	return err
}

func (r *GenerationRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Generation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+generationColumns+` FROM generations WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}
