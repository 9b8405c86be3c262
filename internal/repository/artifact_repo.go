package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imageforge/backend/internal/models"
)

type ArtifactRepo struct {
	pool *pgxpool.Pool
}

func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

// CreateTx inserts the artifact inside the given transaction so the insert
// can share a commit with the ledger's spent entry.
func (r *ArtifactRepo) CreateTx(ctx context.Context, tx pgx.Tx, a *models.Artifact) error {
	return tx.QueryRow(ctx, `
		INSERT INTO artifacts (id, account_id, model_id, url, prompt, provider_metadata, credits_charged)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, a.ID, a.AccountID, a.ModelID, a.URL, a.Prompt, a.ProviderMetadata, a.CreditsCharged).Scan(&a.CreatedAt)
}

func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	var a models.Artifact
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, model_id, url, prompt, provider_metadata, credits_charged, created_at
		FROM artifacts WHERE id = $1
	`, id).Scan(&a.ID, &a.AccountID, &a.ModelID, &a.URL, &a.Prompt, &a.ProviderMetadata, &a.CreditsCharged, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ArtifactRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Artifact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, model_id, url, prompt, provider_metadata, credits_charged, created_at
		FROM artifacts WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Artifact
	for rows.Next() {
		var a models.Artifact
		if err := rows.Scan(&a.ID, &a.AccountID, &a.ModelID, &a.URL, &a.Prompt, &a.ProviderMetadata, &a.CreditsCharged, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
