package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imageforge/backend/internal/models"
)

type ModelRepo struct {
	pool *pgxpool.Pool
}

func NewModelRepo(pool *pgxpool.Pool) *ModelRepo {
	return &ModelRepo{pool: pool}
}

const modelColumns = `id, name, provider, provider_model_id, credit_cost, is_active, max_resolution, avg_generation_ms, created_at, updated_at`

func scanModel(row pgx.Row) (*models.Model, error) {
	var m models.Model
	err := row.Scan(&m.ID, &m.Name, &m.Provider, &m.ProviderModelID, &m.CreditCost, &m.IsActive, &m.MaxResolution, &m.AvgGenerationMs, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ModelRepo) Create(ctx context.Context, m *models.Model) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO generation_models (id, name, provider, provider_model_id, credit_cost, is_active, max_resolution, avg_generation_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, m.ID, m.Name, m.Provider, m.ProviderModelID, m.CreditCost, m.IsActive, m.MaxResolution, m.AvgGenerationMs).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *ModelRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	return scanModel(r.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM generation_models WHERE id = $1`, id))
}

func (r *ModelRepo) Update(ctx context.Context, m *models.Model) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE generation_models SET name = $2, provider = $3, provider_model_id = $4, credit_cost = $5, is_active = $6, max_resolution = $7, avg_generation_ms = $8, updated_at = now()
		WHERE id = $1
	`, m.ID, m.Name, m.Provider, m.ProviderModelID, m.CreditCost, m.IsActive, m.MaxResolution, m.AvgGenerationMs)
	return err
}

func (r *ModelRepo) ListActive(ctx context.Context) ([]*models.Model, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+modelColumns+` FROM generation_models WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *ModelRepo) List(ctx context.Context) ([]*models.Model, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+modelColumns+` FROM generation_models ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
