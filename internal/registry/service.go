package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/imageforge/backend/internal/models"
	"github.com/imageforge/backend/internal/provider"
)

// ErrUnknownProvider is returned when a model names a provider no adapter
// exists for.
var ErrUnknownProvider = errors.New("unknown provider")

// ModelStore is the catalog persistence the service needs.
type ModelStore interface {
	Create(ctx context.Context, m *models.Model) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Model, error)
	Update(ctx context.Context, m *models.Model) error
	List(ctx context.Context) ([]*models.Model, error)
}

type Service interface {
	CreateModel(ctx context.Context, name, providerName, providerModelID string, creditCost int, maxResolution string) (*models.Model, error)
	UpdateModel(ctx context.Context, m *models.Model) error
	ListModels(ctx context.Context) ([]*models.Model, error)
}

type service struct {
	repo ModelStore
}

func NewService(repo ModelStore) *service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

var knownProviders = map[string]bool{
	provider.ProviderOpenAI: true,
	provider.ProviderGoogle: true,
	provider.ProviderFlux:   true,
	provider.ProviderMock:   true,
}

func (s *service) CreateModel(ctx context.Context, name, providerName, providerModelID string, creditCost int, maxResolution string) (*models.Model, error) {
	if !knownProviders[providerName] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	if creditCost <= 0 {
		return nil, errors.New("credit_cost must be > 0")
	}
	m := &models.Model{
		ID:              uuid.New(),
		Name:            name,
		Provider:        providerName,
		ProviderModelID: providerModelID,
		CreditCost:      creditCost,
		IsActive:        true,
		MaxResolution:   maxResolution,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *service) UpdateModel(ctx context.Context, m *models.Model) error {
	if !knownProviders[m.Provider] {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, m.Provider)
	}
	if m.CreditCost <= 0 {
		return errors.New("credit_cost must be > 0")
	}
	return s.repo.Update(ctx, m)
}

func (s *service) ListModels(ctx context.Context) ([]*models.Model, error) {
	return s.repo.List(ctx)
}
