package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/imageforge/backend/internal/models"
	"github.com/imageforge/backend/internal/provider"
)

type memModels struct {
	byID map[uuid.UUID]*models.Model
}

func newMemModels() *memModels {
	return &memModels{byID: make(map[uuid.UUID]*models.Model)}
}

func (m *memModels) Create(_ context.Context, model *models.Model) error {
	cp := *model
	m.byID[model.ID] = &cp
	return nil
}

func (m *memModels) GetByID(_ context.Context, id uuid.UUID) (*models.Model, error) {
	model, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *model
	return &cp, nil
}

func (m *memModels) Update(_ context.Context, model *models.Model) error {
	if _, ok := m.byID[model.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *model
	m.byID[model.ID] = &cp
	return nil
}

func (m *memModels) List(_ context.Context) ([]*models.Model, error) {
	out := make([]*models.Model, 0, len(m.byID))
	for _, model := range m.byID {
		cp := *model
		out = append(out, &cp)
	}
	return out, nil
}

func TestCreateModel(t *testing.T) {
	svc := NewService(newMemModels())

	m, err := svc.CreateModel(context.Background(), "Flux Pro", provider.ProviderFlux, "flux-pro-1.1", 8, "1440x1440")
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}
	if !m.IsActive {
		t.Error("new model should be active")
	}
	if m.CreditCost != 8 {
		t.Errorf("credit cost: got %d, want 8", m.CreditCost)
	}
}

func TestCreateModelRejectsUnknownProvider(t *testing.T) {
	svc := NewService(newMemModels())

	_, err := svc.CreateModel(context.Background(), "Mystery", "midjourney", "v6", 5, "")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestCreateModelRejectsNonPositiveCost(t *testing.T) {
	svc := NewService(newMemModels())

	if _, err := svc.CreateModel(context.Background(), "Free Lunch", provider.ProviderMock, "mock-v1", 0, ""); err == nil {
		t.Fatal("expected error for zero credit cost")
	}
}

func TestUpdateModelDeactivates(t *testing.T) {
	store := newMemModels()
	svc := NewService(store)
	m, err := svc.CreateModel(context.Background(), "Mock v1", provider.ProviderMock, "mock-v1", 5, "")
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}

	m.IsActive = false
	if err := svc.UpdateModel(context.Background(), m); err != nil {
		t.Fatalf("UpdateModel: %v", err)
	}
	stored, _ := store.GetByID(context.Background(), m.ID)
	if stored.IsActive {
		t.Error("model should be inactive after update")
	}
}
