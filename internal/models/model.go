package models

import (
	"time"

	"github.com/google/uuid"
)

// Model is a generation model offered to users. Read-only to the
// orchestration core; the registry admin endpoints own mutation.
type Model struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Provider        string    `json:"provider"`
	ProviderModelID string    `json:"provider_model_id"`
	CreditCost      int       `json:"credit_cost"`
	IsActive        bool      `json:"is_active"`
	MaxResolution   string    `json:"max_resolution"`
	AvgGenerationMs int       `json:"avg_generation_ms"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
