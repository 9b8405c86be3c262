package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Artifact is the persisted output of one successful generation.
type Artifact struct {
	ID               uuid.UUID       `json:"id"`
	AccountID        uuid.UUID       `json:"account_id"`
	ModelID          uuid.UUID       `json:"model_id"`
	URL              string          `json:"url"`
	Prompt           string          `json:"prompt"`
	ProviderMetadata json.RawMessage `json:"provider_metadata,omitempty"`
	CreditsCharged   int             `json:"credits_charged"`
	CreatedAt        time.Time       `json:"created_at"`
}
