package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Generation statuses for the async request mode.
const (
	GenerationStatusQueued    = "queued"
	GenerationStatusRunning   = "running"
	GenerationStatusCompleted = "completed"
	GenerationStatusFailed    = "failed"
)

// Generation is a persisted async generation request. Synchronous requests
// never create one; they run entirely in the request goroutine.
type Generation struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	ModelID       uuid.UUID       `json:"model_id"`
	Prompt        string          `json:"prompt"`
	Settings      json.RawMessage `json:"settings,omitempty"`
	Status        string          `json:"status"`
	ArtifactID    *uuid.UUID      `json:"artifact_id,omitempty"`
	FailureKind   *string         `json:"failure_kind,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
