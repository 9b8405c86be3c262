package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/imageforge/backend/internal/generation"
	"github.com/imageforge/backend/internal/middleware"
	"github.com/imageforge/backend/internal/models"
	"github.com/imageforge/backend/internal/provider"
)

const generationSchema = "generation.v1"

// Generator runs a generation synchronously in the request goroutine.
type Generator interface {
	Generate(ctx context.Context, accountID, modelID uuid.UUID, prompt string, settings provider.Settings) (*models.Artifact, error)
}

// Enqueuer schedules a generation for background execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, accountID, modelID uuid.UUID, prompt string, settings provider.Settings) (*models.Generation, error)
}

// GenerationReader loads persisted async generations.
type GenerationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error)
}

// ModelLister lists the models offered to users.
type ModelLister interface {
	ListActive(ctx context.Context) ([]*models.Model, error)
}

// GenerationHandler serves /v1/generations and /v1/models.
type GenerationHandler struct {
	Generator   Generator
	Enqueuer    Enqueuer
	Generations GenerationReader
	Models      ModelLister
	Validator   *Validator
	Logger      *slog.Logger
}

type generationRequest struct {
	ModelID  string            `json:"model_id"`
	Prompt   string            `json:"prompt"`
	Settings provider.Settings `json:"settings"`
	Mode     string            `json:"mode"`
}

type artifactResponse struct {
	ArtifactID     string          `json:"artifact_id"`
	URL            string          `json:"url"`
	CreditsCharged int             `json:"credits_charged"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

type queuedResponse struct {
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
}

// Create handles POST /v1/generations.
// Auth -> SpendCheck (via middleware) -> Validate Schema -> run sync or enqueue.
func (h *GenerationHandler) Create(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}
	if err := h.Validator.Validate(generationSchema, body); err != nil {
		if errors.Is(err, ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	var req generationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	modelID, err := uuid.Parse(req.ModelID)
	if err != nil {
		http.Error(w, `{"error":"invalid model_id"}`, http.StatusBadRequest)
		return
	}

	if req.Mode == "async" {
		g, err := h.Enqueuer.Enqueue(r.Context(), acc.ID, modelID, req.Prompt, req.Settings)
		if err != nil {
			h.writeGenerationError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{GenerationID: g.ID.String(), Status: g.Status})
		return
	}

	artifact, err := h.Generator.Generate(r.Context(), acc.ID, modelID, req.Prompt, req.Settings)
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, artifactResponse{
		ArtifactID:     artifact.ID.String(),
		URL:            artifact.URL,
		CreditsCharged: artifact.CreditsCharged,
		Metadata:       artifact.ProviderMetadata,
	})
}

// Get handles GET /v1/generations/{id}.
func (h *GenerationHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := extractGenerationID(r)
	if !ok {
		http.Error(w, `{"error":"invalid generation id"}`, http.StatusBadRequest)
		return
	}

	g, err := h.Generations.GetByID(r.Context(), id)
	if err != nil || g.AccountID != acc.ID {
		http.Error(w, `{"error":"generation not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ListModels handles GET /v1/models (public, no auth).
func (h *GenerationHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.Models.ListActive(r.Context())
	if err != nil {
		h.Logger.Error("list models", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Model{}
	}
	writeJSON(w, http.StatusOK, list)
}

// writeGenerationError maps orchestrator failure kinds to HTTP statuses.
func (h *GenerationHandler) writeGenerationError(w http.ResponseWriter, err error) {
	var genErr *generation.Error
	if !errors.As(err, &genErr) {
		h.Logger.Error("generation failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch genErr.Kind {
	case generation.KindInvalidRequest:
		status = http.StatusBadRequest
	case generation.KindInsufficientCredits:
		status = http.StatusPaymentRequired
	case generation.KindProviderTransient:
		status = http.StatusServiceUnavailable
	case generation.KindProviderPermanent:
		status = http.StatusBadGateway
	case generation.KindTimedOut:
		status = http.StatusGatewayTimeout
	case generation.KindStorageFailure:
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		h.Logger.Error("generation failed", "kind", genErr.Kind, "error", genErr)
	}
	writeJSON(w, status, map[string]string{"error": genErr.Reason, "kind": string(genErr.Kind)})
}

// extractGenerationID parses the generation UUID from the URL path.
func extractGenerationID(r *http.Request) (uuid.UUID, bool) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/generations/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
