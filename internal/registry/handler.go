package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/imageforge/backend/internal/auth"
	"github.com/imageforge/backend/internal/models"
)

type CreateModelRequest struct {
	Name            string `json:"name"`
	Provider        string `json:"provider"`
	ProviderModelID string `json:"provider_model_id"`
	CreditCost      int    `json:"credit_cost"`
	MaxResolution   string `json:"max_resolution"`
}

type UpdateModelRequest struct {
	Name            *string `json:"name"`
	ProviderModelID *string `json:"provider_model_id"`
	CreditCost      *int    `json:"credit_cost"`
	IsActive        *bool   `json:"is_active"`
	MaxResolution   *string `json:"max_resolution"`
}

// Handler serves the model catalog admin endpoints. Authentication is JWT;
// models are managed from the dashboard, not via API keys.
type Handler struct {
	svc     Service
	repo    ModelStore
	authSvc auth.Service
	log     *slog.Logger
}

func NewHandler(svc Service, repo ModelStore, authSvc auth.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, repo: repo, authSvc: authSvc, log: log}
}

// POST /api/dashboard/models
func (h *Handler) CreateModel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.accountIDFromRequest(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Provider == "" || req.ProviderModelID == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	m, err := h.svc.CreateModel(r.Context(), req.Name, req.Provider, req.ProviderModelID, req.CreditCost, req.MaxResolution)
	if err != nil {
		if errors.Is(err, ErrUnknownProvider) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("create model failed", "error", err)
		http.Error(w, "create model failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// PATCH /api/dashboard/models/{id}
func (h *Handler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.accountIDFromRequest(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	parts := strings.Split(strings.TrimRight(r.URL.Path, "/"), "/")
	id, err := uuid.Parse(parts[len(parts)-1])
	if err != nil {
		http.Error(w, "invalid model ID", http.StatusBadRequest)
		return
	}
	m, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}
	var req UpdateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.ProviderModelID != nil {
		m.ProviderModelID = *req.ProviderModelID
	}
	if req.CreditCost != nil {
		m.CreditCost = *req.CreditCost
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if req.MaxResolution != nil {
		m.MaxResolution = *req.MaxResolution
	}
	if err := h.svc.UpdateModel(r.Context(), m); err != nil {
		if errors.Is(err, ErrUnknownProvider) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("update model failed", "error", err)
		http.Error(w, "update model failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GET /api/dashboard/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	if _, err := h.accountIDFromRequest(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListModels(r.Context())
	if err != nil {
		h.log.Error("list models failed", "error", err)
		http.Error(w, "list models failed", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Model{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) accountIDFromRequest(r *http.Request) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, errors.New("missing authorization")
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, errors.New("empty token")
	}
	return h.authSvc.ValidateToken(r.Context(), token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
