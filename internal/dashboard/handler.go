package dashboard

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/imageforge/backend/internal/auth"
	"github.com/imageforge/backend/internal/models"
	"github.com/imageforge/backend/internal/repository"
)

// Ledger is the subset of ledger operations the dashboard needs.
type Ledger interface {
	Credit(ctx context.Context, accountID uuid.UUID, amount int, description string) error
	Transactions(ctx context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error)
}

type Handler struct {
	authSvc   auth.Service
	ledger    Ledger
	accountR  *repository.AccountRepo
	apiKeyR   *repository.APIKeyRepo
	artifactR *repository.ArtifactRepo
	genR      *repository.GenerationRepo
	log       *slog.Logger
}

func NewHandler(
	authSvc auth.Service,
	ledger Ledger,
	accountR *repository.AccountRepo,
	apiKeyR *repository.APIKeyRepo,
	artifactR *repository.ArtifactRepo,
	genR *repository.GenerationRepo,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		authSvc:   authSvc,
		ledger:    ledger,
		accountR:  accountR,
		apiKeyR:   apiKeyR,
		artifactR: artifactR,
		genR:      genR,
		log:       log,
	}
}

func (h *Handler) accountIDFromRequest(r *http.Request) (uuid.UUID, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, fmt.Errorf("missing authorization")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, fmt.Errorf("bad authorization format")
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, fmt.Errorf("empty token")
	}
	return h.authSvc.ValidateToken(r.Context(), token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/dashboard/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acc, err := h.accountR.GetByID(r.Context(), accountID)
	if err != nil {
		h.log.Error("get account failed", "error", err)
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                acc.ID,
		"email":             acc.Email,
		"name":              acc.Name,
		"company":           acc.Company,
		"credit_balance":    acc.CreditBalance,
		"hold_credits":      acc.HoldCredits,
		"subscription_tier": acc.SubscriptionTier,
		"max_per_request":   acc.MaxPerRequest,
		"max_per_day":       acc.MaxPerDay,
		"created_at":        acc.CreatedAt,
	})
}

// PATCH /api/dashboard/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acc, err := h.accountR.GetByID(r.Context(), accountID)
	if err != nil {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	var body struct {
		Name          *string `json:"name"`
		Company       *string `json:"company"`
		Email         *string `json:"email"`
		MaxPerRequest *int    `json:"max_per_request"`
		MaxPerDay     *int    `json:"max_per_day"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Name != nil {
		acc.Name = *body.Name
	}
	if body.Company != nil {
		acc.Company = *body.Company
	}
	if body.Email != nil {
		acc.Email = *body.Email
	}
	if body.MaxPerRequest != nil {
		acc.MaxPerRequest = body.MaxPerRequest
	}
	if body.MaxPerDay != nil {
		acc.MaxPerDay = body.MaxPerDay
	}
	if err := h.accountR.Update(r.Context(), acc); err != nil {
		h.log.Error("update settings failed", "error", err)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/dashboard/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	entries, err := h.ledger.Transactions(r.Context(), accountID)
	if err != nil {
		h.log.Error("list transactions failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.CreditTransaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// POST /api/dashboard/credits
// Records a credit top-up. Payment capture happens upstream; this endpoint
// only books the earned credits.
func (h *Handler) TopUpCredits(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var body struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Amount <= 0 {
		http.Error(w, "amount must be > 0", http.StatusBadRequest)
		return
	}
	if err := h.ledger.Credit(r.Context(), accountID, body.Amount, "credit top-up"); err != nil {
		h.log.Error("top-up failed", "error", err)
		http.Error(w, "top-up failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/dashboard/artifacts
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	artifacts, err := h.artifactR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list artifacts failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if artifacts == nil {
		artifacts = []*models.Artifact{}
	}
	writeJSON(w, http.StatusOK, artifacts)
}

// GET /api/dashboard/generations
func (h *Handler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.genR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list generations failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Generation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/dashboard/api-keys
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	keys, err := h.apiKeyR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list api keys failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// POST /api/dashboard/api-keys
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		http.Error(w, "key generation failed", http.StatusInternalServerError)
		return
	}
	rawKey := "ifg_" + hex.EncodeToString(rawBytes)
	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])
	keyPrefix := rawKey[:12]

	k := &models.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		IsActive:  true,
	}
	if err := h.apiKeyR.Create(r.Context(), k); err != nil {
		h.log.Error("create api key failed", "error", err)
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         k.ID,
		"key_prefix": k.KeyPrefix,
		"is_active":  k.IsActive,
		"raw_key":    rawKey,
	})
}

// DELETE /api/dashboard/api-keys/{id}
func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	_, err := h.accountIDFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	parts := strings.Split(strings.TrimRight(r.URL.Path, "/"), "/")
	keyID, err := uuid.Parse(parts[len(parts)-1])
	if err != nil {
		http.Error(w, "invalid key ID", http.StatusBadRequest)
		return
	}
	if err := h.apiKeyR.Delete(r.Context(), keyID); err != nil {
		h.log.Error("delete api key failed", "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
