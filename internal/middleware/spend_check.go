package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/imageforge/backend/internal/models"
)

// ModelLookup resolves a generation model so the spend check knows the cost
// before the request reaches the orchestrator.
type ModelLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Model, error)
}

// DailySpend reports how many credits the account has spent today.
type DailySpend interface {
	SumSpentToday(ctx context.Context, accountID uuid.UUID) (int, error)
}

// spendPeek is the subset of the generation request body the check needs.
type spendPeek struct {
	ModelID uuid.UUID `json:"model_id"`
}

// SpendCheck enforces the account's per-request and daily credit caps from
// the account set by APIKeyAuth. Reads the body to extract "model_id", then
// replaces r.Body so downstream handlers can re-read it. This check is
// advisory; the ledger reservation remains the authoritative guard.
func SpendCheck(modelLookup ModelLookup, spend DailySpend) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := AccountFromCtx(r.Context())
			if acc == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek spendPeek
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if peek.ModelID == uuid.Nil {
				http.Error(w, `{"error":"model_id is required"}`, http.StatusBadRequest)
				return
			}

			model, err := modelLookup.GetByID(r.Context(), peek.ModelID)
			if err != nil {
				http.Error(w, `{"error":"unknown model"}`, http.StatusBadRequest)
				return
			}
			cost := model.CreditCost

			if acc.MaxPerRequest != nil && cost > *acc.MaxPerRequest {
				http.Error(w, fmt.Sprintf(`{"error":"model cost %d exceeds per-request limit %d"}`, cost, *acc.MaxPerRequest), http.StatusForbidden)
				return
			}

			if acc.MaxPerDay != nil {
				spent, err := spend.SumSpentToday(r.Context(), acc.ID)
				if err != nil {
					http.Error(w, `{"error":"failed to check daily spend"}`, http.StatusInternalServerError)
					return
				}
				if spent+cost > *acc.MaxPerDay {
					http.Error(w, fmt.Sprintf(`{"error":"daily spend %d + cost %d exceeds daily limit %d"}`, spent, cost, *acc.MaxPerDay), http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
