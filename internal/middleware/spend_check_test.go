package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/imageforge/backend/internal/models"
)

// injectAccount wraps a handler to pre-set the account in context,
// simulating what APIKeyAuth would do upstream.
func injectAccount(acc *models.Account, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
	})
}

func intP(n int) *int { return &n }

type stubModelLookup struct {
	model *models.Model
	err   error
}

func (s *stubModelLookup) GetByID(_ context.Context, _ uuid.UUID) (*models.Model, error) {
	return s.model, s.err
}

type stubDailySpend struct {
	spent int
	err   error
}

func (s *stubDailySpend) SumSpentToday(_ context.Context, _ uuid.UUID) (int, error) {
	return s.spent, s.err
}

// spend200 proves the middleware let the request through; it echoes the body
// to verify the body was restored after peeking.
var spend200 = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
})

func generationBody(modelID uuid.UUID) string {
	return fmt.Sprintf(`{"model_id":%q,"prompt":"a fox"}`, modelID)
}

func TestSpendCheck_WithinLimits(t *testing.T) {
	modelID := uuid.New()
	acc := &models.Account{ID: uuid.New(), MaxPerRequest: intP(50), MaxPerDay: intP(200)}
	lookup := &stubModelLookup{model: &models.Model{ID: modelID, CreditCost: 30}}

	handler := injectAccount(acc, SpendCheck(lookup, &stubDailySpend{spent: 0})(spend200))

	body := generationBody(modelID)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != body {
		t.Errorf("body not restored for handler: got %q", rec.Body.String())
	}
}

func TestSpendCheck_ExceedsPerRequest(t *testing.T) {
	modelID := uuid.New()
	acc := &models.Account{ID: uuid.New(), MaxPerRequest: intP(20)}
	lookup := &stubModelLookup{model: &models.Model{ID: modelID, CreditCost: 50}}

	handler := injectAccount(acc, SpendCheck(lookup, &stubDailySpend{})(spend200))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(generationBody(modelID)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "per-request limit") {
		t.Errorf("expected per-request error message, got: %s", rec.Body.String())
	}
}

func TestSpendCheck_ExceedsDailyLimit(t *testing.T) {
	modelID := uuid.New()
	acc := &models.Account{ID: uuid.New(), MaxPerRequest: intP(100), MaxPerDay: intP(200)}
	lookup := &stubModelLookup{model: &models.Model{ID: modelID, CreditCost: 30}}

	// 180 spent + 30 cost = 210 > 200 limit
	handler := injectAccount(acc, SpendCheck(lookup, &stubDailySpend{spent: 180})(spend200))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(generationBody(modelID)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "daily limit") {
		t.Errorf("expected daily limit error message, got: %s", rec.Body.String())
	}
}

func TestSpendCheck_NoLimitsConfigured(t *testing.T) {
	modelID := uuid.New()
	acc := &models.Account{ID: uuid.New()}
	lookup := &stubModelLookup{model: &models.Model{ID: modelID, CreditCost: 9999}}

	handler := injectAccount(acc, SpendCheck(lookup, &stubDailySpend{err: errors.New("should not be called")})(spend200))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(generationBody(modelID)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSpendCheck_UnknownModel(t *testing.T) {
	acc := &models.Account{ID: uuid.New()}
	lookup := &stubModelLookup{err: errors.New("not found")}

	handler := injectAccount(acc, SpendCheck(lookup, &stubDailySpend{})(spend200))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(generationBody(uuid.New())))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSpendCheck_MissingModelID(t *testing.T) {
	acc := &models.Account{ID: uuid.New()}
	handler := injectAccount(acc, SpendCheck(&stubModelLookup{}, &stubDailySpend{})(spend200))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"a fox"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
