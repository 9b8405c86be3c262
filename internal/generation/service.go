package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/imageforge/backend/internal/ledger"
	"github.com/imageforge/backend/internal/models"
	"github.com/imageforge/backend/internal/poller"
	"github.com/imageforge/backend/internal/provider"
	"github.com/imageforge/backend/internal/storage"
)

// Ledger is the subset of ledger operations the orchestrator needs.
type Ledger interface {
	Reserve(ctx context.Context, accountID uuid.UUID, amount int) (*models.Reservation, error)
	CommitTx(ctx context.Context, tx pgx.Tx, res *models.Reservation, description string, artifactID *uuid.UUID) error
	Release(ctx context.Context, res *models.Reservation) error
}

// ModelStore resolves generation models.
type ModelStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Model, error)
}

// AdapterResolver maps a provider identifier to its adapter.
type AdapterResolver interface {
	Resolve(providerName string) (provider.Adapter, error)
}

// Awaiter drives a pending task to a terminal state.
type Awaiter interface {
	Await(ctx context.Context, task *provider.PendingTask) (*provider.Result, error)
}

// ArtifactStore persists artifacts inside the finalize transaction.
type ArtifactStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, a *models.Artifact) error
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service orchestrates one generation end to end: resolve the model,
// reserve credits, call the provider, persist the artifact, settle the
// ledger. Every request runs independently in its caller's goroutine.
type Service struct {
	db        TxBeginner
	ledger    Ledger
	catalog   ModelStore
	adapters  AdapterResolver
	awaiter   Awaiter
	store     storage.Gateway
	artifacts ArtifactStore
	log       *slog.Logger
}

func NewService(
	db TxBeginner,
	ldg Ledger,
	modelStore ModelStore,
	adapters AdapterResolver,
	awaiter Awaiter,
	store storage.Gateway,
	artifacts ArtifactStore,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:        db,
		ledger:    ldg,
		catalog:   modelStore,
		adapters:  adapters,
		awaiter:   awaiter,
		store:     store,
		artifacts: artifacts,
		log:       log,
	}
}

// Generate runs one generation request. On success exactly one artifact and
// one spent transaction exist; on any failure after the reservation the
// reservation is released. The deferred release makes that structural: it
// fires on every exit path until the commit lands.
func (s *Service) Generate(ctx context.Context, accountID, modelID uuid.UUID, prompt string, settings provider.Settings) (*models.Artifact, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, invalidRequest("prompt is empty")
	}
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Reason: err.Error(), Err: err}
	}

	model, err := s.catalog.GetByID(ctx, modelID)
	if err != nil {
		return nil, invalidRequest("unknown model")
	}
	if !model.IsActive {
		return nil, invalidRequest("model is not active")
	}

	res, err := s.ledger.Reserve(ctx, accountID, model.CreditCost)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			return nil, &Error{Kind: KindInsufficientCredits, Reason: "not enough credits", Err: err}
		}
		return nil, &Error{Kind: KindStorageFailure, Reason: "reserve credits", Err: err}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Release must run even when the request context is already gone,
		// otherwise an abandoned request leaves credits locked.
		if rerr := s.ledger.Release(context.WithoutCancel(ctx), res); rerr != nil {
			s.log.Error("release reservation failed",
				"account_id", accountID, "reservation_id", res.ID, "error", rerr)
		}
	}()

	adapter, err := s.adapters.Resolve(model.Provider)
	if err != nil {
		return nil, &Error{Kind: KindProviderPermanent, Reason: "provider is not configured", Err: err}
	}

	sub, err := adapter.Submit(ctx, model.ProviderModelID, prompt, settings)
	if err != nil {
		return nil, classifyProvider("generation request rejected", err)
	}

	result := sub.Result
	if sub.Task != nil {
		result, err = s.awaiter.Await(ctx, sub.Task)
		if err != nil {
			switch {
			case errors.Is(err, poller.ErrTimedOut):
				return nil, &Error{Kind: KindTimedOut, Reason: "generation did not finish in time; it may still complete on the provider side", Err: err}
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return nil, &Error{Kind: KindTimedOut, Reason: "request canceled", Err: err}
			case errors.Is(err, poller.ErrTaskFailed):
				return nil, &Error{Kind: KindProviderPermanent, Reason: "generation failed", Err: err}
			default:
				return nil, classifyProvider("polling failed", err)
			}
		}
	}
	if result == nil {
		return nil, &Error{Kind: KindProviderPermanent, Reason: "provider returned no result"}
	}

	artifactID := uuid.New()
	url, err := s.store.Store(ctx, storage.StoreRequest{
		Bytes:     result.Bytes,
		SourceURL: result.URL,
		Filename:  artifactID.String() + ".png",
	})
	if err != nil {
		// The provider result is discarded; the user is not charged and
		// may retry.
		return nil, &Error{Kind: KindStorageFailure, Reason: "storing the image failed", Err: err}
	}

	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		metadata = nil
	}
	artifact := &models.Artifact{
		ID:               artifactID,
		AccountID:        accountID,
		ModelID:          model.ID,
		URL:              url,
		Prompt:           prompt,
		ProviderMetadata: metadata,
		CreditsCharged:   model.CreditCost,
	}

	// Artifact insert and ledger commit share one transaction: a spent
	// entry exists iff the artifact row exists.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &Error{Kind: KindStorageFailure, Reason: "persisting the result failed", Err: err}
	}
	defer rollback(ctx, tx)

	if err := s.artifacts.CreateTx(ctx, tx, artifact); err != nil {
		return nil, &Error{Kind: KindStorageFailure, Reason: "persisting the result failed", Err: err}
	}
	description := fmt.Sprintf("image generation (%s)", model.Name)
	if err := s.ledger.CommitTx(ctx, tx, res, description, &artifact.ID); err != nil {
		return nil, &Error{Kind: KindStorageFailure, Reason: "persisting the result failed", Err: err}
	}
	if err := commit(ctx, tx); err != nil {
		return nil, &Error{Kind: KindStorageFailure, Reason: "persisting the result failed", Err: err}
	}
	committed = true

	return artifact, nil
}

func classifyProvider(reason string, err error) *Error {
	if provider.IsTransient(err) {
		return &Error{Kind: KindProviderTransient, Reason: reason, Err: err}
	}
	return &Error{Kind: KindProviderPermanent, Reason: reason, Err: err}
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if tx != nil {
		_ = tx.Rollback(ctx)
	}
}

func commit(ctx context.Context, tx pgx.Tx) error {
	if tx == nil {
		return nil
	}
	return tx.Commit(ctx)
}
