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

	"github.com/imageforge/backend/internal/execution"
	"github.com/imageforge/backend/internal/models"
	"github.com/imageforge/backend/internal/provider"
)

// GenerationStore persists async generation records.
type GenerationStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, g *models.Generation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Generation, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkCompleted(ctx context.Context, id, artifactID uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, kind, reason string) error
}

// InsertGenerateImageTxFunc enqueues a generate job within the given
// transaction. Provided by main as a closure over river.Client.InsertTx.
type InsertGenerateImageTxFunc func(ctx context.Context, tx pgx.Tx, args execution.GenerateImageJobArgs) error

// AsyncService is the queued request mode. Enqueue persists the generation
// record and the queue job in one transaction; RunQueued is what the river
// worker calls to do the actual work.
type AsyncService struct {
	db             TxBeginner
	generations    GenerationStore
	models         ModelStore
	runner         *Service
	insertGenerate InsertGenerateImageTxFunc
	log            *slog.Logger
}

func NewAsyncService(
	db TxBeginner,
	generations GenerationStore,
	modelStore ModelStore,
	runner *Service,
	insertGenerate InsertGenerateImageTxFunc,
	log *slog.Logger,
) *AsyncService {
	if log == nil {
		log = slog.Default()
	}
	return &AsyncService{
		db:             db,
		generations:    generations,
		models:         modelStore,
		runner:         runner,
		insertGenerate: insertGenerate,
		log:            log,
	}
}

var _ execution.GenerationRunner = (*AsyncService)(nil)

// Enqueue validates the request, records it as queued, and schedules the
// job. Credits are not reserved here; the worker reserves them when the job
// actually runs.
func (s *AsyncService) Enqueue(ctx context.Context, accountID, modelID uuid.UUID, prompt string, settings provider.Settings) (*models.Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, invalidRequest("prompt is empty")
	}
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Reason: err.Error(), Err: err}
	}
	model, err := s.models.GetByID(ctx, modelID)
	if err != nil {
		return nil, invalidRequest("unknown model")
	}
	if !model.IsActive {
		return nil, invalidRequest("model is not active")
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	g := &models.Generation{
		ID:        uuid.New(),
		AccountID: accountID,
		ModelID:   modelID,
		Prompt:    prompt,
		Settings:  raw,
		Status:    models.GenerationStatusQueued,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.generations.CreateTx(ctx, tx, g); err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}
	if err := s.insertGenerate(ctx, tx, execution.GenerateImageJobArgs{GenerationID: g.ID}); err != nil {
		return nil, fmt.Errorf("enqueue generation job: %w", err)
	}
	if err := commit(ctx, tx); err != nil {
		return nil, fmt.Errorf("commit enqueue tx: %w", err)
	}
	return g, nil
}

// RunQueued implements execution.GenerationRunner. Domain failures are
// recorded on the generation row and return nil so the queue does not retry
// them; infrastructure failures propagate.
func (s *AsyncService) RunQueued(ctx context.Context, generationID uuid.UUID) error {
	g, err := s.generations.GetByID(ctx, generationID)
	if err != nil {
		return fmt.Errorf("load generation: %w", err)
	}
	if g.Status != models.GenerationStatusQueued {
		// Already ran; a duplicate delivery must not charge again.
		s.log.Warn("skipping generation in non-queued state", "generation_id", g.ID, "status", g.Status)
		return nil
	}
	if err := s.generations.SetStatus(ctx, g.ID, models.GenerationStatusRunning); err != nil {
		return fmt.Errorf("mark generation running: %w", err)
	}

	var settings provider.Settings
	if len(g.Settings) > 0 {
		if err := json.Unmarshal(g.Settings, &settings); err != nil {
			return s.recordFailure(ctx, g.ID, &Error{Kind: KindInvalidRequest, Reason: "stored settings are malformed", Err: err})
		}
	}

	artifact, err := s.runner.Generate(ctx, g.AccountID, g.ModelID, g.Prompt, settings)
	if err != nil {
		var genErr *Error
		if errors.As(err, &genErr) {
			return s.recordFailure(ctx, g.ID, genErr)
		}
		return fmt.Errorf("run generation: %w", err)
	}

	if err := s.generations.MarkCompleted(ctx, g.ID, artifact.ID); err != nil {
		return fmt.Errorf("mark generation completed: %w", err)
	}
	return nil
}

func (s *AsyncService) recordFailure(ctx context.Context, id uuid.UUID, genErr *Error) error {
	if err := s.generations.MarkFailed(ctx, id, string(genErr.Kind), genErr.Reason); err != nil {
		return fmt.Errorf("generation failed (%s) and marking it failed also failed: %w", genErr.Kind, err)
	}
	return nil
}
