package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

type GenerateImageJobArgs struct {
	GenerationID uuid.UUID `json:"generation_id"`
}

func (GenerateImageJobArgs) Kind() string { return "generate_image" }

// GenerationRunner defines the contract the worker needs to run a queued
// generation and record its outcome.
type GenerationRunner interface {
	RunQueued(ctx context.Context, generationID uuid.UUID) error
}

type GenerateImageWorker struct {
	river.WorkerDefaults[GenerateImageJobArgs]
	runner GenerationRunner
}

func NewGenerateImageWorker(runner GenerationRunner) *GenerateImageWorker {
	return &GenerateImageWorker{runner: runner}
}

// Work runs one queued generation. Domain failures are recorded on the
// generation row by the runner and do not error here; only infrastructure
// failures return an error so river retries them.
func (w *GenerateImageWorker) Work(ctx context.Context, job *river.Job[GenerateImageJobArgs]) error {
	if err := w.runner.RunQueued(ctx, job.Args.GenerationID); err != nil {
		return fmt.Errorf("run generation %s: %w", job.Args.GenerationID, err)
	}
	return nil
}
