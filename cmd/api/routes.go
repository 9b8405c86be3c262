package main

import (
	"log/slog"
	"net/http"

	"github.com/imageforge/backend/internal/generation"
	"github.com/imageforge/backend/internal/handlers"
	"github.com/imageforge/backend/internal/middleware"
	"github.com/imageforge/backend/internal/repository"
)

// RegisterV1Routes adds the /v1/ generation API endpoints to the given mux.
// Middleware chain: APIKeyAuth -> (SpendCheck on POST /v1/generations) -> handler.
func RegisterV1Routes(
	mux *http.ServeMux,
	apiKeyRepo *repository.APIKeyRepo,
	modelRepo *repository.ModelRepo,
	creditRepo *repository.CreditRepo,
	generationRepo *repository.GenerationRepo,
	generator *generation.Service,
	enqueuer *generation.AsyncService,
	validator *handlers.Validator,
	logger *slog.Logger,
) {
	gh := &handlers.GenerationHandler{
		Generator:   generator,
		Enqueuer:    enqueuer,
		Generations: generationRepo,
		Models:      modelRepo,
		Validator:   validator,
		Logger:      logger,
	}

	auth := middleware.APIKeyAuth(apiKeyRepo)
	spendCheck := middleware.SpendCheck(modelRepo, creditRepo)

	// POST /v1/generations: Auth -> SpendCheck -> Create (sync or async)
	mux.Handle("POST /v1/generations", auth(spendCheck(http.HandlerFunc(gh.Create))))

	// GET /v1/generations/{id}: Auth -> Get
	mux.Handle("GET /v1/generations/{id}", auth(http.HandlerFunc(gh.Get)))

	// GET /v1/models: public model catalog
	mux.HandleFunc("GET /v1/models", gh.ListModels)
}
