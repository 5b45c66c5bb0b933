package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/phrazzld/essaymark/internal/imageprep"
	"github.com/phrazzld/essaymark/internal/platform/gemini"
	"github.com/phrazzld/essaymark/internal/platform/lark"
	"github.com/phrazzld/essaymark/internal/platform/openai"
	"github.com/phrazzld/essaymark/internal/platform/postgres"
	"github.com/phrazzld/essaymark/internal/prompt"
	"github.com/phrazzld/essaymark/internal/sanitize"
	"github.com/phrazzld/essaymark/internal/store"
	"github.com/phrazzld/essaymark/internal/task"
)

// larkRequestTimeout bounds a single open platform call.
const larkRequestTimeout = 30 * time.Second

// recordStore is implemented by every store backend.
type recordStore interface {
	store.WorkItemStore
	store.AttachmentFetcher
	store.RecordPurger
}

// application holds the dependencies of one command invocation and
// releases them in close.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	records    recordStore
	inferencer generation.Inferencer
	closers    []func()
}

// newApplication connects the configured store and inference backends.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	records, closeStore, err := openRecordStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.records = records
	app.closers = append(app.closers, closeStore)

	app.inferencer, err = newInferencer(ctx, cfg, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	logger.Info("application initialized",
		"store_backend", cfg.Store.Backend,
		"inference_backend", cfg.Inference.Backend,
		"dry_run", cfg.Run.DryRun)
	return app, nil
}

// openRecordStore returns the configured store backend and a function
// releasing its resources.
func openRecordStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (recordStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendLark:
		api := lark.NewSDKAPI(cfg.Lark, larkRequestTimeout, logger)
		return lark.NewStore(api, cfg.Store), func() {}, nil

	case config.StoreBackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open store: %w", err)
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}
		return postgres.NewWorkItemStore(db), closeDB, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// newInferencer returns the configured inference backend.
func newInferencer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.Inferencer, error) {
	log := logger.With("component", "inference", "backend", cfg.Inference.Backend)

	switch cfg.Inference.Backend {
	case config.InferenceBackendOpenAI:
		client, err := openai.NewClient(log, cfg.Inference)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize inference client: %w", err)
		}
		return client, nil

	case config.InferenceBackendGemini:
		generator, err := gemini.NewGenerator(ctx, log, cfg.Inference)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize inference client: %w", err)
		}
		return generator, nil

	default:
		return nil, fmt.Errorf("unsupported inference backend %q", cfg.Inference.Backend)
	}
}

// newProcessor assembles the per-item pipeline.
func (a *application) newProcessor() (*task.Processor, error) {
	normalizer, err := imageprep.NewNormalizer(a.config.Image)
	if err != nil {
		return nil, err
	}

	sanitizer, err := sanitize.New(a.config.Sanitizer)
	if err != nil {
		return nil, err
	}

	instruction, err := prompt.Load(a.config.Inference.InstructionPath)
	if err != nil {
		return nil, err
	}

	deps := task.ProcessorDeps{
		Fetcher:     a.records,
		Normalizer:  normalizer,
		Inferencer:  a.inferencer,
		Sanitizer:   sanitizer,
		Instruction: instruction,
		Writer:      a.records,
	}
	return task.NewProcessor(deps, a.config.Run.DryRun, a.logger.With("component", "processor"))
}

// newRunner assembles the batch runner over the processor.
func (a *application) newRunner() (*task.Runner, error) {
	processor, err := a.newProcessor()
	if err != nil {
		return nil, fmt.Errorf("failed to build processor: %w", err)
	}

	return task.NewRunner(
		a.records,
		processor,
		task.NewRunnerConfig(a.config.Store, a.config.Run),
		a.logger.With("component", "runner"),
	)
}

// close releases resources in reverse acquisition order.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
