package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/redact"
	"google.golang.org/genai"
)

// ContentGenerator is the subset of the genai Models service used here.
// *genai.Models satisfies it; tests substitute a fake.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator implements the generation.Inferencer interface using
// Google's Gemini API.
type Generator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// models issues the GenerateContent calls
	models ContentGenerator

	// model is the name of the Gemini model to use
	model string

	// temperature is sent with every request
	temperature float32

	// retry bounds attempts and waits between them
	retry generation.RetryPolicy
}

// NewGenerator creates a Generator backed by a real genai client.
//
// Parameters:
//   - ctx: Context for client initialization
//   - logger: A structured logger for operation logging
//   - cfg: Inference configuration containing API key, model and retry settings
//
// Returns:
//   - A properly initialized Generator or an error if initialization fails
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.InferenceConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if err := validateConfig(ctx, logger, cfg); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return New(logger, cfg, client.Models, generation.NewRetryPolicy(cfg))
}

// New creates a Generator around an existing ContentGenerator.
func New(
	logger *slog.Logger,
	cfg config.InferenceConfig,
	models ContentGenerator,
	retry generation.RetryPolicy,
) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if models == nil {
		return nil, fmt.Errorf("%w: content generator cannot be nil", generation.ErrInvalidConfig)
	}
	if err := validateConfig(context.Background(), logger, cfg); err != nil {
		return nil, err
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}

	return &Generator{
		logger:      logger.With("component", "gemini_generator"),
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		retry:       retry,
	}, nil
}

// buildContents places the instruction first, then each image as an
// inline part, all in a single user turn.
func buildContents(req generation.Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.NewPartFromText(req.Instruction))
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType()))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// Infer implements generation.Inferencer.
func (g *Generator) Infer(ctx context.Context, req generation.Request) (generation.Result, error) {
	contents := buildContents(req)
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}

	return g.retry.Do(ctx, func(attemptCtx context.Context) (string, error) {
		log := logger.FromContextOrDefault(attemptCtx, g.logger)
		reqID := uuid.New().String()

		log.DebugContext(attemptCtx, "Calling Gemini API",
			"req_id", reqID,
			"model", g.model,
			"images", len(req.Images))

		resp, err := g.models.GenerateContent(attemptCtx, g.model, contents, genConfig)
		if err != nil {
			classified := classifyError(err)
			log.WarnContext(attemptCtx, "Gemini API call failed",
				"req_id", reqID,
				"error", redact.Error(err))
			return "", classified
		}
		if resp == nil {
			return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
		}

		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			log.WarnContext(attemptCtx, "Gemini blocked the prompt",
				"req_id", reqID,
				"block_reason", string(resp.PromptFeedback.BlockReason))
		}

		return resp.Text(), nil
	})
}
