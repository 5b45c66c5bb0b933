package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/domain"
	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeModels returns scripted responses in order.
type fakeModels struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	model     string
	contents  []*genai.Content
	config    *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.model = model
	f.contents = contents
	f.config = config

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return textResponse(""), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}, Role: genai.RoleModel}},
		},
	}
}

func testConfig() config.InferenceConfig {
	return config.InferenceConfig{
		Backend:           config.InferenceBackendGemini,
		APIKey:            "test-key",
		Model:             "gemini-2.5-flash",
		Temperature:       0.2,
		MaxAttempts:       3,
		BackoffBase:       5 * time.Second,
		NetworkRetryDelay: 3 * time.Second,
	}
}

func newTestGenerator(t *testing.T, models ContentGenerator, delays *[]time.Duration) *Generator {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	cfg := testConfig()
	policy := generation.NewRetryPolicy(cfg)
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	g, err := New(log, cfg, models, policy)
	require.NoError(t, err)
	return g
}

func testRequest() generation.Request {
	return generation.Request{
		Instruction: "批改",
		Images: []*domain.EncodedImage{
			{Format: domain.ImageFormatJPEG, Data: []byte{0xFF, 0xD8, 0x01}},
		},
	}
}

func TestInferBuildsMultimodalContent(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("一、错别字\n无")}}
	var delays []time.Duration

	res, err := newTestGenerator(t, models, &delays).Infer(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "一、错别字\n无", res.Text)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "gemini-2.5-flash", models.model)

	require.Len(t, models.contents, 1)
	content := models.contents[0]
	assert.Equal(t, genai.RoleUser, content.Role)
	require.Len(t, content.Parts, 2)
	assert.Equal(t, "批改", content.Parts[0].Text)
	require.NotNil(t, content.Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", content.Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte{0xFF, 0xD8, 0x01}, content.Parts[1].InlineData.Data)

	require.NotNil(t, models.config.Temperature)
	assert.InDelta(t, 0.2, *models.config.Temperature, 0.0001)
}

func TestInferClassifiesAPIErrors(t *testing.T) {
	t.Parallel()

	t.Run("overloaded status is retried with linear backoff", func(t *testing.T) {
		overloaded := genai.APIError{Code: 503, Message: "model overloaded"}
		models := &fakeModels{errs: []error{overloaded, overloaded, overloaded}}
		var delays []time.Duration

		res, err := newTestGenerator(t, models, &delays).Infer(context.Background(), testRequest())

		assert.ErrorIs(t, err, generation.ErrRetriesExhausted)
		assert.Equal(t, 3, models.calls)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, delays)
	})

	t.Run("pointer api error in chain is non-retryable", func(t *testing.T) {
		wrapped := fmt.Errorf("sdk: %w", &genai.APIError{Code: 403, Message: "permission denied"})
		models := &fakeModels{errs: []error{wrapped}}
		var delays []time.Duration

		_, err := newTestGenerator(t, models, &delays).Infer(context.Background(), testRequest())

		assert.ErrorIs(t, err, generation.ErrNonRetryable)
		var statusErr *generation.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 403, statusErr.StatusCode)
		assert.Equal(t, 1, models.calls)
		assert.Empty(t, delays)
	})

	t.Run("transport errors use network delay", func(t *testing.T) {
		models := &fakeModels{
			errs:      []error{errors.New("connection reset by peer")},
			responses: []*genai.GenerateContentResponse{nil, textResponse("好")},
		}
		var delays []time.Duration

		res, err := newTestGenerator(t, models, &delays).Infer(context.Background(), testRequest())

		require.NoError(t, err)
		assert.Equal(t, "好", res.Text)
		assert.Equal(t, 2, res.Attempts)
		assert.Equal(t, []time.Duration{3 * time.Second}, delays)
	})
}

func TestInferEmptyCandidatesIsEmptySuccess(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []*genai.GenerateContentResponse{{}}}
	var delays []time.Duration

	res, err := newTestGenerator(t, models, &delays).Infer(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, 1, models.calls)
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, classifyError(nil))

	plain := errors.New("dial tcp: timeout")
	assert.Same(t, plain, classifyError(plain))

	var statusErr *generation.StatusError
	require.ErrorAs(t, classifyError(genai.APIError{Code: 429}), &statusErr)
	assert.Equal(t, 429, statusErr.StatusCode)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	log, _ := logger.GetTestLogger(t)
	models := &fakeModels{}

	cfg := testConfig()
	cfg.APIKey = ""
	_, err := New(log, cfg, models, generation.NewRetryPolicy(testConfig()))
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	cfg = testConfig()
	cfg.Model = ""
	_, err = New(log, cfg, models, generation.NewRetryPolicy(testConfig()))
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = New(log, testConfig(), nil, generation.NewRetryPolicy(testConfig()))
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = New(nil, testConfig(), models, generation.NewRetryPolicy(testConfig()))
	assert.Error(t, err)
}
