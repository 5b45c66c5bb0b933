package gemini

import (
	"errors"

	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/phrazzld/essaymark/internal/redact"
	"google.golang.org/genai"
)

// apiErrorCode walks the error chain looking for a genai.APIError, which the
// SDK may return by value or by pointer.
func apiErrorCode(err error) (int, string, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch apiErr := e.(type) {
		case genai.APIError:
			return apiErr.Code, apiErr.Message, true
		case *genai.APIError:
			if apiErr != nil {
				return apiErr.Code, apiErr.Message, true
			}
		}
	}
	return 0, "", false
}

// classifyError converts SDK errors into the generation error taxonomy.
// Errors without an HTTP status are returned unchanged and count as network
// failures.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if code, msg, ok := apiErrorCode(err); ok && code != 0 {
		return &generation.StatusError{
			StatusCode: code,
			Body:       redact.String(msg),
		}
	}
	return err
}
