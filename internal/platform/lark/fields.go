package lark

import (
	"fmt"
	"strings"

	"github.com/phrazzld/essaymark/internal/domain"
)

// attachmentsFromField extracts file tokens from an attachment column.
// The SDK decodes the column as a list of objects carrying file_token.
func attachmentsFromField(v any) ([]domain.Attachment, error) {
	if v == nil {
		return []domain.Attachment{}, nil
	}

	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("attachment field has type %T, want list", v)
	}

	attachments := make([]domain.Attachment, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("attachment %d has type %T, want object", i, entry)
		}
		token, _ := obj["file_token"].(string)
		if token == "" {
			return nil, fmt.Errorf("attachment %d has no file_token", i)
		}
		name, _ := obj["name"].(string)
		attachments = append(attachments, domain.Attachment{Token: token, Name: name})
	}
	return attachments, nil
}

// textFromField reads a text column. Plain strings are returned as is;
// rich-text values arrive as a list of segments with a "text" member.
func textFromField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []any:
		var b strings.Builder
		for _, seg := range val {
			switch s := seg.(type) {
			case map[string]any:
				if text, ok := s["text"].(string); ok {
					b.WriteString(text)
				}
			case string:
				b.WriteString(s)
			}
		}
		return strings.TrimSpace(b.String())
	case map[string]any:
		if text, ok := val["text"].(string); ok {
			return strings.TrimSpace(text)
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
