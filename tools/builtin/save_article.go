package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ArticleStore is the slice of the sheet store this tool needs.
type ArticleStore interface {
	Today() string
	AppendRow(ctx context.Context, sheetName string, row []any) error
}

type SaveArticleTool struct {
	Store     ArticleStore
	SheetName string
}

func NewSaveArticleTool(store ArticleStore, sheetName string) *SaveArticleTool {
	return &SaveArticleTool{Store: store, SheetName: strings.TrimSpace(sheetName)}
}

func (t *SaveArticleTool) Name() string { return "save_article_to_sheet" }
func (t *SaveArticleTool) Description() string {
	return "Save an article with tags and metadata to a Google Sheet repository."
}

func (t *SaveArticleTool) ParameterSchema() string {
	return `{
  "type": "object",
  "properties": {
    "url": { "type": "string", "description": "The article URL" },
    "tags": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Tags related to the article"
    },
    "submitted_by": { "type": "string", "description": "Slack user who submitted it" },
    "submitted_on": { "type": "string", "description": "Date in DD/MM/YYYY format" }
  },
  "required": ["url", "tags", "submitted_by", "submitted_on"]
}`
}

func (t *SaveArticleTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if t.Store == nil {
		return "", fmt.Errorf("sheet store is not configured")
	}
	url := strings.TrimSpace(getString(params, "url"))
	if url == "" {
		return "", fmt.Errorf("missing url")
	}
	submittedBy := strings.TrimSpace(getString(params, "submitted_by"))
	if submittedBy == "" {
		return "", fmt.Errorf("missing submitted_by")
	}
	submittedOn := strings.TrimSpace(getString(params, "submitted_on"))
	if submittedOn == "" {
		submittedOn = t.Store.Today()
	}
	tags := getStringSlice(params, "tags")

	row := []any{submittedOn, submittedBy, url, strings.Join(tags, ", ")}
	if err := t.Store.AppendRow(ctx, t.SheetName, row); err != nil {
		return "", fmt.Errorf("save article: %w", err)
	}

	out := map[string]any{
		"status":  "saved",
		"message": "📚 Article saved to internal repository.",
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}

func getStringSlice(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
		return nil
	}
}
