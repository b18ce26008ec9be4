package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/virajlab/nautifier/llm"
)

func TestChatTextResponse(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/models/gemini-2.0-flash-lite:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if key := r.URL.Query().Get("key"); key != "test-key" {
			t.Errorf("key = %q", key)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, ok := req["system_instruction"]; !ok {
			t.Errorf("missing system_instruction")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "  hi there  "}}}},
			},
		})
	}))
	defer ts.Close()

	c, err := New(Options{HTTPClient: ts.Client(), BaseURL: ts.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := c.Chat(context.Background(), llm.Request{
		Model:    "gemini-2.0-flash-lite",
		System:   "You are Nautifier.",
		Messages: []llm.Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "hi there" {
		t.Fatalf("text = %q, want %q", res.Text, "hi there")
	}
}

func TestChatFunctionCall(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tools []struct {
				FunctionDeclarations []struct {
					Name string `json:"name"`
				} `json:"function_declarations"`
			} `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || len(req.Tools[0].FunctionDeclarations) != 1 {
			t.Errorf("unexpected tools: %#v", req.Tools)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"functionCall": map[string]any{
						"name": "save_article_to_sheet",
						"args": map[string]any{"url": "https://example.com", "tags": []string{"analytics"}},
					}},
				}}},
			},
		})
	}))
	defer ts.Close()

	c, err := New(Options{HTTPClient: ts.Client(), BaseURL: ts.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := c.Chat(context.Background(), llm.Request{
		Model:    "gemini-1.5-flash",
		Messages: []llm.Message{{Role: "user", Content: "save this"}},
		Tools: []llm.Tool{{
			Name:            "save_article_to_sheet",
			Description:     "Save an article",
			ParameterSchema: `{"type":"object"}`,
		}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(res.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(res.ToolCalls))
	}
	if res.ToolCalls[0].Name != "save_article_to_sheet" {
		t.Fatalf("tool call name = %q", res.ToolCalls[0].Name)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(res.ToolCalls[0].RawArguments), &args); err != nil {
		t.Fatalf("raw arguments not json: %v", err)
	}
	if args["url"] != "https://example.com" {
		t.Fatalf("args = %#v", args)
	}
}

func TestChatAPIError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "status": "INVALID_ARGUMENT", "message": "bad model"},
		})
	}))
	defer ts.Close()

	c, err := New(Options{HTTPClient: ts.Client(), BaseURL: ts.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.Chat(context.Background(), llm.Request{
		Model:    "nope",
		Messages: []llm.Message{{Role: "user", Content: "x"}},
	})
	if err == nil || !strings.Contains(err.Error(), "bad model") {
		t.Fatalf("Chat() error = %v, want bad model", err)
	}
}

func TestChatInvalidToolSchemaRejected(t *testing.T) {
	t.Parallel()

	c, err := New(Options{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.Chat(context.Background(), llm.Request{
		Model:    "gemini-1.5-flash",
		Messages: []llm.Message{{Role: "user", Content: "x"}},
		Tools:    []llm.Tool{{Name: "t", ParameterSchema: "{not json"}},
	})
	if err == nil {
		t.Fatalf("expected error for invalid schema")
	}
}
