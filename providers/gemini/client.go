// Package gemini implements llm.Client over the Generative Language REST
// API (models/*:generateContent).
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/virajlab/nautifier/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
}

func New(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

type generatePart struct {
	Text         string            `json:"text,omitempty"`
	FunctionCall *functionCallPart `json:"functionCall,omitempty"`
}

type functionCallPart struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type generateTools struct {
	FunctionDeclarations []functionDeclaration `json:"function_declarations"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"topP,omitempty"`
	TopK             int     `json:"topK,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents          []generateContent `json:"contents"`
	SystemInstruction *generateContent  `json:"system_instruction,omitempty"`
	Tools             []generateTools   `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generation_config,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("gemini client is not initialized")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	body, err := buildGenerateRequest(req)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("gemini response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil && strings.TrimSpace(out.Error.Message) != "" {
			return nil, fmt.Errorf("gemini generateContent failed: %s", strings.TrimSpace(out.Error.Message))
		}
		return nil, fmt.Errorf("gemini generateContent http %d", resp.StatusCode)
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	result := &llm.Response{}
	for _, part := range out.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				Name:         strings.TrimSpace(part.FunctionCall.Name),
				RawArguments: string(part.FunctionCall.Args),
			})
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			if result.Text != "" {
				result.Text += "\n"
			}
			result.Text += text
		}
	}
	return result, nil
}

func buildGenerateRequest(req llm.Request) (generateRequest, error) {
	out := generateRequest{}

	system := strings.TrimSpace(req.System)
	for _, msg := range req.Messages {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		switch role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += strings.TrimSpace(msg.Content)
			continue
		case "", "user":
			role = "user"
		case "model", "assistant":
			role = "model"
		default:
			return generateRequest{}, fmt.Errorf("unsupported message role: %s", role)
		}
		out.Contents = append(out.Contents, generateContent{
			Role:  role,
			Parts: []generatePart{{Text: msg.Content}},
		})
	}
	if len(out.Contents) == 0 {
		return generateRequest{}, fmt.Errorf("at least one user message is required")
	}
	if system != "" {
		out.SystemInstruction = &generateContent{
			Parts: []generatePart{{Text: system}},
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			name := strings.TrimSpace(tool.Name)
			if name == "" {
				return generateRequest{}, fmt.Errorf("tool name is required")
			}
			decl := functionDeclaration{
				Name:        name,
				Description: strings.TrimSpace(tool.Description),
			}
			if schema := strings.TrimSpace(tool.ParameterSchema); schema != "" {
				if !json.Valid([]byte(schema)) {
					return generateRequest{}, fmt.Errorf("tool %s has invalid parameter schema", name)
				}
				decl.Parameters = json.RawMessage(schema)
			}
			decls = append(decls, decl)
		}
		out.Tools = []generateTools{{FunctionDeclarations: decls}}
	}

	cfg := &generationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		TopK:            req.TopK,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.ForceJSON {
		cfg.ResponseMimeType = "application/json"
	} else {
		cfg.ResponseMimeType = "text/plain"
	}
	out.GenerationConfig = cfg
	return out, nil
}
