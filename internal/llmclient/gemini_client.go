// internal/llmclient/gemini_client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

// GeminiClient implements the schemas.LLMClient interface over the Gemini
// generateContent REST API, including native function calling.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	config     config.LLMModelConfig
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// -- Gemini API Request/Response Structures (Internal to this file) --

type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type GeminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *GeminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *GeminiFunctionResponse `json:"functionResponse,omitempty"`
}

type GeminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type GeminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type GeminiSystemInstruction struct {
	Parts []GeminiPart `json:"parts"`
}

type GeminiTool struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations"`
}

type GeminiFunctionDeclaration struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Parameters  *GeminiSchema `json:"parameters,omitempty"`
}

// GeminiSchema is the OpenAPI subset the API accepts for parameter schemas.
type GeminiSchema struct {
	Type        string                  `json:"type"`
	Description string                  `json:"description,omitempty"`
	Properties  map[string]GeminiSchema `json:"properties,omitempty"`
	Items       *GeminiSchema           `json:"items,omitempty"`
	Required    []string                `json:"required,omitempty"`
}

type GeminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float32 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type GeminiRequestPayload struct {
	Contents          []GeminiContent          `json:"contents"`
	SystemInstruction *GeminiSystemInstruction `json:"system_instruction,omitempty"`
	Tools             []GeminiTool             `json:"tools,omitempty"`
	GenerationConfig  GeminiGenerationConfig   `json:"generationConfig,omitempty"`
}

type GeminiResponsePayload struct {
	Candidates []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes the client.
func NewGeminiClient(cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1)
	}

	return &GeminiClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		config:   cfg,
		limiter:  limiter,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("llm_client.gemini"),
	}, nil
}

// Chat sends the conversation history and tool declarations to the Gemini API
// and returns the assistant's next message, retrying transient failures.
func (c *GeminiClient) Chat(ctx context.Context, history []schemas.Message, tools []schemas.ToolSchema) (schemas.Message, error) {
	payload := c.buildRequestPayload(history, tools)

	body, err := json.Marshal(payload)
	if err != nil {
		return schemas.Message{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var reply schemas.Message

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter interrupted: %w", err))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload GeminiResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		if len(responsePayload.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := responsePayload.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		c.logger.Info("LLM generation complete (Gemini)",
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", responsePayload.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", responsePayload.UsageMetadata.CandidatesTokenCount),
			zap.Int("total_tokens", responsePayload.UsageMetadata.TotalTokenCount),
		)

		reply = messageFromParts(candidate.Content.Parts)
		return nil
	}

	if err = backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return schemas.Message{}, err
	}

	return reply, nil
}

// messageFromParts folds the candidate parts into a single assistant message.
// Text parts concatenate; each functionCall part becomes a tool call with a
// freshly minted id, since the API does not supply one.
func messageFromParts(parts []GeminiPart) schemas.Message {
	var text strings.Builder
	var calls []schemas.ToolCall

	for _, part := range parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			calls = append(calls, schemas.ToolCall{
				ID:   uuid.NewString(),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}

	return schemas.AssistantMessage(strings.TrimSpace(text.String()), calls...)
}

func (c *GeminiClient) buildRequestPayload(history []schemas.Message, tools []schemas.ToolSchema) GeminiRequestPayload {
	payload := GeminiRequestPayload{
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     float64(c.config.Temperature),
			TopP:            c.config.TopP,
			TopK:            c.config.TopK,
			MaxOutputTokens: c.config.MaxTokens,
		},
		Tools: toolsToGemini(tools),
	}

	var systemParts []GeminiPart

	for _, msg := range history {
		switch msg.Role {
		case schemas.RoleSystem:
			systemParts = append(systemParts, GeminiPart{Text: msg.Content})

		case schemas.RoleUser:
			payload.Contents = append(payload.Contents, GeminiContent{
				Role:  "user",
				Parts: []GeminiPart{{Text: msg.Content}},
			})

		case schemas.RoleAssistant:
			var parts []GeminiPart
			if msg.Content != "" {
				parts = append(parts, GeminiPart{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, GeminiPart{FunctionCall: &GeminiFunctionCall{
					Name: call.Name,
					Args: call.Args,
				}})
			}
			if len(parts) == 0 {
				continue
			}
			payload.Contents = append(payload.Contents, GeminiContent{Role: "model", Parts: parts})

		case schemas.RoleTool:
			payload.Contents = append(payload.Contents, GeminiContent{
				Role: "user",
				Parts: []GeminiPart{{FunctionResponse: &GeminiFunctionResponse{
					Name:     msg.ToolName,
					Response: map[string]any{"result": msg.Content},
				}}},
			})
		}
	}

	if len(systemParts) > 0 {
		payload.SystemInstruction = &GeminiSystemInstruction{Parts: systemParts}
	}

	return payload
}

// toolsToGemini converts the flat parameter specs into the OBJECT schemas the
// API expects. All declarations ride in a single tool entry.
func toolsToGemini(tools []schemas.ToolSchema) []GeminiTool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]GeminiFunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decl := GeminiFunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if len(tool.Params) > 0 {
			params := &GeminiSchema{
				Type:       "OBJECT",
				Properties: make(map[string]GeminiSchema, len(tool.Params)),
			}
			for _, p := range tool.Params {
				prop := GeminiSchema{
					Type:        geminiType(p.Type),
					Description: p.Description,
				}
				// ARRAY properties must carry an items sub-schema or the API
				// rejects the declaration with INVALID_ARGUMENT.
				if prop.Type == "ARRAY" {
					prop.Items = &GeminiSchema{Type: "STRING"}
				}
				params.Properties[p.Name] = prop
				if p.Required {
					params.Required = append(params.Required, p.Name)
				}
			}
			decl.Parameters = params
		}
		decls = append(decls, decl)
	}

	return []GeminiTool{{FunctionDeclarations: decls}}
}

func geminiType(t string) string {
	switch strings.ToLower(t) {
	case "integer", "int":
		return "INTEGER"
	case "number", "float":
		return "NUMBER"
	case "boolean", "bool":
		return "BOOLEAN"
	case "array":
		return "ARRAY"
	case "object":
		return "OBJECT"
	default:
		return "STRING"
	}
}

func (c *GeminiClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Gemini API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}
