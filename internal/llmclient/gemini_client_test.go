// internal/llmclient/gemini_client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

func testModelConfig() config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:    config.ProviderGemini,
		Model:       "gemini-2.5-flash",
		APIKey:      "test-api-key",
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}

// newTestClient spins up an httptest server backed by handler and points a
// client at it. The observed logs let tests assert on usage logging.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *observer.ObservedLogs) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	cfg := testModelConfig()
	cfg.Endpoint = server.URL

	client, err := NewGeminiClient(cfg, logger)
	require.NoError(t, err)
	client.httpClient.Timeout = 5 * time.Second

	return client, logs
}

func textResponse(text string) GeminiResponsePayload {
	var payload GeminiResponsePayload
	payload.Candidates = []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	}{
		{
			Content:      GeminiContent{Role: "model", Parts: []GeminiPart{{Text: text}}},
			FinishReason: "STOP",
		},
	}
	payload.UsageMetadata.PromptTokenCount = 12
	payload.UsageMetadata.CandidatesTokenCount = 7
	payload.UsageMetadata.TotalTokenCount = 19
	return payload
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	cfg := testModelConfig()
	cfg.APIKey = ""

	_, err := NewGeminiClient(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API Key is required")
}

func TestNewGeminiClientBuildsDefaultEndpoint(t *testing.T) {
	client, err := NewGeminiClient(testModelConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent", client.endpoint)
}

func TestChatReturnsTextMessage(t *testing.T) {
	var captured GeminiRequestPayload

	client, logs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeJSON(t, w, textResponse("Hello there."))
	})

	history := []schemas.Message{
		schemas.SystemMessage("You drive a browser."),
		schemas.UserMessage("Say hello."),
	}

	reply, err := client.Chat(context.Background(), history, nil)
	require.NoError(t, err)

	assert.Equal(t, schemas.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello there.", reply.Content)
	assert.Empty(t, reply.ToolCalls)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You drive a browser.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "user", captured.Contents[0].Role)

	usage := logs.FilterMessage("LLM generation complete (Gemini)").All()
	require.Len(t, usage, 1)
	assert.Equal(t, int64(19), usage[0].ContextMap()["total_tokens"])
}

func TestChatParsesFunctionCalls(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload GeminiResponsePayload
		payload.Candidates = []struct {
			Content      GeminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		}{
			{
				Content: GeminiContent{Role: "model", Parts: []GeminiPart{
					{Text: "Clicking the button now."},
					{FunctionCall: &GeminiFunctionCall{Name: "click", Args: map[string]any{"target": "Submit"}}},
					{FunctionCall: &GeminiFunctionCall{Name: "analyze_page"}},
				}},
				FinishReason: "STOP",
			},
		}
		writeJSON(t, w, payload)
	})

	reply, err := client.Chat(context.Background(), []schemas.Message{schemas.UserMessage("go")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Clicking the button now.", reply.Content)
	require.Len(t, reply.ToolCalls, 2)
	assert.Equal(t, "click", reply.ToolCalls[0].Name)
	assert.Equal(t, "Submit", reply.ToolCalls[0].Args["target"])
	assert.Equal(t, "analyze_page", reply.ToolCalls[1].Name)
	assert.NotEmpty(t, reply.ToolCalls[0].ID)
	assert.NotEqual(t, reply.ToolCalls[0].ID, reply.ToolCalls[1].ID)
}

func TestChatSendsToolDeclarations(t *testing.T) {
	var captured GeminiRequestPayload

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeJSON(t, w, textResponse("ok"))
	})

	tools := []schemas.ToolSchema{
		{
			Name:        "click",
			Description: "Click an element.",
			Params: []schemas.ParamSpec{
				{Name: "target", Type: "string", Description: "What to click.", Required: true},
				{Name: "count", Type: "integer", Description: "How many times."},
			},
		},
		{Name: "analyze_page", Description: "Snapshot the page."},
	}

	_, err := client.Chat(context.Background(), []schemas.Message{schemas.UserMessage("go")}, tools)
	require.NoError(t, err)

	require.Len(t, captured.Tools, 1)
	decls := captured.Tools[0].FunctionDeclarations
	require.Len(t, decls, 2)

	assert.Equal(t, "click", decls[0].Name)
	require.NotNil(t, decls[0].Parameters)
	assert.Equal(t, "OBJECT", decls[0].Parameters.Type)
	assert.Equal(t, "STRING", decls[0].Parameters.Properties["target"].Type)
	assert.Equal(t, "INTEGER", decls[0].Parameters.Properties["count"].Type)
	assert.Equal(t, []string{"target"}, decls[0].Parameters.Required)

	// A declaration without params carries no schema at all.
	assert.Equal(t, "analyze_page", decls[1].Name)
	assert.Nil(t, decls[1].Parameters)
}

func TestChatArrayParamsCarryItemsSchema(t *testing.T) {
	var captured GeminiRequestPayload

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeJSON(t, w, textResponse("ok"))
	})

	tools := []schemas.ToolSchema{{
		Name:        "ask_user",
		Description: "Ask the user.",
		Params: []schemas.ParamSpec{
			{Name: "prompt", Type: "string", Description: "The question.", Required: true},
			{Name: "choices", Type: "array", Description: "Options for choice type."},
		},
	}}

	_, err := client.Chat(context.Background(), []schemas.Message{schemas.UserMessage("go")}, tools)
	require.NoError(t, err)

	require.Len(t, captured.Tools, 1)
	props := captured.Tools[0].FunctionDeclarations[0].Parameters.Properties

	choices := props["choices"]
	assert.Equal(t, "ARRAY", choices.Type)
	require.NotNil(t, choices.Items, "ARRAY properties must declare an items sub-schema")
	assert.Equal(t, "STRING", choices.Items.Type)
	assert.Nil(t, props["prompt"].Items)
}

func TestChatMapsToolHistory(t *testing.T) {
	var captured GeminiRequestPayload

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeJSON(t, w, textResponse("done"))
	})

	history := []schemas.Message{
		schemas.UserMessage("click submit"),
		schemas.AssistantMessage("", schemas.ToolCall{ID: "call-1", Name: "click", Args: map[string]any{"target": "Submit"}}),
		schemas.ToolMessage("call-1", "click", "Clicked on element: button with text 'Submit'"),
	}

	_, err := client.Chat(context.Background(), history, nil)
	require.NoError(t, err)

	require.Len(t, captured.Contents, 3)

	model := captured.Contents[1]
	assert.Equal(t, "model", model.Role)
	require.Len(t, model.Parts, 1)
	require.NotNil(t, model.Parts[0].FunctionCall)
	assert.Equal(t, "click", model.Parts[0].FunctionCall.Name)

	toolTurn := captured.Contents[2]
	assert.Equal(t, "user", toolTurn.Role)
	require.Len(t, toolTurn.Parts, 1)
	require.NotNil(t, toolTurn.Parts[0].FunctionResponse)
	assert.Equal(t, "click", toolTurn.Parts[0].FunctionResponse.Name)
	assert.Equal(t, "Clicked on element: button with text 'Submit'", toolTurn.Parts[0].FunctionResponse.Response["result"])
}

func TestChatRetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int32

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, textResponse("recovered"))
	})

	reply, err := client.Chat(context.Background(), []schemas.Message{schemas.UserMessage("go")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestChatDoesNotRetryPermanentErrors(t *testing.T) {
	var attempts atomic.Int32

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := client.Chat(context.Background(), []schemas.Message{schemas.UserMessage("go")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestChatSafetyBlockIsPermanent(t *testing.T) {
	var attempts atomic.Int32

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var payload GeminiResponsePayload
		payload.Candidates = []struct {
			Content      GeminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		}{
			{FinishReason: "SAFETY"},
		}
		writeJSON(t, w, payload)
	})

	_, err := client.Chat(context.Background(), []schemas.Message{schemas.UserMessage("go")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestGeminiTypeMapping(t *testing.T) {
	assert.Equal(t, "STRING", geminiType("string"))
	assert.Equal(t, "STRING", geminiType(""))
	assert.Equal(t, "INTEGER", geminiType("int"))
	assert.Equal(t, "NUMBER", geminiType("float"))
	assert.Equal(t, "BOOLEAN", geminiType("Boolean"))
	assert.Equal(t, "ARRAY", geminiType("array"))
	assert.Equal(t, "OBJECT", geminiType("object"))
}
