// internal/agent/browsertools_test.go
package agent

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/page"
)

func newTestToolset(backend *fakeBackend) (*BrowserToolset, *page.State) {
	logger := zap.NewNop()
	state := page.NewState(backend)
	analyzer := page.NewAnalyzer(state, logger)
	scroller := page.NewScroller(backend, logger)
	resolver := page.NewResolver(state, analyzer, scroller, logger)
	executor := page.NewExecutor(backend, page.NewCursor(backend, logger), logger)
	keyboard := NewKeyboard(backend, logger)
	prompter := NewUserPrompter(strings.NewReader(""), &bytes.Buffer{}, logger)

	return NewBrowserToolset(backend, analyzer, scroller, resolver, executor, keyboard, prompter, logger), state
}

func runTool(t *testing.T, ts *BrowserToolset, name string, args map[string]any) string {
	t.Helper()
	for _, tool := range ts.Tools() {
		if tool.Schema.Name == name {
			result, err := tool.Run(context.Background(), args)
			require.NoError(t, err)
			return result
		}
	}
	t.Fatalf("tool %s not registered", name)
	return ""
}

func TestToolsetDeclaresFullSurface(t *testing.T) {
	ts, _ := newTestToolset(&fakeBackend{})

	var names []string
	for _, tool := range ts.Tools() {
		names = append(names, tool.Schema.Name)
		assert.NotEmpty(t, tool.Schema.Description, tool.Schema.Name)
		assert.NotNil(t, tool.Run, tool.Schema.Name)
	}

	assert.Equal(t, []string{
		"analyze_page", "navigate", "go_back", "scroll", "click",
		"type", "select_option", "keyboard_action", "ask_user",
	}, names)
}

func TestCleanURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example.com", "https://example.com"},
		{"`https://example.com`", "https://example.com"},
		{"  example.com/path  ", "https://example.com/path"},
		{"https://https://example.com", "https://example.com"},
		{"http://example.com https://other.com", "https://other.com"},
		{"http://plain.com", "http://plain.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanURL(tt.in), tt.in)
	}
}

func TestNavigateTool(t *testing.T) {
	backend := &fakeBackend{urlSeq: []string{"https://example.com/home"}}
	ts, _ := newTestToolset(backend)

	msg := runTool(t, ts, "navigate", map[string]any{"url": "example.com"})
	assert.Equal(t, "Navigated to https://example.com - Current page: https://example.com/home", msg)
	assert.Equal(t, []string{"https://example.com"}, backend.navigations)
}

func TestNavigateToolRequiresURL(t *testing.T) {
	ts, _ := newTestToolset(&fakeBackend{})
	assert.Equal(t, "Error: 'url' parameter is required.", runTool(t, ts, "navigate", map[string]any{}))
}

func TestGoBackWithoutHistory(t *testing.T) {
	backend := &fakeBackend{urlSeq: []string{"https://a.example"}}
	backend.evalFn = func(script string, out any) error {
		if strings.Contains(script, "history.length") {
			return writeResult(out, false)
		}
		return nil
	}
	ts, _ := newTestToolset(backend)

	msg := runTool(t, ts, "go_back", nil)
	assert.Equal(t, "Cannot go back - no previous page in history", msg)
	assert.Zero(t, backend.backCalls)
}

func TestGoBackReportsNewURL(t *testing.T) {
	backend := &fakeBackend{urlSeq: []string{"https://a.example/page2", "https://a.example/page1"}}
	backend.evalFn = func(script string, out any) error {
		if strings.Contains(script, "history.length") {
			return writeResult(out, true)
		}
		return nil
	}
	ts, _ := newTestToolset(backend)

	msg := runTool(t, ts, "go_back", nil)
	assert.Equal(t, "Navigated back to previous page: https://a.example/page1", msg)
	assert.Equal(t, 1, backend.backCalls)
}

func TestGoBackURLUnchanged(t *testing.T) {
	backend := &fakeBackend{urlSeq: []string{"https://a.example"}}
	backend.evalFn = func(script string, out any) error {
		if strings.Contains(script, "history.length") {
			return writeResult(out, true)
		}
		return nil
	}
	ts, _ := newTestToolset(backend)

	msg := runTool(t, ts, "go_back", nil)
	assert.Equal(t, "Back navigation attempted but URL remains unchanged", msg)
}

func TestClickToolResolvesFromSnapshot(t *testing.T) {
	backend := &fakeBackend{}
	ts, state := newTestToolset(backend)

	state.SetSnapshot([]schemas.ElementRecord{{
		ID: 0, Tag: "button", Type: schemas.TypeButton, Text: "Submit",
		Selector: "#submit", CenterX: 50, CenterY: 60,
		Visible: true, InViewport: true,
	}})

	msg := runTool(t, ts, "click", map[string]any{"target": "0"})
	assert.Equal(t, "Clicked on element: button with text 'Submit'", msg)
}

func TestClickToolReportsResolutionFailure(t *testing.T) {
	backend := &fakeBackend{}
	backend.evalFn = func(script string, out any) error {
		if strings.Contains(script, "extractContent") {
			return writeResult(out, map[string]any{"content": []string{}, "elements": []any{}})
		}
		return nil
	}
	ts, _ := newTestToolset(backend)

	msg := runTool(t, ts, "click", map[string]any{"target": "Launch button"})
	assert.True(t, strings.HasPrefix(msg, "Error: no elements matching"), msg)
}

func TestSelectOptionRequiresValue(t *testing.T) {
	ts, _ := newTestToolset(&fakeBackend{})
	msg := runTool(t, ts, "select_option", map[string]any{"text": "Country"})
	assert.Equal(t, "Error: 'value' parameter is required.", msg)
}

func TestTypeToolDelegatesToExecutor(t *testing.T) {
	backend := &fakeBackend{}
	backend.evalFn = func(script string, out any) error {
		// Focused-element clear reports success.
		return writeResult(out, true)
	}
	ts, _ := newTestToolset(backend)

	msg := runTool(t, ts, "type", map[string]any{"value": "hello"})
	assert.Equal(t, "Cleared field and typed 'hello' into currently focused element", msg)
	assert.Equal(t, []string{"hello"}, backend.typed)
}

func TestKeyboardToolAcceptsAlternateArgNames(t *testing.T) {
	backend := &fakeBackend{}
	ts, _ := newTestToolset(backend)

	assert.Equal(t, "Pressed enter", runTool(t, ts, "keyboard_action", map[string]any{"input": "enter"}))
}

func TestStringArg(t *testing.T) {
	args := map[string]any{"url": "example.com", "id": float64(5), "empty": nil}

	assert.Equal(t, "example.com", stringArg(args, "url"))
	assert.Equal(t, "5", stringArg(args, "id"))
	assert.Equal(t, "", stringArg(args, "missing"))
	assert.Equal(t, "example.com", stringArg(args, "empty", "url"))
}

func TestTargetFromArgsInlineFields(t *testing.T) {
	target := targetFromArgs(map[string]any{"id": "3", "type": "button", "value": "USA"})
	assert.True(t, target.HasIndex)
	assert.Equal(t, 3, target.Index)
	assert.Equal(t, "button", target.Type)
}
