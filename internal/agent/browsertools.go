// internal/agent/browsertools.go
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/page"
)

// BrowserToolset exposes the page engine to the inference provider as the
// fixed tool surface: analyze_page, navigate, go_back, scroll, click, type,
// select_option, keyboard_action, ask_user. Every tool returns a plain
// status string; failures are strings too, never errors.
type BrowserToolset struct {
	backend  schemas.BrowserBackend
	analyzer *page.Analyzer
	scroller *page.Scroller
	resolver *page.Resolver
	executor *page.Executor
	keyboard *Keyboard
	prompter *UserPrompter
	logger   *zap.Logger
}

func NewBrowserToolset(
	backend schemas.BrowserBackend,
	analyzer *page.Analyzer,
	scroller *page.Scroller,
	resolver *page.Resolver,
	executor *page.Executor,
	keyboard *Keyboard,
	prompter *UserPrompter,
	logger *zap.Logger,
) *BrowserToolset {
	return &BrowserToolset{
		backend:  backend,
		analyzer: analyzer,
		scroller: scroller,
		resolver: resolver,
		executor: executor,
		keyboard: keyboard,
		prompter: prompter,
		logger:   logger.Named("tools"),
	}
}

// Tools returns the full registry in the order the prompt documents them.
func (t *BrowserToolset) Tools() []Tool {
	return []Tool{
		{
			Schema: schemas.ToolSchema{
				Name:        "analyze_page",
				Description: "Analyzes the current page and returns all visible content and interactive elements. Extracts buttons, links, inputs, text content with unique IDs for each element. Use this tool to see what's on the page before interacting with it.",
			},
			Run: t.analyzePage,
		},
		{
			Schema: schemas.ToolSchema{
				Name:        "navigate",
				Description: "Navigates browser to a specified URL. Accepts a full URL or a bare domain (https:// added automatically).",
				Params: []schemas.ParamSpec{
					{Name: "url", Type: "string", Description: "The URL or domain to open.", Required: true},
				},
			},
			Run: t.navigate,
		},
		{
			Schema: schemas.ToolSchema{
				Name:        "go_back",
				Description: "Navigates back to the previous page in browser history. Use when you need to return to a previously visited page.",
			},
			Run: t.goBack,
		},
		{
			Schema: schemas.ToolSchema{
				Name:        "scroll",
				Description: "Scrolls the page viewport. Reports how far it scrolled and whether an edge of the page was reached.",
				Params: []schemas.ParamSpec{
					{Name: "direction", Type: "string", Description: "One of \"down\", \"up\", \"top\", \"bottom\".", Required: true},
				},
			},
			Run: t.scroll,
		},
		{
			Schema: schemas.ToolSchema{
				Name:        "click",
				Description: "Clicks a webpage element using precise targeting. Provide a JSON object like {\"id\": \"5\", \"type\": \"button\", \"text\": \"Submit\"}, a bare element ID from analyze_page output, or a natural-language description. Multiple click strategies are tried for reliability.",
				Params: []schemas.ParamSpec{
					{Name: "target", Type: "string", Description: "JSON target spec, element ID, or description of the element to click.", Required: true},
				},
			},
			Run: t.click,
		},
		{
			Schema: schemas.ToolSchema{
				Name:        "type",
				Description: "Types text into the currently focused input element. IMPORTANT: Click an input field first before using this tool. Existing content is cleared before the new text is typed.",
				Params: []schemas.ParamSpec{
					{Name: "value", Type: "string", Description: "Text to type (replaces any existing content).", Required: true},
				},
			},
			Run: t.typeText,
		},
		{
			Schema: schemas.ToolSchema{
				Name:        "select_option",
				Description: "Selects an option from a dropdown or select element. Example: {\"type\": \"dropdown\", \"text\": \"Country\", \"value\": \"USA\"}.",
				Params: []schemas.ParamSpec{
					{Name: "id", Type: "string", Description: "Element ID from analyze_page."},
					{Name: "type", Type: "string", Description: "Element type, normally \"dropdown\"."},
					{Name: "text", Type: "string", Description: "Dropdown label or description."},
					{Name: "value", Type: "string", Description: "Option text to select.", Required: true},
				},
			},
			Run: t.selectOption,
		},
		{
			Schema: schemas.ToolSchema{
				Name:        "keyboard_action",
				Description: "Simulates keyboard shortcuts and special keys (not for typing text). Accepts special keys (\"enter\", \"tab\", \"escape\"), combinations (\"ctrl+a\", \"shift+tab\"), and comma-separated sequences (\"tab, enter\").",
				Params: []schemas.ParamSpec{
					{Name: "key", Type: "string", Description: "Key command, combination, or sequence.", Required: true},
				},
			},
			Run: t.keyboardAction,
		},
		{
			Schema: schemas.ToolSchema{
				Name:        "ask_user",
				Description: "Requests a single piece of information from the user. Make separate calls for multiple fields.",
				Params: []schemas.ParamSpec{
					{Name: "prompt", Type: "string", Description: "Question to ask.", Required: true},
					{Name: "type", Type: "string", Description: "\"text\", \"password\", or \"choice\" (default: text)."},
					{Name: "choices", Type: "array", Description: "Options for choice type."},
					{Name: "default", Type: "string", Description: "Default value if the user provides no input."},
				},
			},
			Run: t.askUser,
		},
	}
}

func (t *BrowserToolset) analyzePage(ctx context.Context, _ map[string]any) (string, error) {
	content, err := t.analyzer.Analyze(ctx)
	if err != nil {
		return fmt.Sprintf("Error analyzing page: %v", err), nil
	}
	return content, nil
}

func (t *BrowserToolset) navigate(ctx context.Context, args map[string]any) (string, error) {
	url := cleanURL(stringArg(args, "url"))
	if url == "" {
		return "Error: 'url' parameter is required.", nil
	}

	t.logger.Info("Navigating", zap.String("url", url))
	if err := t.backend.Navigate(ctx, url); err != nil {
		return fmt.Sprintf("Error navigating to %s: %v", url, err), nil
	}

	current, err := t.backend.CurrentURL(ctx)
	if err != nil {
		current = url
	}
	return fmt.Sprintf("Navigated to %s - Current page: %s", url, current), nil
}

// cleanURL repairs the model's habitual URL mangling: markdown backticks,
// doubled protocol prefixes, and missing schemes.
func cleanURL(url string) string {
	url = strings.TrimSpace(strings.ReplaceAll(url, "`", ""))
	if url == "" {
		return ""
	}

	if strings.Count(url, "http") > 1 {
		last := max(strings.LastIndex(url, "http://"), strings.LastIndex(url, "https://"))
		if last >= 0 {
			url = url[last:]
		}
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url
}

func (t *BrowserToolset) goBack(ctx context.Context, _ map[string]any) (string, error) {
	before, err := t.backend.CurrentURL(ctx)
	if err != nil {
		return fmt.Sprintf("Error navigating back: %v", err), nil
	}

	var canGoBack bool
	if err := t.backend.Evaluate(ctx, "window.history.length > 1", &canGoBack); err == nil && !canGoBack {
		return "Cannot go back - no previous page in history", nil
	}

	if err := t.backend.Back(ctx); err != nil {
		return fmt.Sprintf("Error navigating back: %v", err), nil
	}

	after, err := t.backend.CurrentURL(ctx)
	if err != nil {
		return fmt.Sprintf("Error navigating back: %v", err), nil
	}

	if after == before {
		// The native back can silently no-op on some SPAs.
		if err := t.backend.Evaluate(ctx, "window.history.back()", nil); err == nil {
			after, _ = t.backend.CurrentURL(ctx)
		}
	}

	if after != before {
		return fmt.Sprintf("Navigated back to previous page: %s", after), nil
	}
	return "Back navigation attempted but URL remains unchanged", nil
}

func (t *BrowserToolset) scroll(ctx context.Context, args map[string]any) (string, error) {
	return t.scroller.Scroll(ctx, stringArg(args, "direction")), nil
}

func (t *BrowserToolset) click(ctx context.Context, args map[string]any) (string, error) {
	target := targetFromArgs(args)

	rec, err := t.resolver.Resolve(ctx, target)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return t.executor.Click(ctx, rec).Message, nil
}

func (t *BrowserToolset) typeText(ctx context.Context, args map[string]any) (string, error) {
	return t.executor.Type(ctx, stringArg(args, "value")).Message, nil
}

func (t *BrowserToolset) selectOption(ctx context.Context, args map[string]any) (string, error) {
	value := stringArg(args, "value")
	if value == "" {
		return "Error: 'value' parameter is required.", nil
	}

	rec, err := t.resolver.Resolve(ctx, targetFromArgs(args))
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return t.executor.Select(ctx, rec, value).Message, nil
}

func (t *BrowserToolset) keyboardAction(ctx context.Context, args map[string]any) (string, error) {
	return t.keyboard.Action(ctx, stringArg(args, "key", "input", "keys")), nil
}

func (t *BrowserToolset) askUser(_ context.Context, args map[string]any) (string, error) {
	var spec askSpec
	if raw, ok := args["spec"]; ok {
		spec = parseAskSpec(raw)
	} else {
		spec = parseAskSpec(args)
	}
	return t.prompter.Ask(spec), nil
}

// targetFromArgs accepts either a nested "target" argument or id/type/text
// fields inlined at the top level.
func targetFromArgs(args map[string]any) page.Target {
	if raw, ok := args["target"]; ok {
		return page.ParseTarget(raw)
	}
	return page.ParseTarget(args)
}

// stringArg returns the first present key rendered as a string. Numeric
// values are accepted since the model does not always quote them.
func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := args[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}
