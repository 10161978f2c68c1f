package schemas

import (
	"context"
	"time"
)

// -- LLM Interface --

// LLMClient defines the contract with a model inference provider. It accepts
// the full ordered history plus the tool schemas available this turn, and
// returns exactly one assistant message (text and zero or more tool calls).
type LLMClient interface {
	Chat(ctx context.Context, history []Message, tools []ToolSchema) (Message, error)
}

// -- Browser Automation Backend --

// BrowserBackend is the minimal browser-control surface the snapshot,
// resolution, and execution layers are written against. The concrete
// implementation drives a Chrome tab over CDP; tests substitute fakes.
//
// All methods block until the operation completes or ctx expires. Navigation
// waits are bounded by the backend's configured navigation timeout; pointer
// and selector operations carry short internal timeouts of their own.
type BrowserBackend interface {
	// Navigate loads the URL in the current tab and waits for the document
	// to become ready.
	Navigate(ctx context.Context, url string) error
	// Back navigates one entry back in session history.
	Back(ctx context.Context) error
	// CurrentURL reports the tab's current location.
	CurrentURL(ctx context.Context) (string, error)

	// Evaluate runs script in page context and unmarshals the completion
	// value into out. Pass a nil out to discard the result.
	Evaluate(ctx context.Context, script string, out any) error

	// ClickAt dispatches a physical pointer click at page coordinates.
	ClickAt(ctx context.Context, x, y float64) error
	// ClickSelector scrolls the first match into view and clicks it,
	// bounded by timeout.
	ClickSelector(ctx context.Context, selector string, timeout time.Duration) error

	// TypeText emits keystrokes into whatever element currently has focus.
	TypeText(ctx context.Context, text string) error
	// PressKey dispatches a structured key press (key name plus modifier
	// bitmask) as a down/up pair.
	PressKey(ctx context.Context, key string, modifiers KeyModifier) error
}

// KeyModifier is a bitmask of held modifier keys for PressKey.
type KeyModifier int

const (
	ModAlt KeyModifier = 1 << iota
	ModCtrl
	ModMeta
	ModShift
)

// -- Session Memory --

// ConversationMemory is the bounded cross-invocation store the agent loop
// consults once per invocation (for context) and appends to once per
// completed or exhausted invocation.
type ConversationMemory interface {
	// Context returns a formatted window over the n most recent messages,
	// most recent last. Empty string when nothing is retained.
	Context(n int) string
	// AppendExchange records one completed input/output pair.
	AppendExchange(input, output string, success bool)
}
