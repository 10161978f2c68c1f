// internal/page/executor.go
package page

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

const selectorClickTimeout = 2 * time.Second

// Executor performs actions against resolved elements through ordered
// fallback strategies. It never returns an error outward: every backend
// failure is caught per strategy and folded into the result message.
type Executor struct {
	backend schemas.BrowserBackend
	cursor  *Cursor
	logger  *zap.Logger
}

// NewExecutor creates an executor over the backend.
func NewExecutor(backend schemas.BrowserBackend, cursor *Cursor, logger *zap.Logger) *Executor {
	return &Executor{
		backend: backend,
		cursor:  cursor,
		logger:  logger.Named("executor"),
	}
}

// clickStrategy is one technique in the click cascade.
type clickStrategy struct {
	name string
	run  func(ctx context.Context, rec schemas.ElementRecord) error
}

// Click tries each strategy in order and stops at the first success. If all
// strategies fail, the result aggregates one diagnostic per attempt.
func (e *Executor) Click(ctx context.Context, rec schemas.ElementRecord) schemas.ActionResult {
	// Visual feedback only; no functional role.
	e.cursor.MoveTo(ctx, rec.CenterX, rec.CenterY)

	strategies := []clickStrategy{
		{"Coordinate click", e.clickByCoordinates},
		{"CSS selector click", e.clickBySelector},
		{"JavaScript click", e.clickByScript},
		{"JavaScript text search click", e.clickByTextSearch},
		{"Event dispatch click", e.clickByDispatchedEvent},
	}

	var errors []string
	for _, strategy := range strategies {
		err := strategy.run(ctx, rec)
		if err == nil {
			e.logger.Debug("Click succeeded.", zap.String("strategy", strategy.name), zap.Int("id", rec.ID))
			return schemas.ActionResult{
				Success: true,
				Message: fmt.Sprintf("Clicked on element: %s with text '%s'", rec.Type, rec.Text),
			}
		}
		e.logger.Debug("Click strategy failed.", zap.String("strategy", strategy.name), zap.Error(err))
		errors = append(errors, fmt.Sprintf("%s failed: %v", strategy.name, err))
	}

	return schemas.ActionResult{
		Success: false,
		Message: "Failed to click element after trying multiple methods. Errors: " + strings.Join(errors, "; "),
	}
}

func (e *Executor) clickByCoordinates(ctx context.Context, rec schemas.ElementRecord) error {
	return e.backend.ClickAt(ctx, rec.CenterX, rec.CenterY)
}

func (e *Executor) clickBySelector(ctx context.Context, rec schemas.ElementRecord) error {
	if rec.Selector == "" {
		return fmt.Errorf("no selector recorded for element")
	}
	return e.backend.ClickSelector(ctx, rec.Selector, selectorClickTimeout)
}

func (e *Executor) clickByScript(ctx context.Context, rec schemas.ElementRecord) error {
	if rec.Selector == "" {
		return fmt.Errorf("no selector recorded for element")
	}
	script := fmt.Sprintf(`
        (() => {
            const el = document.querySelector(%s);
            if (!el) return false;
            el.click();
            return true;
        })()`, jsonEncode(rec.Selector))

	var clicked bool
	if err := e.backend.Evaluate(ctx, script, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("element not found for selector '%s'", rec.Selector)
	}
	return nil
}

// clickByTextSearch scans the whole document for an element matching the
// record's text and tag and calls its click method directly. This bypasses
// the cached selector, recovering from selectors gone stale since the
// snapshot.
func (e *Executor) clickByTextSearch(ctx context.Context, rec schemas.ElementRecord) error {
	script := fmt.Sprintf(`
        ((targetText, targetType) => {
            const elements = Array.from(document.querySelectorAll('*'));
            const target = elements.find(el => {
                const text = (el.innerText || el.textContent || '').trim();
                const tag = el.tagName.toLowerCase();
                return targetText !== '' && text.includes(targetText) &&
                       (targetType === '' || tag === targetType || el.type === targetType);
            });
            if (target) {
                target.click();
                return true;
            }
            return false;
        })(%s, %s)`, jsonEncode(rec.Text), jsonEncode(rec.Type))

	var clicked bool
	if err := e.backend.Evaluate(ctx, script, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("element not found")
	}
	return nil
}

func (e *Executor) clickByDispatchedEvent(ctx context.Context, rec schemas.ElementRecord) error {
	if rec.Selector == "" {
		return fmt.Errorf("no selector recorded for element")
	}
	script := fmt.Sprintf(`
        (() => {
            const el = document.querySelector(%s);
            if (!el) return false;
            const event = new MouseEvent('click', {
                view: window,
                bubbles: true,
                cancelable: true
            });
            el.dispatchEvent(event);
            return true;
        })()`, jsonEncode(rec.Selector))

	var dispatched bool
	if err := e.backend.Evaluate(ctx, script, &dispatched); err != nil {
		return err
	}
	if !dispatched {
		return fmt.Errorf("element not found for selector '%s'", rec.Selector)
	}
	return nil
}

// clearFocusedScript empties the currently focused input-capable element.
// Returns false when nothing input-capable holds focus, in which case typing
// proceeds into whatever does.
const clearFocusedScript = `
(() => {
    const active = document.activeElement;
    if (active && (
        active.tagName === 'INPUT' ||
        active.tagName === 'TEXTAREA' ||
        active.contentEditable === 'true'
    )) {
        if (active.tagName === 'INPUT' || active.tagName === 'TEXTAREA') {
            active.value = '';
        } else {
            active.textContent = '';
        }
        active.focus();
        return true;
    }
    return false;
})()
`

// Type clears the focused field and emits keystrokes for value. Callers are
// responsible for the click-before-type discipline; focus is not re-verified
// here.
func (e *Executor) Type(ctx context.Context, value string) schemas.ActionResult {
	if value == "" {
		return schemas.ActionResult{Success: false, Message: "Error: 'value' parameter is required."}
	}

	var cleared bool
	if err := e.backend.Evaluate(ctx, clearFocusedScript, &cleared); err != nil {
		e.logger.Debug("Field clear failed, typing anyway.", zap.Error(err))
	} else if !cleared {
		e.logger.Warn("Could not identify focused element for clearing.")
	}

	if err := e.backend.TypeText(ctx, value); err != nil {
		return schemas.ActionResult{Success: false, Message: fmt.Sprintf("Error typing: %v", err)}
	}

	return schemas.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Cleared field and typed '%s' into currently focused element", value),
	}
}

// Select picks an option from a dropdown. Native select controls go through
// label, then value, then numeric index; anything else is treated as a custom
// dropdown, clicked open and searched for a matching option node.
func (e *Executor) Select(ctx context.Context, rec schemas.ElementRecord, value string) schemas.ActionResult {
	if strings.EqualFold(rec.Tag, "select") {
		return e.selectNative(ctx, rec, value)
	}
	return e.selectCustom(ctx, rec, value)
}

func (e *Executor) selectNative(ctx context.Context, rec schemas.ElementRecord, value string) schemas.ActionResult {
	if rec.Selector == "" {
		return schemas.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Could not determine a valid selector for dropdown: %s with text '%s'", rec.Type, rec.Text),
		}
	}

	if err := e.selectOptionBy(ctx, rec.Selector, "label", value); err == nil {
		return schemas.ActionResult{
			Success: true,
			Message: fmt.Sprintf("Selected option '%s' from dropdown: %s by visible text", value, rec.Text),
		}
	} else if valueErr := e.selectOptionBy(ctx, rec.Selector, "value", value); valueErr == nil {
		return schemas.ActionResult{
			Success: true,
			Message: fmt.Sprintf("Selected option with value '%s' from dropdown: %s", value, rec.Text),
		}
	} else if _, numErr := strconv.Atoi(value); numErr == nil {
		if indexErr := e.selectOptionBy(ctx, rec.Selector, "index", value); indexErr == nil {
			return schemas.ActionResult{
				Success: true,
				Message: fmt.Sprintf("Selected option at index %s from dropdown: %s", value, rec.Text),
			}
		} else {
			return schemas.ActionResult{
				Success: false,
				Message: fmt.Sprintf("Failed to select option '%s' from dropdown: %v", value, indexErr),
			}
		}
	} else {
		return schemas.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Failed to select option '%s' from dropdown: could not select by text or value: %v, %v", value, err, valueErr),
		}
	}
}

// selectOptionBy applies one native selection mode in page context and fires
// the input/change events a framework would expect.
func (e *Executor) selectOptionBy(ctx context.Context, selector, mode, value string) error {
	script := fmt.Sprintf(`
        ((sel, mode, value) => {
            const select = document.querySelector(sel);
            if (!select || select.tagName !== 'SELECT') return false;
            const options = Array.from(select.options);
            let idx = -1;
            if (mode === 'label') {
                idx = options.findIndex(o => o.label.trim() === value || o.text.trim() === value);
            } else if (mode === 'value') {
                idx = options.findIndex(o => o.value === value);
            } else if (mode === 'index') {
                const n = parseInt(value, 10);
                if (n >= 0 && n < options.length) idx = n;
            }
            if (idx < 0) return false;
            select.selectedIndex = idx;
            select.dispatchEvent(new Event('input', { bubbles: true }));
            select.dispatchEvent(new Event('change', { bubbles: true }));
            return true;
        })(%s, %s, %s)`, jsonEncode(selector), jsonEncode(mode), jsonEncode(value))

	var selected bool
	if err := e.backend.Evaluate(ctx, script, &selected); err != nil {
		return err
	}
	if !selected {
		return fmt.Errorf("no option matched by %s '%s'", mode, value)
	}
	return nil
}

// customOption is the position of an option node found in an opened custom
// dropdown.
type customOption struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

func (e *Executor) selectCustom(ctx context.Context, rec schemas.ElementRecord, value string) schemas.ActionResult {
	// Click the dropdown open first.
	e.cursor.MoveTo(ctx, rec.CenterX, rec.CenterY)
	if err := e.backend.ClickAt(ctx, rec.CenterX, rec.CenterY); err != nil {
		return schemas.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Error selecting option from dropdown: %v", err),
		}
	}

	// Give the dropdown a moment to render its options.
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return schemas.ActionResult{Success: false, Message: fmt.Sprintf("Error selecting option from dropdown: %v", ctx.Err())}
	}

	script := fmt.Sprintf(`
        ((optionText) => {
            const options = Array.from(document.querySelectorAll('li, div[role="option"], option, .dropdown-item'));

            let found = options.find(el =>
                el.innerText.trim() === optionText ||
                el.textContent.trim() === optionText ||
                el.getAttribute('value') === optionText
            );
            if (!found) {
                found = options.find(el =>
                    el.innerText.trim().includes(optionText) ||
                    el.textContent.trim().includes(optionText)
                );
            }
            if (!found) return null;

            const rect = found.getBoundingClientRect();
            return {
                x: rect.left + rect.width / 2 + window.pageXOffset,
                y: rect.top + rect.height / 2 + window.pageYOffset,
                text: found.innerText.trim() || found.textContent.trim()
            };
        })(%s)`, jsonEncode(value))

	var option *customOption
	if err := e.backend.Evaluate(ctx, script, &option); err != nil {
		return schemas.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Error selecting option from dropdown: %v", err),
		}
	}
	if option == nil {
		return schemas.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Could not find option '%s' in the opened dropdown: %s", value, rec.Text),
		}
	}

	e.cursor.MoveTo(ctx, option.X, option.Y)
	if err := e.backend.ClickAt(ctx, option.X, option.Y); err != nil {
		return schemas.ActionResult{
			Success: false,
			Message: fmt.Sprintf("Error selecting option from dropdown: %v", err),
		}
	}

	return schemas.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Clicked on option '%s' in dropdown: %s", option.Text, rec.Text),
	}
}

// jsonEncode safely embeds a value into generated JavaScript.
func jsonEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
