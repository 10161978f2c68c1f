// internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

// Session is a single browser tab driven over CDP. It implements
// schemas.BrowserBackend.
type Session struct {
	id     string
	ctx    context.Context // tab context; carries the CDP target
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	onClose   func()
	closeOnce sync.Once
}

var _ schemas.BrowserBackend = (*Session)(nil)

// newSession builds the tab context from the allocator context. The tab is
// not created until start runs the first action.
func newSession(allocCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.With(zap.String("session_id", sessionID))

	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Warn(fmt.Sprintf(format, args...))
		}),
	)

	return &Session{
		id:     sessionID,
		ctx:    ctx,
		cancel: cancel,
		logger: log,
		cfg:    cfg,
	}, nil
}

// start forces tab allocation so startup failures surface here rather than on
// the first navigation.
func (s *Session) start(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := s.runActions(startCtx); err != nil {
		return fmt.Errorf("browser did not start: %w", err)
	}
	s.logger.Info("Session started.")
	return nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Close tears down the tab.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing session.")
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// runActions executes chromedp actions against the tab, respecting both the
// session lifecycle and the caller's deadline.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		// Prioritize the caller's context error as the cause.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.ctx.Err() != nil {
			return fmt.Errorf("session closed: %w", s.ctx.Err())
		}
	}
	return err
}

// -- schemas.BrowserBackend --

// Navigate loads the URL and waits for the document body to become ready,
// bounded by the configured navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.Browser().NavigationTimeout
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("Navigating.", zap.String("url", url))
	err := s.runActions(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to '%s' failed: %w", url, err)
	}
	return nil
}

// Back navigates one entry back in session history.
func (s *Session) Back(ctx context.Context) error {
	timeout := s.cfg.Browser().NavigationTimeout
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.runActions(navCtx, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("history navigation failed: %w", err)
	}
	return nil
}

// CurrentURL reports the tab's current location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var url string
	if err := s.runActions(opCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

// Evaluate runs script in page context and unmarshals the completion value
// into out. A nil out discards the result.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	opCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	sink := out
	if sink == nil {
		var discard json.RawMessage
		sink = &discard
	}

	err := s.runActions(opCtx,
		chromedp.Evaluate(script, sink, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// ClickAt dispatches a physical pointer click at page coordinates: a move,
// then a press/release pair.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	move := input.DispatchMouseEvent(input.MouseMoved, x, y)
	press := input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).
		WithClickCount(1)
	release := input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).
		WithClickCount(1)

	if err := s.runActions(opCtx, move, press, release); err != nil {
		return fmt.Errorf("pointer click at (%.0f, %.0f) failed: %w", x, y, err)
	}
	return nil
}

// ClickSelector scrolls the first match into view and clicks it.
func (s *Session) ClickSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.Browser().ActionTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.runActions(opCtx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click on '%s' failed: %w", selector, err)
	}
	return nil
}

// TypeText emits keystrokes into whatever element currently has focus.
func (s *Session) TypeText(ctx context.Context, text string) error {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.runActions(opCtx, chromedp.KeyEvent(text)); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	return nil
}

// PressKey dispatches a structured key press (key name plus modifiers) as a
// down/up pair.
func (s *Session) PressKey(ctx context.Context, key string, modifiers schemas.KeyModifier) error {
	var cdpModifiers input.Modifier
	if modifiers&schemas.ModAlt != 0 {
		cdpModifiers |= input.ModifierAlt
	}
	if modifiers&schemas.ModCtrl != 0 {
		cdpModifiers |= input.ModifierCtrl
	}
	if modifiers&schemas.ModMeta != 0 {
		cdpModifiers |= input.ModifierMeta
	}
	if modifiers&schemas.ModShift != 0 {
		cdpModifiers |= input.ModifierShift
	}

	keyDown := input.DispatchKeyEvent(input.KeyDown).
		WithModifiers(cdpModifiers).
		WithKey(key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(cdpModifiers).
		WithKey(key)

	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.runActions(opCtx, keyDown, keyUp); err != nil {
		return fmt.Errorf("key press '%s' failed: %w", key, err)
	}
	return nil
}
