// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the browser process lifecycle and session creation via
// chromedp. The underlying Chrome instance is launched lazily on the first
// session request.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup // ensures all sessions are closed before the allocator is torn down

	initOnce sync.Once
	initErr  error
}

// NewManager creates a browser manager. Chrome is not launched until the
// first session is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	m.logger.Info("Browser manager created (initialization deferred).")
	return m
}

// initialize builds the chromedp allocator context. When a CDP endpoint is
// configured we attach to the running browser instead of launching one.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		// The allocator must outlive any single caller's context; it is torn
		// down explicitly in Shutdown.
		base := Detach(ctx)

		bcfg := m.cfg.Browser()
		if bcfg.CDPEndpoint != "" {
			m.logger.Info("Attaching to remote browser.", zap.String("endpoint", bcfg.CDPEndpoint))
			m.allocCtx, m.allocCancel = chromedp.NewRemoteAllocator(base, bcfg.CDPEndpoint)
			return
		}

		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts,
			chromedp.Flag("headless", bcfg.Headless),
			chromedp.WindowSize(bcfg.ViewportWidth, bcfg.ViewportHeight),
			// Stability flags for containerized environments.
			chromedp.Flag("disable-gpu", true),
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if bcfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(bcfg.ExecPath))
		}
		for _, arg := range bcfg.Args {
			opts = append(opts, chromedp.Flag(trimFlag(arg), true))
		}

		m.logger.Info("Launching browser.",
			zap.Bool("headless", bcfg.Headless),
			zap.Int("viewport_width", bcfg.ViewportWidth),
			zap.Int("viewport_height", bcfg.ViewportHeight))
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(base, opts...)
	})
	return m.initErr
}

// trimFlag strips a leading "--" so user-provided args can be passed either
// way.
func trimFlag(arg string) string {
	for len(arg) > 0 && arg[0] == '-' {
		arg = arg[1:]
	}
	return arg
}

// NewSession creates an isolated browser tab and returns its session. The
// session's lifetime is bound to the manager, not to ctx.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	session, err := newSession(m.allocCtx, m.cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, session.ID())
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}

	if err := session.start(ctx); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		session.Close(cleanupCtx)
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown closes all sessions and tears down the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	if m.allocCtx == nil {
		m.logger.Info("Manager never initialized, nothing to shut down.")
		return nil
	}

	m.mu.RLock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.mu.RUnlock()

	g, closeCtx := errgroup.WithContext(ctx)
	for _, s := range sessionsToClose {
		g.Go(func() error {
			if err := s.Close(closeCtx); err != nil {
				m.logger.Warn("Error closing session during shutdown.",
					zap.String("session_id", s.ID()), zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()

	// Wait for onClose callbacks to drain the registry, bounded by ctx.
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Grace period elapsed waiting for sessions to close.")
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
