// internal/page/scroll.go
package page

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// edgeTolerance absorbs fractional scroll positions when testing whether the
// viewport sits at a page boundary.
const edgeTolerance = 10

// scrollMetrics is the page geometry consulted before every scroll.
type scrollMetrics struct {
	CurrentY       float64 `json:"currentY"`
	MaxY           float64 `json:"maxY"`
	ViewportHeight float64 `json:"viewportHeight"`
}

const scrollMetricsScript = `
(() => {
    const documentHeight = Math.max(
        document.body.scrollHeight,
        document.body.offsetHeight,
        document.documentElement.clientHeight,
        document.documentElement.scrollHeight,
        document.documentElement.offsetHeight
    );
    return {
        currentY: window.pageYOffset || document.documentElement.scrollTop,
        maxY: documentHeight - window.innerHeight,
        viewportHeight: window.innerHeight
    };
})()
`

// Scroller moves the viewport with boundary detection, reporting whether an
// edge was reached so callers (and the model) can stop probing a direction
// that has nothing left.
type Scroller struct {
	backend schemas.BrowserBackend
	logger  *zap.Logger
}

// NewScroller creates a scroller for the backend.
func NewScroller(backend schemas.BrowserBackend, logger *zap.Logger) *Scroller {
	return &Scroller{
		backend: backend,
		logger:  logger.Named("scroller"),
	}
}

// Scroll moves the viewport in the given direction: "down" or "up" by one
// viewport height, "top" or "bottom" to the page edge. An unknown direction
// defaults to down. The returned string describes the movement and any
// boundary reached.
func (s *Scroller) Scroll(ctx context.Context, direction string) string {
	direction = strings.ToLower(strings.Trim(strings.TrimSpace(direction), `'"`))

	var m scrollMetrics
	if err := s.backend.Evaluate(ctx, scrollMetricsScript, &m); err != nil {
		s.logger.Warn("Failed to read scroll metrics, using blind scroll.", zap.Error(err))
		return s.blindScroll(ctx, direction, err)
	}

	switch direction {
	case "up":
		if m.CurrentY <= edgeTolerance {
			return "Already at the top of the page - cannot scroll up further"
		}
		amount := min(m.ViewportHeight, m.CurrentY)
		if err := s.scrollBy(ctx, -amount); err != nil {
			return fmt.Sprintf("Error scrolling: %v", err)
		}
		if pos, err := s.position(ctx); err == nil && pos <= edgeTolerance {
			return "Scrolled up and reached the top of the page"
		}
		return fmt.Sprintf("Scrolled up %.0fpx - showing previous content", amount)

	case "top":
		if m.CurrentY <= edgeTolerance {
			return "Already at the top of the page"
		}
		if err := s.backend.Evaluate(ctx, "window.scrollTo(0, 0)", nil); err != nil {
			return fmt.Sprintf("Error scrolling: %v", err)
		}
		return "Scrolled to top of the page"

	case "bottom":
		if m.CurrentY >= m.MaxY-edgeTolerance {
			return "Already at the bottom of the page"
		}
		if err := s.backend.Evaluate(ctx, "window.scrollTo(0, document.body.scrollHeight)", nil); err != nil {
			return fmt.Sprintf("Error scrolling: %v", err)
		}
		return "Scrolled to bottom of the page"

	case "down":
		return s.scrollDown(ctx, m, "")

	default:
		return s.scrollDown(ctx, m, direction)
	}
}

// ScrollPageDown performs one quiet page-down used by the resolver's rescan
// tier; boundary status is irrelevant there.
func (s *Scroller) ScrollPageDown(ctx context.Context) {
	if err := s.backend.Evaluate(ctx, "window.scrollBy(0, window.innerHeight)", nil); err != nil {
		s.logger.Debug("Rescan scroll failed.", zap.Error(err))
	}
}

func (s *Scroller) scrollDown(ctx context.Context, m scrollMetrics, invalidDirection string) string {
	if m.CurrentY >= m.MaxY-edgeTolerance {
		if invalidDirection != "" {
			return fmt.Sprintf("Invalid direction '%s' - already at bottom, cannot scroll down", invalidDirection)
		}
		return "Already at the bottom of the page - cannot scroll down further"
	}

	amount := min(m.ViewportHeight, m.MaxY-m.CurrentY)
	if err := s.scrollBy(ctx, amount); err != nil {
		return fmt.Sprintf("Error scrolling: %v", err)
	}

	if invalidDirection != "" {
		return fmt.Sprintf("Invalid direction '%s', defaulted to scrolling down %.0fpx", invalidDirection, amount)
	}
	if pos, err := s.position(ctx); err == nil && pos >= m.MaxY-edgeTolerance {
		return "Scrolled down and reached the bottom of the page"
	}
	return fmt.Sprintf("Scrolled down %.0fpx - showing new content", amount)
}

// blindScroll is the fallback when page metrics are unavailable.
func (s *Scroller) blindScroll(ctx context.Context, direction string, cause error) string {
	var script, msg string
	switch direction {
	case "top":
		script, msg = "window.scrollTo(0, 0)", "Scrolled to top (fallback method)"
	case "bottom":
		script, msg = "window.scrollTo(0, document.body.scrollHeight)", "Scrolled to bottom (fallback method)"
	case "up":
		script, msg = "window.scrollBy(0, -window.innerHeight)", "Scrolled up one viewport (fallback method)"
	default:
		script, msg = "window.scrollBy(0, window.innerHeight)", fmt.Sprintf("Scrolled down one viewport (fallback method) for direction: %s", direction)
	}
	if err := s.backend.Evaluate(ctx, script, nil); err != nil {
		return fmt.Sprintf("Error scrolling: %v - fallback also failed: %v", cause, err)
	}
	return msg
}

func (s *Scroller) scrollBy(ctx context.Context, dy float64) error {
	return s.backend.Evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %.0f)", dy), nil)
}

func (s *Scroller) position(ctx context.Context) (float64, error) {
	var y float64
	err := s.backend.Evaluate(ctx, "window.pageYOffset || document.documentElement.scrollTop", &y)
	return y, err
}
