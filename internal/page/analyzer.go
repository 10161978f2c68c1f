// internal/page/analyzer.go
package page

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// snapshotResult is the shape returned by snapshotScript.
type snapshotResult struct {
	Content  []string                `json:"content"`
	Elements []schemas.ElementRecord `json:"elements"`
}

// Analyzer produces page snapshots. Each pass replaces the state's live
// snapshot; there is no snapshot history.
type Analyzer struct {
	state  *State
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer bound to the given page state.
func NewAnalyzer(state *State, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		state:  state,
		logger: logger.Named("analyzer"),
	}
}

// Analyze runs the snapshot program against the current page, replaces the
// cached snapshot, and returns the formatted content listing. A backend
// evaluation failure yields an empty snapshot and the error; it is never
// fatal to callers, who surface it as a diagnostic string.
func (a *Analyzer) Analyze(ctx context.Context) (string, error) {
	a.logger.Debug("Analyzing page content.")

	var result snapshotResult
	if err := a.state.Backend().Evaluate(ctx, snapshotScript, &result); err != nil {
		a.state.SetSnapshot(nil)
		a.logger.Warn("Page analysis failed.", zap.Error(err))
		return "", err
	}

	a.state.SetSnapshot(result.Elements)
	a.logger.Debug("Snapshot replaced.", zap.Int("elements", len(result.Elements)))

	return formatContent(result.Content), nil
}

// formatContent groups the raw content stream into readable lines: every
// indexed element starts a new line, while short adjacent text fragments are
// packed together.
func formatContent(items []string) string {
	var result []string
	var currentLine string

	for _, item := range items {
		// Drop entries whose display text is exactly the classified kind.
		if strings.HasPrefix(item, "[") {
			parts := strings.SplitN(item, "]", 4)
			if len(parts) >= 4 {
				elementType := strings.TrimPrefix(parts[1], "[")
				displayText := parts[3]
				if strings.TrimSpace(displayText) == elementType {
					continue
				}
			}
		}

		switch {
		case strings.HasPrefix(item, "[") || currentLine == "":
			if currentLine != "" {
				result = append(result, currentLine)
			}
			currentLine = item
		case len(item) < 30 && len(currentLine)+len(item)+1 < 80:
			currentLine += " " + item
		default:
			result = append(result, currentLine)
			currentLine = item
		}
	}
	if currentLine != "" {
		result = append(result, currentLine)
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}
