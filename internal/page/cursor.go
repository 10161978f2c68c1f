// internal/page/cursor.go
package page

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// cursorScript injects (or moves) a small overlay dot marking where the next
// pointer action will land. Purely visual feedback for a human watching the
// session; failures are ignored.
const cursorScript = `
((x, y) => {
    let cursor = document.getElementById('__webpilot_cursor');
    if (!cursor) {
        cursor = document.createElement('div');
        cursor.id = '__webpilot_cursor';
        cursor.style.cssText = 'position:fixed;width:14px;height:14px;border-radius:50%%;' +
            'background:rgba(220,50,50,0.75);border:2px solid #fff;z-index:2147483647;' +
            'pointer-events:none;transition:left 0.1s,top 0.1s;';
        document.body.appendChild(cursor);
    }
    cursor.style.left = (x - window.pageXOffset - 7) + 'px';
    cursor.style.top = (y - window.pageYOffset - 7) + 'px';
    return true;
})(%.0f, %.0f)
`

// Cursor renders the virtual pointer position.
type Cursor struct {
	backend schemas.BrowserBackend
	logger  *zap.Logger
}

// NewCursor creates the overlay cursor for a session.
func NewCursor(backend schemas.BrowserBackend, logger *zap.Logger) *Cursor {
	return &Cursor{
		backend: backend,
		logger:  logger.Named("cursor"),
	}
}

// MoveTo updates the overlay to the given page coordinates. Best effort: a
// failed injection never blocks the action that follows.
func (c *Cursor) MoveTo(ctx context.Context, x, y float64) {
	script := fmt.Sprintf(cursorScript, x, y)
	if err := c.backend.Evaluate(ctx, script, nil); err != nil {
		c.logger.Debug("Cursor overlay update failed.", zap.Error(err))
	}
}
