// internal/page/helpers_test.go
package page

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// fakeBackend is a scriptable schemas.BrowserBackend for tests.
type fakeBackend struct {
	// evalFn handles Evaluate calls; nil means every evaluation succeeds with
	// the zero value.
	evalFn func(script string, out any) error

	navigations        []string
	backCalls          int
	currentURL         string
	evaluations        []string
	clickAtCalls       [][2]float64
	clickAtErr         error
	clickSelectorCalls []string
	clickSelectorErr   error
	typed              []string
	typeErr            error
	pressed            []string
}

var _ schemas.BrowserBackend = (*fakeBackend)(nil)

func (f *fakeBackend) Navigate(_ context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeBackend) Back(context.Context) error {
	f.backCalls++
	return nil
}

func (f *fakeBackend) CurrentURL(context.Context) (string, error) {
	return f.currentURL, nil
}

func (f *fakeBackend) Evaluate(_ context.Context, script string, out any) error {
	f.evaluations = append(f.evaluations, script)
	if f.evalFn != nil {
		return f.evalFn(script, out)
	}
	return nil
}

func (f *fakeBackend) ClickAt(_ context.Context, x, y float64) error {
	f.clickAtCalls = append(f.clickAtCalls, [2]float64{x, y})
	return f.clickAtErr
}

func (f *fakeBackend) ClickSelector(_ context.Context, selector string, _ time.Duration) error {
	f.clickSelectorCalls = append(f.clickSelectorCalls, selector)
	return f.clickSelectorErr
}

func (f *fakeBackend) TypeText(_ context.Context, text string) error {
	if f.typeErr != nil {
		return f.typeErr
	}
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeBackend) PressKey(_ context.Context, key string, _ schemas.KeyModifier) error {
	f.pressed = append(f.pressed, key)
	return nil
}

// snapshotEvals counts how many Evaluate calls ran the snapshot program.
func (f *fakeBackend) snapshotEvals() int {
	n := 0
	for _, s := range f.evaluations {
		if strings.Contains(s, "extractContent") {
			n++
		}
	}
	return n
}

// writeResult marshals v through JSON into out, mimicking how the real
// backend decodes evaluation results.
func writeResult(out, v any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
