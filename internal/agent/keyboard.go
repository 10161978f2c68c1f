// internal/agent/keyboard.go
package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// keyChord is a resolved physical key press: the DOM key value plus any held
// modifiers.
type keyChord struct {
	Key  string
	Mods schemas.KeyModifier
}

// specialKeys maps the normalized command vocabulary to key chords. Plain
// text typing is deliberately excluded; that is the type tool's job.
var specialKeys = map[string]keyChord{
	// Basic navigation keys
	"enter":     {Key: "Enter"},
	"tab":       {Key: "Tab"},
	"shift+tab": {Key: "Tab", Mods: schemas.ModShift},
	"backspace": {Key: "Backspace"},
	"escape":    {Key: "Escape"},
	"esc":       {Key: "Escape"},
	"delete":    {Key: "Delete"},
	"del":       {Key: "Delete"},
	"space":     {Key: " "},

	// Arrow keys
	"up":    {Key: "ArrowUp"},
	"down":  {Key: "ArrowDown"},
	"left":  {Key: "ArrowLeft"},
	"right": {Key: "ArrowRight"},

	// Common shortcuts
	"ctrl+a": {Key: "a", Mods: schemas.ModCtrl},
	"cmd+a":  {Key: "a", Mods: schemas.ModMeta},
	"ctrl+c": {Key: "c", Mods: schemas.ModCtrl},
	"cmd+c":  {Key: "c", Mods: schemas.ModMeta},
	"ctrl+v": {Key: "v", Mods: schemas.ModCtrl},
	"cmd+v":  {Key: "v", Mods: schemas.ModMeta},
	"ctrl+x": {Key: "x", Mods: schemas.ModCtrl},
	"cmd+x":  {Key: "x", Mods: schemas.ModMeta},
	"ctrl+z": {Key: "z", Mods: schemas.ModCtrl},
	"cmd+z":  {Key: "z", Mods: schemas.ModMeta},
	"ctrl+y": {Key: "y", Mods: schemas.ModCtrl},
	"cmd+y":  {Key: "y", Mods: schemas.ModMeta},
	"ctrl+f": {Key: "f", Mods: schemas.ModCtrl},
	"cmd+f":  {Key: "f", Mods: schemas.ModMeta},

	// Function keys
	"f1": {Key: "F1"}, "f2": {Key: "F2"}, "f3": {Key: "F3"}, "f4": {Key: "F4"},
	"f5": {Key: "F5"}, "f6": {Key: "F6"}, "f7": {Key: "F7"}, "f8": {Key: "F8"},
	"f9": {Key: "F9"}, "f10": {Key: "F10"}, "f11": {Key: "F11"}, "f12": {Key: "F12"},

	// Navigation shortcuts
	"home":     {Key: "Home"},
	"end":      {Key: "End"},
	"pageup":   {Key: "PageUp"},
	"pagedown": {Key: "PageDown"},

	// Special combinations
	"alt+tab":    {Key: "Tab", Mods: schemas.ModAlt},
	"ctrl+enter": {Key: "Enter", Mods: schemas.ModCtrl},
	"cmd+enter":  {Key: "Enter", Mods: schemas.ModMeta},
	"ctrl+home":  {Key: "Home", Mods: schemas.ModCtrl},
	"cmd+home":   {Key: "Home", Mods: schemas.ModMeta},
	"ctrl+end":   {Key: "End", Mods: schemas.ModCtrl},
	"cmd+end":    {Key: "End", Mods: schemas.ModMeta},

	// Web-specific
	"ctrl+t": {Key: "t", Mods: schemas.ModCtrl},
	"cmd+t":  {Key: "t", Mods: schemas.ModMeta},
	"ctrl+w": {Key: "w", Mods: schemas.ModCtrl},
	"cmd+w":  {Key: "w", Mods: schemas.ModMeta},
	"ctrl+r": {Key: "r", Mods: schemas.ModCtrl},
	"cmd+r":  {Key: "r", Mods: schemas.ModMeta},
}

// modifierNames resolves the hold-and-press modifier word.
var modifierNames = map[string]schemas.KeyModifier{
	"shift":   schemas.ModShift,
	"ctrl":    schemas.ModCtrl,
	"control": schemas.ModCtrl,
	"alt":     schemas.ModAlt,
	"option":  schemas.ModAlt,
	"cmd":     schemas.ModMeta,
	"meta":    schemas.ModMeta,
}

var holdPattern = regexp.MustCompile(`hold\s+(\w+),?\s+(?:press\s+)?(\w+)`)

// sequenceKeyDelay paces comma-separated key sequences so each press
// registers before the next.
const sequenceKeyDelay = 50 * time.Millisecond

// Keyboard turns special-key commands into physical key events on the
// backend.
type Keyboard struct {
	backend schemas.BrowserBackend
	logger  *zap.Logger
}

func NewKeyboard(backend schemas.BrowserBackend, logger *zap.Logger) *Keyboard {
	return &Keyboard{backend: backend, logger: logger.Named("keyboard")}
}

// Action executes a key command: a single special key ("enter", "ctrl+a"),
// a comma/semicolon-separated sequence ("tab, enter"), or a hold-and-press
// phrase ("hold shift, press tab"). Anything else is rejected.
func (k *Keyboard) Action(ctx context.Context, input string) string {
	input = strings.TrimSpace(strings.Trim(strings.TrimSpace(input), "'\""))

	if strings.ContainsAny(input, ",;") && !holdPattern.MatchString(strings.ToLower(input)) {
		keys := regexp.MustCompile(`[,;]`).Split(input, -1)
		results := make([]string, 0, len(keys))

		for _, single := range keys {
			single = strings.ToLower(strings.TrimSpace(single))
			if !k.isValidKey(single) {
				return fmt.Sprintf("Error: '%s' is not a valid special key or combination. Use type for typing text.", single)
			}
			results = append(results, k.press(ctx, single))

			select {
			case <-time.After(sequenceKeyDelay):
			case <-ctx.Done():
				return fmt.Sprintf("Error with keyboard action: %v", ctx.Err())
			}
		}
		return "Executed key sequence: " + strings.Join(results, " → ")
	}

	normalized := strings.ToLower(input)
	if !k.isValidKey(normalized) {
		return fmt.Sprintf("Error: '%s' is not a valid special key or combination. Use type for typing text.", normalized)
	}
	return k.press(ctx, normalized)
}

func (k *Keyboard) isValidKey(input string) bool {
	if _, ok := specialKeys[input]; ok {
		return true
	}
	return holdPattern.MatchString(input)
}

func (k *Keyboard) press(ctx context.Context, input string) string {
	if chord, ok := specialKeys[input]; ok {
		k.logger.Debug("Pressing special key", zap.String("key", input))
		if err := k.backend.PressKey(ctx, chord.Key, chord.Mods); err != nil {
			return fmt.Sprintf("Error with keyboard action: %v", err)
		}
		return fmt.Sprintf("Pressed %s", input)
	}

	if m := holdPattern.FindStringSubmatch(input); m != nil {
		modifier, key := m[1], m[2]

		mods, ok := modifierNames[strings.ToLower(modifier)]
		if !ok {
			return fmt.Sprintf("Unknown key action: %s", input)
		}
		chord, ok := specialKeys[strings.ToLower(key)]
		if !ok {
			chord = keyChord{Key: capitalize(key)}
		}

		k.logger.Debug("Holding modifier and pressing key",
			zap.String("modifier", modifier), zap.String("key", chord.Key))
		if err := k.backend.PressKey(ctx, chord.Key, chord.Mods|mods); err != nil {
			return fmt.Sprintf("Error with keyboard action: %v", err)
		}
		return fmt.Sprintf("Held %s and pressed %s", modifier, key)
	}

	return fmt.Sprintf("Unknown key action: %s", input)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
