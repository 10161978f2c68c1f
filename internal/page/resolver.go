// internal/page/resolver.go
package page

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// Target is the normalized form of a caller-supplied target description.
// Exactly one shape applies: an authoritative snapshot index, structured
// type/text attributes, or free text (carried in Text with Structured false).
type Target struct {
	HasIndex bool
	Index    int
	Type     string
	Text     string

	// Structured records whether the caller supplied a structured spec, which
	// only affects how a not-found failure is described.
	Structured bool
	raw        string
}

// ParseTarget normalizes the loosely-typed descriptions the model produces: a
// JSON object with id/type/text fields, a bare (possibly quoted) element id,
// or a natural-language phrase. All resolver input passes through here before
// matching.
func ParseTarget(input any) Target {
	switch v := input.(type) {
	case map[string]any:
		return targetFromMap(v, fmt.Sprintf("%v", v))
	case float64:
		return Target{HasIndex: true, Index: int(v), Structured: true, raw: fmt.Sprintf("%v", v)}
	case int:
		return Target{HasIndex: true, Index: v, Structured: true, raw: strconv.Itoa(v)}
	case string:
		return parseTargetString(v)
	default:
		return Target{raw: fmt.Sprintf("%v", input)}
	}
}

func parseTargetString(s string) Target {
	raw := s
	s = strings.Trim(strings.TrimSpace(s), "`'\"")

	if idx, err := strconv.Atoi(s); err == nil {
		return Target{HasIndex: true, Index: idx, Structured: true, raw: raw}
	}

	if strings.HasPrefix(s, "{") {
		var m map[string]any
		if err := json.UnmarshalFromString(s, &m); err == nil {
			return targetFromMap(m, raw)
		}
		// Models frequently emit single-quoted pseudo-JSON.
		if err := json.UnmarshalFromString(strings.ReplaceAll(s, "'", `"`), &m); err == nil {
			return targetFromMap(m, raw)
		}
	}

	return Target{Text: s, raw: raw}
}

func targetFromMap(m map[string]any, raw string) Target {
	t := Target{Structured: true, raw: raw}

	switch id := m["id"].(type) {
	case string:
		if idx, err := strconv.Atoi(strings.TrimSpace(id)); err == nil {
			t.HasIndex = true
			t.Index = idx
		}
	case float64:
		t.HasIndex = true
		t.Index = int(id)
	}

	if typ, ok := m["type"].(string); ok {
		t.Type = strings.ToLower(strings.TrimSpace(typ))
	}
	if text, ok := m["text"].(string); ok {
		t.Text = strings.TrimSpace(text)
	}
	return t
}

// NotFoundError reports a target that matched nothing after every tier,
// enumerating the criteria tried.
type NotFoundError struct {
	Target Target
}

func (e *NotFoundError) Error() string {
	if e.Target.Structured {
		var criteria []string
		if e.Target.HasIndex {
			criteria = append(criteria, fmt.Sprintf("id=%d", e.Target.Index))
		}
		if e.Target.Type != "" {
			criteria = append(criteria, "type="+e.Target.Type)
		}
		if e.Target.Text != "" {
			criteria = append(criteria, "text="+e.Target.Text)
		}
		if len(criteria) == 0 {
			criteria = append(criteria, "no criteria")
		}
		return fmt.Sprintf("no elements matching %s found, even after scrolling", strings.Join(criteria, ", "))
	}
	return fmt.Sprintf("no elements matching '%s' found, even after scrolling", e.Target.raw)
}

// Resolver maps targets onto the live snapshot. Three tiers, each attempted
// only when the previous yields nothing: direct index lookup, attribute
// search, and a single scroll-and-rescan pass with widened matching rules.
type Resolver struct {
	state    *State
	analyzer *Analyzer
	scroller *Scroller
	logger   *zap.Logger
}

// NewResolver creates a resolver over the given state.
func NewResolver(state *State, analyzer *Analyzer, scroller *Scroller, logger *zap.Logger) *Resolver {
	return &Resolver{
		state:    state,
		analyzer: analyzer,
		scroller: scroller,
		logger:   logger.Named("resolver"),
	}
}

// Resolve returns the single best-matching snapshot record for the target, or
// a *NotFoundError. A valid index short-circuits all other criteria; an
// out-of-range index falls through to attribute search rather than failing.
func (r *Resolver) Resolve(ctx context.Context, target Target) (schemas.ElementRecord, error) {
	// Tier 1: authoritative index lookup.
	if target.HasIndex {
		if rec, ok := r.state.Element(target.Index); ok {
			r.logger.Debug("Resolved by direct index.", zap.Int("id", target.Index))
			return rec, nil
		}
		r.logger.Debug("Index out of range, falling through to attribute search.", zap.Int("id", target.Index))
	}

	// Tier 2: attribute search over the current snapshot, visible-and-in-
	// viewport matches preferred.
	var fallback *schemas.ElementRecord
	for _, rec := range r.state.Snapshot() {
		if !matches(rec, target, false) {
			continue
		}
		if rec.Visible && rec.InViewport {
			r.logger.Debug("Resolved by attribute search.", zap.Int("id", rec.ID))
			return rec, nil
		}
		if fallback == nil {
			f := rec
			fallback = &f
		}
	}
	if fallback != nil {
		r.logger.Debug("Resolved by attribute search (off-viewport match).", zap.Int("id", fallback.ID))
		return *fallback, nil
	}

	// Tier 3: exactly one scroll-and-rescan cycle with widened synonym and
	// partial-attribute rules. Analysis failures leave an empty snapshot,
	// which simply yields no matches.
	r.logger.Debug("No match in snapshot, scrolling and rescanning.")
	r.scroller.ScrollPageDown(ctx)
	if _, err := r.analyzer.Analyze(ctx); err != nil {
		r.logger.Debug("Rescan analysis failed.", zap.Error(err))
	}

	for _, rec := range r.state.Snapshot() {
		if matches(rec, target, true) {
			r.logger.Debug("Resolved after rescan.", zap.Int("id", rec.ID))
			return rec, nil
		}
	}

	return schemas.ElementRecord{}, &NotFoundError{Target: target}
}

// matches applies the tier-2 attribute filter; extended widens it with the
// rescan tier's extra synonym families and partial attribute matching.
func matches(rec schemas.ElementRecord, target Target, extended bool) bool {
	return typeMatches(rec, target.Type, extended) && textMatches(rec, target.Text, extended)
}

func typeMatches(rec schemas.ElementRecord, targetType string, extended bool) bool {
	if targetType == "" {
		return true
	}

	elemType := strings.ToLower(rec.Type)
	elemTag := strings.ToLower(rec.Tag)
	if targetType == elemType || targetType == elemTag {
		return true
	}

	switch targetType {
	case schemas.TypeButton:
		if elemTag == "button" || elemType == schemas.TypeButton ||
			strings.Contains(rec.Attributes.Class, "btn") {
			return true
		}
		if extended && (elemType == "submit" || rec.Attributes.Role == "button") {
			return true
		}
	case schemas.TypeDropdown:
		if elemTag == "select" || elemType == schemas.TypeDropdown ||
			rec.Attributes.Role == "listbox" {
			return true
		}
	case schemas.TypeInput:
		if extended && (elemTag == "input" || elemType == schemas.TypeInput ||
			elemType == schemas.TypeTextarea) {
			return true
		}
	case schemas.TypeLink:
		if extended && (elemTag == "a" || elemType == schemas.TypeLink ||
			rec.Attributes.Role == "link") {
			return true
		}
	}
	return false
}

func textMatches(rec schemas.ElementRecord, targetText string, extended bool) bool {
	if targetText == "" {
		return true
	}

	needle := strings.ToLower(targetText)
	if strings.Contains(strings.ToLower(rec.Text), needle) {
		return true
	}

	attrFields := []string{
		rec.Attributes.Value,
		rec.Attributes.Placeholder,
		rec.Attributes.AriaLabel,
		rec.Attributes.Title,
	}
	for _, field := range attrFields {
		if field == "" {
			continue
		}
		if strings.EqualFold(field, targetText) {
			return true
		}
		if extended && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
