// internal/page/state.go

// Package page turns a live, mutating DOM into an addressable snapshot and
// executes actions against it: the analyzer indexes observable elements, the
// resolver maps loose target descriptions onto snapshot records, and the
// executor performs click/type/select through ordered fallback strategies.
package page

import (
	"sync"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// State owns the single live snapshot for one browser session together with
// the backend handle it was taken from. A new snapshot unconditionally
// replaces the old one; element ids are only meaningful against the snapshot
// that produced them.
type State struct {
	backend schemas.BrowserBackend

	mu       sync.RWMutex
	snapshot []schemas.ElementRecord
}

// NewState creates page state bound to a backend.
func NewState(backend schemas.BrowserBackend) *State {
	return &State{backend: backend}
}

// Backend returns the browser backend this state drives.
func (s *State) Backend() schemas.BrowserBackend {
	return s.backend
}

// Snapshot returns the current element snapshot. The returned slice must not
// be mutated.
func (s *State) Snapshot() []schemas.ElementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetSnapshot replaces the live snapshot.
func (s *State) SetSnapshot(elements []schemas.ElementRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = elements
}

// Element returns the record with the given snapshot id, if it exists.
func (s *State) Element(id int) (schemas.ElementRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.snapshot) {
		return schemas.ElementRecord{}, false
	}
	return s.snapshot[id], true
}
