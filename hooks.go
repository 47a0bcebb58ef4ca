package mapimport

import (
	"sync"

	"github.com/mapaction/mapimport/pkg/logging"
)

// Hook function types for import events
type (
	// CreatedHook is called when an import creates a record
	CreatedHook func(result *Result)

	// UpdatedHook is called when an import corrects an existing record
	UpdatedHook func(result *Result)

	// RejectedHook is called when an archive is refused for bad user data
	RejectedHook func(archive string, err error)
)

// hooks manages event callbacks for imports
type hooks struct {
	mu         sync.RWMutex
	onCreated  []CreatedHook
	onUpdated  []UpdatedHook
	onRejected []RejectedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnCreated registers a callback for when a record is created
func (m *importer) OnCreated(fn CreatedHook) {
	m.hooks.mu.Lock()
	defer m.hooks.mu.Unlock()
	m.hooks.onCreated = append(m.hooks.onCreated, fn)
}

// OnUpdated registers a callback for when a record is corrected
func (m *importer) OnUpdated(fn UpdatedHook) {
	m.hooks.mu.Lock()
	defer m.hooks.mu.Unlock()
	m.hooks.onUpdated = append(m.hooks.onUpdated, fn)
}

// OnRejected registers a callback for when a package is refused
func (m *importer) OnRejected(fn RejectedHook) {
	m.hooks.mu.Lock()
	defer m.hooks.mu.Unlock()
	m.hooks.onRejected = append(m.hooks.onRejected, fn)
}

// triggerCreated runs the created hooks, isolating panics
func (h *hooks) triggerCreated(result *Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onCreated {
		safeCall("created", func() { hook(result) })
	}
}

// triggerUpdated runs the updated hooks, isolating panics
func (h *hooks) triggerUpdated(result *Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onUpdated {
		safeCall("updated", func() { hook(result) })
	}
}

// triggerRejected runs the rejected hooks, isolating panics
func (h *hooks) triggerRejected(archive string, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onRejected {
		safeCall("rejected", func() { hook(archive, err) })
	}
}

func safeCall(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("event", event).Msg("Import hook panicked")
		}
	}()
	fn()
}
