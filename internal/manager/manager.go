package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ragd/pkg/types"
)

// Manager owns the runtime state. Exactly one Manager should exist per process;
// callers receive it by reference instead of through globals.
type Manager struct {
	mu           sync.RWMutex
	state        State
	switching    bool // a switch holds the owner token, including its unloaded step
	cur          *ModelInfo
	inst         *instance
	desired      string
	err          string
	attempts     []types.LoadAttempt
	registry     []types.Model
	budgetMB     int
	marginMB     int
	defaultModel string
	fallback     []string
	params       InferParams

	// owner serializes transitions and generations; queueCh bounds waiters.
	owner         chan struct{}
	queueCh       chan struct{}
	maxQueueDepth int
	maxWait       time.Duration

	adapter   InferenceAdapter
	publisher EventPublisher
	log       zerolog.Logger

	startTime      time.Time
	resident       atomic.Int32
	loadsTotal     atomic.Uint64
	switchesTotal  atomic.Uint64
	fallbacksTotal atomic.Uint64
	opSeq          atomic.Uint64
}

// Ready reports whether a model is resident and accepting generations.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.inst != nil
}

// ListModels returns a copy of the catalog.
func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// DefaultModel returns the configured default model id.
func (m *Manager) DefaultModel() string { return m.defaultModel }


// ActiveModel returns information about the resident model, if any.
func (m *Manager) ActiveModel() (ModelInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil || m.state != StateReady {
		return ModelInfo{}, false
	}
	return *m.cur, true
}

// Resident reports how many runtime sessions are currently alive.
func (m *Manager) Resident() int { return int(m.resident.Load()) }

// SetEventPublisher replaces the event sink. Nil restores the no-op publisher.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
	if ps, ok := m.adapter.(publisherSetter); ok {
		ps.setPublisher(p)
	}
}

func (m *Manager) publish(name, modelID string, fields map[string]any) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if fields == nil {
		fields = map[string]any{}
	}
	p.Publish(Event{Name: name, ModelID: modelID, Fields: fields})
}
