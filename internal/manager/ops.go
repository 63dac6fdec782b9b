package manager

import (
	"context"
)

// Switch replaces the resident model with modelID. The current instance is
// always released before the new one is loaded, so the runtime passes
// through unloaded. Unknown ids are rejected before anything is released.
// On success modelID becomes the desired model.
func (m *Manager) Switch(ctx context.Context, modelID string) error {
	if _, ok := m.getModelByID(modelID); !ok {
		return ErrModelNotFound(modelID)
	}
	if err := m.acquireOwner(ctx); err != nil {
		return err
	}
	defer m.releaseOwner()

	m.mu.RLock()
	same := m.state == StateReady && m.cur != nil && m.cur.ID == modelID
	m.mu.RUnlock()
	if same {
		m.SetDesired(modelID)
		return nil
	}
	if err := m.switchLocked(ctx, modelID); err != nil {
		return err
	}
	m.SetDesired(modelID)
	return nil
}

func (m *Manager) switchLocked(ctx context.Context, modelID string) error {
	op := m.nextOpID()
	from := ""
	m.mu.Lock()
	if m.cur != nil {
		from = m.cur.ID
	}
	if m.state == StateReady {
		m.state = StateSwitching
	}
	m.switching = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.switching = false
		m.mu.Unlock()
	}()
	m.log.Info().Str("event", "switch_start").Str("op", op).Str("from", from).Str("to", modelID).Msg("switching model")
	m.publish("switch_start", modelID, map[string]any{"op": op, "from": from})

	m.releaseLocked()
	m.switchesTotal.Add(1)
	switchesCounter.Inc()

	if err := m.loadLocked(ctx, modelID); err != nil {
		m.publish("switch_failed", modelID, map[string]any{"op": op, "error": err.Error()})
		return err
	}
	m.publish("switch_done", modelID, map[string]any{"op": op, "from": from})
	return nil
}

// SetDesired records the model the next lazy load should use.
func (m *Manager) SetDesired(modelID string) {
	m.mu.Lock()
	m.desired = modelID
	m.mu.Unlock()
}

// Desired returns the last switch target, or the default model.
func (m *Manager) Desired() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.desired != "" {
		return m.desired
	}
	return m.defaultModel
}

// EnsureDesired loads the desired model when nothing is resident. A ready
// runtime is left alone even if it is serving a fallback model or was made
// ready by a switch that finished while this call waited.
func (m *Manager) EnsureDesired(ctx context.Context) error {
	if m.Ready() {
		return nil
	}
	if err := m.acquireOwner(ctx); err != nil {
		return err
	}
	defer m.releaseOwner()

	m.mu.RLock()
	ready := m.state == StateReady && m.inst != nil
	m.mu.RUnlock()
	if ready {
		return nil
	}
	modelID := m.Desired()
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	return m.loadLocked(ctx, modelID)
}
