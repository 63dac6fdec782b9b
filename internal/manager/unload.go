package manager

import (
	"context"
	"time"
)

// Unload releases the resident model, waiting for the in-flight generation to
// finish first. Unloading an already unloaded runtime is a no-op.
func (m *Manager) Unload(ctx context.Context) error {
	if err := m.acquireOwner(ctx); err != nil {
		return err
	}
	defer m.releaseOwner()
	m.releaseLocked()
	return nil
}

// releaseLocked closes the resident session and then moves to unloaded, so
// the state never reads unloaded while an instance is still resident. The
// caller holds the owner token, so no generation is running.
func (m *Manager) releaseLocked() {
	m.mu.Lock()
	inst := m.inst
	m.inst = nil
	m.mu.Unlock()
	if inst == nil {
		m.markUnloaded()
		return
	}
	id := inst.model.ID
	m.publish("unload_start", id, nil)
	start := time.Now()
	if err := inst.session.Close(); err != nil {
		m.log.Warn().Err(err).Str("event", "unload_close_error").Str("model", id).Msg("session close failed")
	}
	residentGauge.Set(float64(m.resident.Add(-1)))
	m.markUnloaded()
	m.log.Info().Str("event", "unload_done").Str("model", id).Dur("dur", time.Since(start)).Msg("model released")
	m.publish("unload_done", id, nil)
}

func (m *Manager) markUnloaded() {
	m.mu.Lock()
	m.cur = nil
	m.state = StateUnloaded
	m.mu.Unlock()
}

// Close releases the resident model and any adapter-owned processes.
func (m *Manager) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.maxWait)
	defer cancel()
	err := m.Unload(ctx)
	if sa, ok := m.adapter.(interface{ StopAll() }); ok {
		sa.StopAll()
	}
	return err
}
