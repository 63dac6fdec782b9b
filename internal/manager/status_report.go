package manager

import (
	"time"

	"ragd/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cur *ModelInfo
	if m.cur != nil {
		c := *m.cur
		cur = &c
	}
	return Snapshot{State: m.state, CurrentModel: cur, Err: m.err}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		State:          string(m.state),
		BudgetMB:       m.budgetMB,
		MarginMB:       m.marginMB,
		LastError:      m.err,
		QueueLen:       len(m.queueCh),
		Inflight:       len(m.owner),
		MaxQueueDepth:  cap(m.queueCh),
		Resident:       int(m.resident.Load()),
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		LoadsTotal:     m.loadsTotal.Load(),
		SwitchesTotal:  m.switchesTotal.Load(),
		FallbacksTotal: m.fallbacksTotal.Load(),
	}
	resp.DesiredModel = m.desired
	if resp.DesiredModel == "" {
		resp.DesiredModel = m.defaultModel
	}
	if m.cur != nil {
		resp.ActiveModel = m.cur.ID
	}
	if m.inst != nil {
		resp.UsedMB = m.inst.estMB
	}
	if len(m.attempts) > 0 {
		resp.LastAttempts = append([]types.LoadAttempt(nil), m.attempts...)
	}
	return resp
}
