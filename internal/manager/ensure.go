package manager

import (
	"context"
	"errors"
	"time"

	"ragd/internal/common/fsutil"
	"ragd/pkg/types"
)

// EnsureLoaded makes modelID the resident model. It is a no-op when the model
// is already ready, performs a switch when another model is ready, and loads
// from unloaded otherwise. An empty id means the desired model, read once the
// owner token is held so a switch finishing meanwhile is not undone.
func (m *Manager) EnsureLoaded(ctx context.Context, modelID string) error {
	if modelID != "" && m.readyWith(modelID) {
		return nil
	}
	if err := m.acquireOwner(ctx); err != nil {
		return err
	}
	defer m.releaseOwner()
	if modelID == "" {
		if modelID = m.Desired(); modelID == "" {
			return ErrModelNotFound("(unspecified)")
		}
	}

	m.mu.RLock()
	state, cur := m.state, m.cur
	m.mu.RUnlock()
	switch {
	case state == StateReady && cur != nil && cur.ID == modelID:
		return nil
	case state == StateReady:
		return m.switchLocked(ctx, modelID)
	}
	return m.loadLocked(ctx, modelID)
}

func (m *Manager) readyWith(modelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateReady && m.cur != nil && m.cur.ID == modelID && m.inst != nil {
		m.inst.lastUsed = time.Now()
		return true
	}
	return false
}

// loadLocked walks the ordered candidate list. The caller holds the owner token
// and the runtime is unloaded.
func (m *Manager) loadLocked(ctx context.Context, modelID string) error {
	startTs := time.Now()
	requested, ok := m.getModelByID(modelID)
	if !ok {
		m.log.Warn().Str("event", "ensure_model_not_found").Str("model", modelID).Msg("unknown model")
		m.publish("ensure_model_not_found", modelID, nil)
		return ErrModelNotFound(modelID)
	}

	m.setState(StateLoading, nil, "")
	m.log.Info().Str("event", "ensure_start").Str("model", modelID).Msg("loading model")
	m.publish("ensure_start", modelID, nil)

	// Deterministic configuration problems on the requested model are
	// reported as-is; only start failures move on to the fallback list.
	if err := m.precheck(requested); err != nil {
		m.failLoad(modelID, err, []types.LoadAttempt{attemptOf(modelID, err)})
		return err
	}

	var attempts []types.LoadAttempt
	for i, id := range m.candidates(modelID) {
		mdl, ok := m.getModelByID(id)
		if !ok {
			attempts = append(attempts, types.LoadAttempt{ModelID: id, Reason: ReasonNotFound})
			continue
		}
		if i > 0 {
			if err := m.precheck(mdl); err != nil {
				attempts = append(attempts, attemptOf(id, err))
				continue
			}
			m.log.Warn().Str("event", "ensure_fallback").Str("model", id).Str("requested", modelID).Msg("trying fallback model")
			m.publish("ensure_fallback", id, map[string]any{"requested": modelID})
		}
		sess, err := m.adapter.Start(ctx, mdl)
		if err != nil {
			attempts = append(attempts, attemptOf(id, err))
			loadsCounter.WithLabelValues(id, "error").Inc()
			m.log.Error().Err(err).Str("event", "ensure_start_error").Str("model", id).Msg("model start failed")
			m.publish("ensure_start_error", id, map[string]any{"error": err.Error()})
			if ctx.Err() != nil {
				m.failLoad(modelID, ctx.Err(), attempts)
				return ctx.Err()
			}
			continue
		}
		m.commitReady(mdl, sess)
		m.loadsTotal.Add(1)
		loadsCounter.WithLabelValues(id, "ok").Inc()
		if i > 0 {
			m.fallbacksTotal.Add(1)
			fallbacksCounter.Inc()
		}
		m.mu.Lock()
		m.attempts = attempts
		m.mu.Unlock()
		dur := time.Since(startTs)
		m.log.Info().Str("event", "ensure_ready").Str("model", id).Dur("dur", dur).Msg("model ready")
		m.publish("ensure_ready", id, map[string]any{"dur_ms": int(dur / time.Millisecond)})
		return nil
	}
	err := &RuntimeUnavailableError{Attempts: attempts}
	m.failLoad(modelID, err, attempts)
	return err
}

// precheck validates the file and the memory budget before any runtime work.
func (m *Manager) precheck(mdl types.Model) error {
	if ra, ok := m.adapter.(RemoteAdapter); !ok || !ra.Remote() {
		if !fsutil.IsFile(mdl.Path) {
			return &ModelFileMissingError{ModelID: mdl.ID, Path: mdl.Path}
		}
	}
	return m.checkBudget(mdl)
}

func attemptOf(id string, err error) types.LoadAttempt {
	reason := ReasonStartFailed
	switch {
	case errors.Is(err, ErrModelFileMissing):
		reason = ReasonFileMissing
	case errors.Is(err, ErrInsufficientResources):
		reason = ReasonInsufficient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = ReasonContextClosed
	}
	return types.LoadAttempt{ModelID: id, Reason: reason, Error: err.Error()}
}

func (m *Manager) commitReady(mdl types.Model, sess InferSession) {
	now := time.Now()
	m.mu.Lock()
	m.inst = &instance{model: mdl, session: sess, estMB: estimateMB(mdl), loadedAt: now, lastUsed: now}
	m.cur = modelInfoOf(mdl)
	m.state = StateReady
	m.err = ""
	m.mu.Unlock()
	residentGauge.Set(float64(m.resident.Add(1)))
}

func (m *Manager) failLoad(modelID string, err error, attempts []types.LoadAttempt) {
	m.mu.Lock()
	m.attempts = attempts
	m.mu.Unlock()
	m.setState(StateUnloaded, nil, err.Error())
	m.log.Error().Err(err).Str("event", "ensure_failed").Str("model", modelID).Msg("model load failed")
	m.publish("ensure_failed", modelID, map[string]any{"error": err.Error()})
}

func (m *Manager) setState(s State, cur *ModelInfo, errMsg string) {
	m.mu.Lock()
	m.state = s
	m.cur = cur
	m.err = errMsg
	m.mu.Unlock()
}
