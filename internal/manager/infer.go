package manager

import (
	"context"
	"strings"
	"time"
)

// Generate runs one completion against the resident model. It never loads a
// model: with nothing resident and no transition running it returns
// ErrNotReady. A call arriving during a load or switch waits for it through
// the admission queue. Generations are serialized behind the owner token.
func (m *Manager) Generate(ctx context.Context, prompt string, params InferParams) (string, error) {
	m.mu.RLock()
	pending := m.state == StateLoading || m.state == StateSwitching || m.switching
	if !pending && (m.state != StateReady || m.cur == nil) {
		m.mu.RUnlock()
		return "", ErrNotReady
	}
	modelID := m.desired
	if m.cur != nil {
		modelID = m.cur.ID
	}
	m.mu.RUnlock()

	release, err := m.beginGeneration(ctx, modelID)
	if err != nil {
		return "", err
	}
	defer release()

	// the runtime may have changed or failed while this call waited
	m.mu.Lock()
	inst := m.inst
	if m.state != StateReady || inst == nil {
		m.mu.Unlock()
		return "", ErrNotReady
	}
	inst.lastUsed = time.Now()
	m.mu.Unlock()

	start := time.Now()
	var b strings.Builder
	onTok := func(tok string) error {
		b.WriteString(tok)
		return nil
	}
	final, err := inst.session.Generate(ctx, prompt, params.withDefaults(m.params), onTok)
	generationDuration.WithLabelValues(inst.model.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		m.log.Error().Err(err).Str("event", "generate_error").Str("model", inst.model.ID).Msg("generation failed")
		return "", err
	}
	content := final.Content
	if content == "" {
		content = b.String()
	}
	m.log.Debug().Str("event", "generate_done").Str("model", inst.model.ID).
		Int("chars", len(content)).Dur("dur", time.Since(start)).Msg("generation finished")
	return strings.TrimSpace(content), nil
}
