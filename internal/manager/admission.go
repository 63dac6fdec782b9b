package manager

import (
	"context"
	"time"
)

// acquireOwner takes the exclusive runtime token. Transitions hold it for
// their full duration; generations hold it while the model is producing.
func (m *Manager) acquireOwner(ctx context.Context) error {
	select {
	case m.owner <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) releaseOwner() { <-m.owner }

// beginGeneration reserves a queue slot and then the owner token.
// Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context, modelID string) (func(), error) {
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()

	// Try to reserve a queue slot with timeout
	select {
	case m.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		queueRejections.WithLabelValues("queue_full").Inc()
		return func() {}, tooBusyError{modelID: modelID}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
		}
	}()
	select {
	case m.owner <- struct{}{}:
		acquired = true
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		queueRejections.WithLabelValues("wait_timeout").Inc()
		return func() {}, tooBusyError{modelID: modelID}
	}
	return func() {
		<-m.owner
		<-m.queueCh
	}, nil
}
