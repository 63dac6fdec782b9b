package manager

import (
	"time"

	"github.com/rs/zerolog"
)

// Event is a runtime lifecycle event such as ensure_start or switch_done.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
	// At is filled in by publishers that keep events.
	At time.Time
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes every event as a debug log line.
type LogPublisher struct{ Logger zerolog.Logger }

func (p LogPublisher) Publish(e Event) {
	p.Logger.Debug().Str("event", e.Name).Str("model", e.ModelID).Fields(e.Fields).Msg("runtime event")
}

// MultiPublisher fans an event out to several publishers.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
