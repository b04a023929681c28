package audit

import (
	"context"
	"log/slog"
	"time"

	id "veriflow/pkg/domain"
)

// Store persists audit events and answers per-subject queries.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error)
}

// Sink receives a best-effort copy of every event (e.g. the Kafka publisher).
// Sink failures are logged, never surfaced to the emitting operation.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. The store is authoritative and
// append-only; additional sinks fan events out to external systems.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
}

// NewPublisher constructs a Publisher. Sinks are optional.
func NewPublisher(store Store, logger *slog.Logger, sinks ...Sink) *Publisher {
	return &Publisher{store: store, sinks: sinks, logger: logger}
}

// Emit records an event. A zero timestamp is filled with the current time.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil && p.logger != nil {
			p.logger.WarnContext(ctx, "audit sink append failed",
				"action", event.Action,
				"error", err,
			)
		}
	}
	return nil
}

// List returns all events recorded for a subject.
func (p *Publisher) List(ctx context.Context, subjectID id.SubjectID) ([]Event, error) {
	return p.store.ListBySubject(ctx, subjectID)
}
