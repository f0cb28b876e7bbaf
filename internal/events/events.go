// Package events defines the domain events emitted after committed card
// mutations and the publishers that deliver them.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/knolarchive/internal/domain"
)

// Event types.
const (
	CardCreated      = "card.created"
	CardUpdated      = "card.updated"
	CardTagsUpdated  = "card.tags.updated"
	CardLinksUpdated = "card.links.updated"
	CardStateChanged = "card.state.changed"
	CardDeleted      = "card.deleted"
	CardRestored     = "card.restored"
	CardPurged       = "card.purged"
)

// AggregateCard is the aggregate type of every card event.
const AggregateCard = "card"

// Metadata travels with every event.
type Metadata struct {
	CorrelationID string `json:"correlationId,omitempty"`
	ActorID       string `json:"actorId"`
}

// Event is a notification that a card mutation was committed.
type Event struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	AggregateType string         `json:"aggregateType"`
	AggregateID   string         `json:"aggregateId"`
	Version       int64          `json:"version"`
	Payload       map[string]any `json:"payload,omitempty"`
	Metadata      Metadata       `json:"metadata"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

// ForCard builds an event about c at its committed version.
func ForCard(eventType string, c domain.Card, md Metadata, at time.Time, payload map[string]any) (Event, error) {
	id, err := domain.NewID()
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            id,
		Type:          eventType,
		AggregateType: AggregateCard,
		AggregateID:   c.ID,
		Version:       c.Version,
		Payload:       payload,
		Metadata:      md,
		OccurredAt:    at.UTC(),
	}, nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	PublishBatch(ctx context.Context, events []Event) error
}

// LogPublisher writes events to a structured logger. It is used when no
// broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs e.
func (p LogPublisher) Publish(ctx context.Context, e Event) error {
	p.Logger.LogAttrs(ctx, slog.LevelInfo, "event",
		slog.String("type", e.Type),
		slog.String("aggregate_id", e.AggregateID),
		slog.Int64("version", e.Version),
		slog.String("actor_id", e.Metadata.ActorID),
		slog.String("correlation_id", e.Metadata.CorrelationID),
	)
	return nil
}

// PublishBatch logs every event.
func (p LogPublisher) PublishBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned by every publish call and nothing is recorded.
	Err error
}

// Publish records e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

// PublishBatch records events.
func (r *Recorder) PublishBatch(_ context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
