package cards

import (
	"context"

	"github.com/conorfennell/knolarchive/internal/domain"
	"github.com/conorfennell/knolarchive/internal/events"
)

type correlationKey struct{}

// WithCorrelationID attaches a correlation id that is copied into the
// metadata of every event the request produces.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func (s *Service) notify(ctx context.Context, actor domain.Actor, eventType string, c domain.Card, payload map[string]any) {
	e, err := events.ForCard(eventType, c, s.metadata(ctx, actor), s.now(), payload)
	if err != nil {
		s.logger.Warn("failed to build event", "type", eventType, "card_id", c.ID, "error", err)
		s.metrics.PublishFailed(1)
		return
	}
	s.publish(ctx, []events.Event{e})
}

// publish delivers events after their mutation has committed. It runs on its
// own deadline, detached from the caller's cancellation, and a failure is
// logged and counted but never returned.
func (s *Service) publish(ctx context.Context, evs []events.Event) {
	if len(evs) == 0 {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	var err error
	if len(evs) == 1 {
		err = s.publisher.Publish(pubCtx, evs[0])
	} else {
		err = s.publisher.PublishBatch(pubCtx, evs)
	}
	if err != nil {
		s.logger.Warn("failed to publish events",
			"type", evs[0].Type,
			"count", len(evs),
			"correlation_id", evs[0].Metadata.CorrelationID,
			"error", err,
		)
		s.metrics.PublishFailed(len(evs))
	}
}

func (s *Service) metadata(ctx context.Context, actor domain.Actor) events.Metadata {
	return events.Metadata{CorrelationID: CorrelationID(ctx), ActorID: actor.UserID}
}
