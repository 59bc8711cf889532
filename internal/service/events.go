package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EventPublisher sends domain events.  Delivery is best effort: a failed
// publish is logged and never fails the operation that produced it.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

const publishTimeout = 2 * time.Second

// emit publishes on a context detached from the request so a client
// disconnect does not drop the event.
func emit(ctx context.Context, pub EventPublisher, log zerolog.Logger, key string, payload any) {
	if pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := pub.Publish(pctx, key, payload); err != nil {
		log.Warn().Err(err).Str("event", key).Msg("event not published")
	}
}
