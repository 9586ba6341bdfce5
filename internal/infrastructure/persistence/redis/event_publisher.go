package redis

import (
	"context"
	"time"

	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// EventsChannel is the pub/sub channel domain events are forwarded to.
var EventsChannel = PubSubChannel("events")

// EventPublisher forwards domain events to Redis pub/sub as JSON envelopes.
type EventPublisher struct {
	cache   *Cache
	channel string
	timeout time.Duration
}

// NewEventPublisher creates a publisher on EventsChannel.
func NewEventPublisher(cache *Cache) *EventPublisher {
	return &EventPublisher{cache: cache, channel: EventsChannel, timeout: 2 * time.Second}
}

// Publish implements shared.EventPublisher.
func (p *EventPublisher) Publish(event shared.Event) error {
	data, err := shared.MarshalEvent(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.cache.Publish(ctx, p.channel, data)
}

var _ shared.EventPublisher = (*EventPublisher)(nil)
