package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// changeNotice tells subscribers which single ticket to re-read.
type changeNotice struct {
	EventID  string    `json:"event_id"`
	Type     EventType `json:"type"`
	TicketID string    `json:"ticket_id"`
	Event    Event     `json:"event"`
}

// RedisPublisher fans events out on a Redis channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher builds a publisher for channel.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Register subscribes the publisher to every event type.
func (p *RedisPublisher) Register(d Dispatcher) {
	for _, eventType := range AllEventTypes {
		d.Subscribe(eventType, p.Handle)
	}
}

// Handle publishes one event.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(changeNotice{
		EventID:  event.ID,
		Type:     event.Type,
		TicketID: event.TicketID,
		Event:    event,
	})
	if err != nil {
		return fmt.Errorf("encode change notice: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish change notice: %w", err)
	}
	return nil
}
