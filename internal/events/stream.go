package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream for status events.
	StreamKey = "stream:report_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000
)

// StreamPublisher appends events to a Redis stream.
type StreamPublisher struct {
	redis *redis.Client
}

// NewStreamPublisher creates a publisher over an existing client.
func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{redis: client}
}

// Publish adds the event to the stream.
func (p *StreamPublisher) Publish(ctx context.Context, event StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"routing_key": RoutingKey(event.ReportID),
			"payload":     string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *StreamPublisher) Close() error {
	return nil
}
