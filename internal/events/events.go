package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Event announces that one ingestion request committed its rows
type Event struct {
	RequestID  string    `json:"request_id"`
	VenueID    int64     `json:"venue_id"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Rows       int       `json:"rows"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Publisher appends ingestion events to a Redis stream
type Publisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, logger: logger}
}

// PublishIngested serializes the event and adds it to the stream under the "data" field
func (p *Publisher) PublishIngested(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.stream, err)
	}

	p.logger.Debug("published ingestion event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("request_id", event.RequestID),
	)
	return nil
}
