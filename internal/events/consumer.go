package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Message is one stream entry decoded into an Event
type Message struct {
	ID    string
	Event Event
}

// Consumer reads ingestion events through a Redis consumer group
type Consumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	logger   *zap.Logger
}

func NewConsumer(client *redis.Client, stream, group, consumer string, logger *zap.Logger) *Consumer {
	return &Consumer{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		logger:   logger,
	}
}

// EnsureGroup creates the consumer group (and the stream) if it doesn't exist
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Read returns up to count new messages, waiting at most block for one to arrive.
// Entries whose payload can't be decoded are logged and skipped without an ack.
func (c *Consumer) Read(ctx context.Context, count int64, block time.Duration) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s: %w", c.stream, err)
	}

	var out []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			raw, ok := m.Values["data"].(string)
			if !ok {
				c.logger.Warn("stream entry has no data field", zap.String("message_id", m.ID))
				continue
			}

			var event Event
			if err := json.Unmarshal([]byte(raw), &event); err != nil {
				c.logger.Warn("failed to unmarshal event",
					zap.String("message_id", m.ID),
					zap.Error(err),
				)
				continue
			}

			out = append(out, Message{ID: m.ID, Event: event})
		}
	}

	return out, nil
}

// Ack acknowledges processed messages
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack %d messages: %w", len(ids), err)
	}
	return nil
}
