package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/eventbus"

	goredis "github.com/redis/go-redis/v9"
)

// streamField is the entry field carrying the serialized event envelope.
const streamField = "event"

// Stream implements eventbus.Broker over a Redis stream with a consumer
// group.
type Stream struct {
	client *goredis.Client
	stream string
	group  string
}

// NewStream creates the broker for one stream and consumer group.
func NewStream(client *goredis.Client, stream, group string) *Stream {
	return &Stream{client: client, stream: stream, group: group}
}

// EnsureGroup creates the consumer group (and the stream) if missing.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Append writes the event to the stream and returns the assigned id.
func (s *Stream) Append(ctx context.Context, event domain.Event) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	id, err := s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{streamField: payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd event: %w", err)
	}
	return id, nil
}

// Read fetches the next batch for the named consumer, blocking up to the
// given timeout. A timeout with no messages returns an empty batch.
func (s *Stream) Read(ctx context.Context, consumer string, batch int, block time.Duration) ([]eventbus.StreamMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{s.stream, ">"},
		Count:    int64(batch),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var msgs []eventbus.StreamMessage
	for _, st := range streams {
		for _, m := range st.Messages {
			raw, ok := m.Values[streamField].(string)
			if !ok {
				// Malformed entry: ack so it cannot wedge the group.
				_ = s.client.XAck(ctx, s.stream, s.group, m.ID).Err()
				continue
			}
			var ev domain.Event
			if err := json.Unmarshal([]byte(raw), &ev); err != nil {
				_ = s.client.XAck(ctx, s.stream, s.group, m.ID).Err()
				continue
			}
			msgs = append(msgs, eventbus.StreamMessage{StreamID: m.ID, Event: ev})
		}
	}
	return msgs, nil
}

// Ack acknowledges one processed entry.
func (s *Stream) Ack(ctx context.Context, streamID string) error {
	if err := s.client.XAck(ctx, s.stream, s.group, streamID).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", streamID, err)
	}
	return nil
}
