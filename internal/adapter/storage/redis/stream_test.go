package redis_test

import (
	"context"
	"testing"
	"time"

	"pmc-orchestrator/internal/adapter/storage/redis"
	"pmc-orchestrator/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_AppendReadAck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	broker := redis.NewStream(client, "pmc:events", "pmc-dispatch")
	ctx := context.Background()
	require.NoError(t, broker.EnsureGroup(ctx))
	require.NoError(t, broker.EnsureGroup(ctx), "idempotent group creation")

	ev := domain.NewEvent(domain.EventIntentCreated,
		time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		map[string]any{"payment_intent_id": "pi_1"})

	streamID, err := broker.Append(ctx, ev)
	require.NoError(t, err)
	require.NotEmpty(t, streamID)

	msgs, err := broker.Read(ctx, "worker-1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, streamID, msgs[0].StreamID)
	assert.Equal(t, ev.ID, msgs[0].Event.ID)
	assert.Equal(t, domain.EventIntentCreated, msgs[0].Event.Type)
	assert.Equal(t, "pi_1", msgs[0].Event.Data["payment_intent_id"])

	require.NoError(t, broker.Ack(ctx, streamID))

	// Nothing new for the group after ack.
	msgs, err = broker.Read(ctx, "worker-1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStream_ReadDeliversToOneConsumer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	broker := redis.NewStream(client, "pmc:events", "pmc-dispatch")
	ctx := context.Background()
	require.NoError(t, broker.EnsureGroup(ctx))

	ev := domain.NewEvent(domain.EventRefundSucceeded, time.Now().UTC(), map[string]any{"payment_intent_id": "pi_1"})
	_, err := broker.Append(ctx, ev)
	require.NoError(t, err)

	msgs1, err := broker.Read(ctx, "worker-1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	msgs2, err := broker.Read(ctx, "worker-2", 10, 10*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 1, len(msgs1)+len(msgs2), "each entry goes to exactly one consumer in the group")
}
