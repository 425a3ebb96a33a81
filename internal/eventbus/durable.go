package eventbus

import (
	"context"
	"sync"
	"time"

	"pmc-orchestrator/internal/core/domain"
	"pmc-orchestrator/internal/core/ports"

	"github.com/rs/zerolog"
)

// StreamMessage is one broker delivery: the broker-assigned id plus the
// decoded event.
type StreamMessage struct {
	StreamID string
	Event    domain.Event
}

// Broker is the stream transport behind the durable bus. The redis adapter
// implements it over XADD / XREADGROUP / XACK.
type Broker interface {
	EnsureGroup(ctx context.Context) error
	Append(ctx context.Context, event domain.Event) (streamID string, err error)
	Read(ctx context.Context, consumer string, batch int, block time.Duration) ([]StreamMessage, error)
	Ack(ctx context.Context, streamID string) error
}

// Durable is the crash-safe bus: Publish writes an outbox row, appends to
// the stream, then marks the row published. A consumer loop reads the
// stream through a consumer group and deduplicates via the inbox table, so
// downstream delivery is at-least-once with exactly-once handling.
type Durable struct {
	outbox ports.OutboxRepository
	broker Broker
	group  string
	clock  ports.Clock
	log    zerolog.Logger

	batch int
	block time.Duration

	mu       sync.RWMutex
	handlers []ports.EventHandler

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// DurableConfig tunes the consumer loop.
type DurableConfig struct {
	ConsumerGroup string
	BatchSize     int
	BlockTimeout  time.Duration
}

// NewDurable creates the durable bus. Start must be called to consume.
func NewDurable(outbox ports.OutboxRepository, broker Broker, clock ports.Clock, cfg DurableConfig, log zerolog.Logger) *Durable {
	return &Durable{
		outbox: outbox,
		broker: broker,
		group:  cfg.ConsumerGroup,
		clock:  clock,
		log:    log,
		batch:  cfg.BatchSize,
		block:  cfg.BlockTimeout,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Publish makes the event durable before it is visible: outbox row first,
// then the stream append, then the published mark. A crash between the
// first two steps leaves an unpublished row for RecoverUnpublished.
func (d *Durable) Publish(ctx context.Context, event domain.Event) error {
	inserted, err := d.outbox.InsertOutbox(ctx, event)
	if err != nil {
		return err
	}
	if !inserted {
		// Duplicate event id: already published or pending recovery.
		return nil
	}
	return d.publishRow(ctx, event)
}

func (d *Durable) publishRow(ctx context.Context, event domain.Event) error {
	streamID, err := d.broker.Append(ctx, event)
	if err != nil {
		return err
	}
	return d.outbox.MarkPublished(ctx, event.ID, streamID, d.clock.Now())
}

// RecoverUnpublished republishes outbox rows that never reached the
// stream. Run once at startup before serving traffic.
func (d *Durable) RecoverUnpublished(ctx context.Context, limit int) (int, error) {
	events, err := d.outbox.ListUnpublished(ctx, limit)
	if err != nil {
		return 0, err
	}
	for i, ev := range events {
		if err := d.publishRow(ctx, ev); err != nil {
			return i, err
		}
	}
	return len(events), nil
}

// Subscribe registers a handler. Call before Start.
func (d *Durable) Subscribe(handler ports.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

// ListPublishedEvents pages the outbox rows that carry a published mark.
func (d *Durable) ListPublishedEvents(ctx context.Context, f ports.EventFilter, p ports.Page) ([]domain.Event, bool, error) {
	return d.outbox.ListPublished(ctx, f, p)
}

// Start runs the consumer loop until Stop or ctx cancellation. consumer
// names this process inside the group.
func (d *Durable) Start(ctx context.Context, consumer string) error {
	if err := d.broker.EnsureGroup(ctx); err != nil {
		return err
	}
	d.started = true
	go d.run(ctx, consumer)
	return nil
}

// Stop signals the loop and waits for it to drain the in-flight batch.
func (d *Durable) Stop() {
	if !d.started {
		return
	}
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
}

func (d *Durable) run(ctx context.Context, consumer string) {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := d.broker.Read(ctx, consumer, d.batch, d.block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error().Err(err).Msg("stream read failed")
			continue
		}
		for _, msg := range msgs {
			d.handle(ctx, msg)
		}
	}
}

// handle processes one delivery: inbox insert for dedup, fan-out, ack.
// On handler failure the inbox row is removed and the message is left
// unacked so the broker redelivers it.
func (d *Durable) handle(ctx context.Context, msg StreamMessage) {
	inserted, err := d.outbox.InsertInbox(ctx, d.group, msg.Event.ID)
	if err != nil {
		d.log.Error().Err(err).Str("event_id", msg.Event.ID).Msg("inbox insert failed")
		return
	}
	if !inserted {
		if err := d.broker.Ack(ctx, msg.StreamID); err != nil {
			d.log.Error().Err(err).Str("event_id", msg.Event.ID).Msg("ack failed for duplicate")
		}
		return
	}

	d.mu.RLock()
	handlers := append([]ports.EventHandler{}, d.handlers...)
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, msg.Event); err != nil {
			d.log.Error().Err(err).
				Str("event_id", msg.Event.ID).
				Str("event_type", string(msg.Event.Type)).
				Msg("event handler failed, leaving message for redelivery")
			if derr := d.outbox.DeleteInbox(ctx, d.group, msg.Event.ID); derr != nil {
				d.log.Error().Err(derr).Str("event_id", msg.Event.ID).Msg("inbox delete failed")
			}
			return
		}
	}

	if err := d.broker.Ack(ctx, msg.StreamID); err != nil {
		d.log.Error().Err(err).Str("event_id", msg.Event.ID).Msg("ack failed")
	}
}
