package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/abhisek/hangeul/internal/logging"
)

// ErrBusClosed is returned by Publish once Close has been called.
var ErrBusClosed = errors.New("event bus closed")

// ErrBusFull is returned by Publish when the queue has no room left.
var ErrBusFull = errors.New("event bus queue full")

// Bus is an in-process pub/sub for lifecycle events backed by a watermill
// Go channel. Publish only enqueues; a single forwarder hands events to the
// Go channel one at a time and waits for every subscriber to ack, so
// subscribers see events in publish order.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *message.Message
	done   chan struct{}
}

var _ Publisher = (*Bus)(nil)

// BusConfig configures a Bus.
type BusConfig struct {
	// Buffer is the per-subscriber channel capacity.
	Buffer int64
	// Queue is the number of events Publish can hold before it fails.
	Queue  int
	Logger *slog.Logger
}

// NewBus creates a Bus and starts its forwarder.
func NewBus(cfg BusConfig) *Bus {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	queue := cfg.Queue
	if queue <= 0 {
		queue = 1024
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            buffer,
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NewSlogLogger(logger))

	b := &Bus{
		pubsub: pubsub,
		logger: logger.With("component", "events"),
		queue:  make(chan *message.Message, queue),
		done:   make(chan struct{}),
	}
	go b.forward()
	return b
}

// Publish queues ev for every subscriber and returns without waiting for
// delivery.
func (b *Bus) Publish(_ context.Context, ev SessionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set("event_type", string(ev.Type))
	msg.Metadata.Set("session_id", ev.SessionID)
	msg.Metadata.Set("timestamp", ev.Timestamp.Format(time.RFC3339))

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.queue <- msg:
	default:
		b.logger.Error("event queue full, dropping event",
			"event_id", ev.ID,
			"event_type", ev.Type)
		return ErrBusFull
	}

	b.logger.Debug("queued event",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"session_id", ev.SessionID)
	return nil
}

func (b *Bus) forward() {
	defer close(b.done)
	for msg := range b.queue {
		if err := b.pubsub.Publish(Topic, msg); err != nil {
			b.logger.Error("publish event failed",
				"event_id", msg.UUID,
				"event_type", msg.Metadata.Get("event_type"),
				"error", err)
		}
	}
}

// Handler consumes one event. Errors are logged and the event is dropped.
type Handler func(ctx context.Context, ev SessionEvent) error

// Subscribe runs handler for every event published after the call, until
// ctx is done or the bus is closed. The returned channel is closed when the
// consumer goroutine exits.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) (<-chan struct{}, error) {
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			var ev SessionEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Warn("drop malformed event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			if err := handler(msg.Context(), ev); err != nil {
				b.logger.Warn("event handler failed",
					"event_id", ev.ID,
					"event_type", ev.Type,
					"error", err)
			}
			msg.Ack()
		}
	}()
	return done, nil
}

// Close stops accepting events, waits until every queued event has been
// handled by the current subscribers, then ends all subscriptions. It is safe
// to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	<-b.done
	return b.pubsub.Close()
}
