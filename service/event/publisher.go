package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/viant/floor/service/messaging"
)

// Publisher publishes typed events; each one is mirrored on the untyped queue
// when the publisher was created by a Service. A service publisher enqueues
// only while the queue has a listener.
type Publisher[T any] struct {
	queue       messaging.Queue[Event[T]]
	anyQueue    messaging.Queue[Event[any]]
	listened    *atomic.Bool
	anyListened *atomic.Bool
}

// NewPublisher creates a publisher over queue
func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

// Publish stamps and enqueues the event
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = time.Now()
	if p.anyQueue != nil && isListened(p.anyListened) {
		if err := p.anyQueue.Publish(ctx, &Event[any]{
			Context:   event.Context,
			CreatedAt: event.CreatedAt,
			Metadata:  event.Metadata,
			Data:      event.Data,
		}); err != nil {
			return err
		}
	}
	if !isListened(p.listened) {
		return nil
	}
	return p.queue.Publish(ctx, event)
}

func isListened(flag *atomic.Bool) bool {
	return flag == nil || flag.Load()
}

// Consume blocks for the next event
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
