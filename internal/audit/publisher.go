package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lineage/pkg/requestcontext"
)

// Publisher stamps and forwards events to a sink, either synchronously or
// through a buffered channel drained by a background worker. Close drains
// the buffer before returning.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	inbox chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// channel capacity. When the buffer is full, events are dropped with a
// warning rather than blocking the mutation path.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one event, filling timestamp and request-scoped fields from
// the context when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.CallerID == "" {
		event.CallerID = requestcontext.CallerID(ctx)
	}

	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"chart_id", event.ChartID,
		)
		return nil
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	// Sink writes use a background context: event delivery must not be
	// tied to the request that produced it.
	for event := range p.inbox {
		if err := p.sink.Append(context.Background(), event); err != nil {
			p.logger.Error("audit sink append failed",
				"error", err,
				"action", event.Action,
				"chart_id", event.ChartID,
			)
		}
	}
}

// Close stops the worker after draining buffered events. Safe to call in
// sync mode and safe to call twice.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}
