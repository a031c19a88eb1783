package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher captures structured audit events. It is append-only and uses the
// store for persistence so tests can swap sinks easily. In async mode events
// go through a buffered channel drained by a Worker.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox     chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan Event, n)
		}
	}
}

// WithLogger sets the logger used for background persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		worker := NewWorker(store, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			if err := worker.Run(context.Background()); err != nil {
				p.logger.Error("audit worker stopped", "error", err)
			}
		}()
	}
	return p
}

// Emit records event, stamping the timestamp and category when missing.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = Action(event.Action).Category()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.Warn("audit event dropped", "action", event.Action, "reason", "buffer_full")
		return ErrBufferFull
	}
}

func (p *Publisher) List(ctx context.Context, scope string) ([]Event, error) {
	return p.store.ListByScope(ctx, scope)
}

// Close drains buffered events. Emit must not be called after Close.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox == nil {
			return
		}
		close(p.inbox)
		<-p.done
	})
}
