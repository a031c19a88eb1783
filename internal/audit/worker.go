package audit

import (
	"context"
	"log/slog"
)

// Worker drains the Publisher's async buffer into a Store. A failed append is
// logged and the drain continues, so one bad write never stalls the buffer
// behind it. Run returns nil once the inbox is closed and empty, which is how
// Publisher.Close waits for buffered events.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", event.Action,
					"target_scope", event.TargetScope,
					"error", err,
				)
			}
		}
	}
}
