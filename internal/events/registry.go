package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
)

// Event names a host lifecycle point the detection core can hook into.
type Event string

const (
	EventOrderCreate        Event = "order.create"
	EventOrderDeleteAttempt Event = "order.delete_attempt"
	EventTimerTick          Event = "timer.tick"
	EventHTTPPost           Event = "http.post"
)

// Handler is invoked when its lifecycle event fires. The payload shape is
// owned by whichever component registered the handler.
type Handler func(ctx context.Context, payload any) error

// Registry binds lifecycle events to handlers. Registration happens during
// wiring; dispatch happens on the host's request and timer paths.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[Event][]Handler),
		logger:   logger,
	}
}

// Register binds a handler to an event. Multiple handlers may share an event;
// they run in registration order.
func (r *Registry) Register(event Event, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], h)
}

// Dispatch runs every handler registered for the event. Handler errors are
// logged and collected; a failing handler does not stop the ones after it.
// Dispatching an event nothing listens to is not an error.
func (r *Registry) Dispatch(ctx context.Context, event Event, payload any) error {
	r.mu.RLock()
	handlers := r.handlers[event]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.Debug("no handlers registered for event", zap.String("event", string(event)))
		return nil
	}

	var firstErr error
	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			r.logger.Error("event handler failed",
				zap.String("event", string(event)),
				zap.Error(err))
			if firstErr == nil {
				firstErr = domainerrors.Wrap(err, "event handler failed")
			}
		}
	}
	return firstErr
}
