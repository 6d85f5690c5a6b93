// Package fanout delivers connection events to independently registered
// callbacks.
package fanout

import (
	"fmt"
	"log/slog"

	"github.com/rickgao/alice-bridge/internal/model"
)

// Callback receives one event. msg is nil for connected events.
type Callback func(msg *model.Message) error

// CallbackFunc adapts a callback that cannot fail.
func CallbackFunc(fn func(msg *model.Message)) Callback {
	return func(msg *model.Message) error {
		fn(msg)
		return nil
	}
}

// Registry maps event kinds to ordered callback lists.
//
// Registry is not safe for concurrent use; it is owned by the event loop.
type Registry struct {
	logger    *slog.Logger
	callbacks map[model.EventKind][]Callback
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:    logger,
		callbacks: make(map[model.EventKind][]Callback),
	}
}

// Register appends cb to the list for kind. Registering the same callback
// twice makes it run twice per dispatch.
func (r *Registry) Register(kind model.EventKind, cb Callback) {
	r.callbacks[kind] = append(r.callbacks[kind], cb)
}

// Len returns the number of callbacks registered for kind.
func (r *Registry) Len(kind model.EventKind) int {
	return len(r.callbacks[kind])
}

// Dispatch invokes every callback for kind in registration order and returns
// how many of them failed. A failing callback is logged and does not stop
// delivery to the rest.
func (r *Registry) Dispatch(kind model.EventKind, msg *model.Message) int {
	failed := 0
	for i, cb := range r.callbacks[kind] {
		if err := r.invoke(cb, msg); err != nil {
			failed++
			attrs := []any{"kind", kind, "index", i, "error", err}
			if msg != nil {
				attrs = append(attrs, "topic", msg.Topic)
			}
			r.logger.Warn("subscriber failed", attrs...)
		}
	}
	return failed
}

func (r *Registry) invoke(cb Callback, msg *model.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return cb(msg)
}
