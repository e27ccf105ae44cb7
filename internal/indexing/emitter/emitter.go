package emitter

import (
	"context"
	"errors"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

var (
	// ErrQueueFull is returned when an event is dropped because the dispatch
	// queue has no room.
	ErrQueueFull = errors.New("notification queue full")

	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("emitter closed")
)

// Emitter defines the interface for publishing deposit events
type Emitter interface {
	// Emit hands an event off for delivery. It must not block on delivery.
	Emit(ctx context.Context, event *domain.DepositEvent) error

	// Close stops accepting events and flushes what was accepted
	Close() error
}

// Sink delivers one event synchronously. Dispatchers run sinks off the
// caller's path.
type Sink interface {
	// Name labels the sink in logs and metrics
	Name() string

	Deliver(ctx context.Context, event *domain.DepositEvent) error
}
