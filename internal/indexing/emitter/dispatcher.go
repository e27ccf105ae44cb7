package emitter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
)

// DispatcherConfig bounds the work a dispatcher may hold.
type DispatcherConfig struct {
	QueueSize int           // pending events before drops start (default: 256)
	Workers   int           // concurrent deliveries (default: 4)
	Timeout   time.Duration // per-event delivery deadline (default: 30s)
}

// DefaultDispatcherConfig returns the defaults used when fields are zero.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize: 256,
		Workers:   4,
		Timeout:   30 * time.Second,
	}
}

// Dispatcher is an Emitter that queues events for a fixed worker pool.
// Emit never waits on delivery; when the queue is full the event is dropped.
type Dispatcher struct {
	sink  Sink
	cfg   DispatcherConfig
	queue chan *domain.DepositEvent

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// base context for deliveries, cancelled only after the queue drained
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

var _ Emitter = (*Dispatcher)(nil)

// NewDispatcher starts the worker pool for sink.
func NewDispatcher(sink Sink, cfg DispatcherConfig) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:   sink,
		cfg:    cfg,
		queue:  make(chan *domain.DepositEvent, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		log:    slog.Default().With("component", "dispatcher", "sink", sink.Name()),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

// Emit enqueues event without blocking.
func (d *Dispatcher) Emit(ctx context.Context, event *domain.DepositEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- event:
		return nil
	default:
		metrics.NotificationsDropped.Inc()
		d.log.Warn("notification queue full, dropping event",
			"hash", event.Deposit.Hash,
			"event", event.EventType,
			"queue_size", d.cfg.QueueSize,
		)
		return ErrQueueFull
	}
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting events, waits for the queue to drain and the
// workers to exit. Safe to call more than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	return nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event *domain.DepositEvent) {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	if err := d.sink.Deliver(ctx, event); err != nil {
		d.log.Error("delivery failed",
			"hash", event.Deposit.Hash,
			"event", event.EventType,
			"error", err,
		)
	}
}
