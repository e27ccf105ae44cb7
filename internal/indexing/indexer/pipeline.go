package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
)

// Pipeline implements the Indexer interface as a single sequential poll loop:
// fetch tip, re-validate recent deposits, process new heights in order, retry
// one failed block, sleep.
type Pipeline struct {
	cfg     Config
	running atomic.Bool
	stop    chan struct{}
	once    sync.Once

	mu          sync.RWMutex
	state       State
	latest      uint64
	lastCycleAt time.Time
	lastErr     error

	onTransition func(Transition)
	log          *slog.Logger
}

var _ Indexer = (*Pipeline)(nil)

// NewPipeline creates a new indexing pipeline
func NewPipeline(cfg Config) *Pipeline {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	return &Pipeline{
		cfg:   cfg,
		stop:  make(chan struct{}),
		state: StateStopped,
		log:   slog.Default().With("component", "pipeline"),
	}
}

// SetTransitionCallback registers fn for every state change.
func (p *Pipeline) SetTransitionCallback(fn func(Transition)) {
	p.onTransition = fn
}

// Start begins the indexing loop
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)
	defer p.setState(StateStopped)

	p.setState(StateIdle)
	p.log.Info("pipeline started",
		"poll_interval", p.cfg.PollInterval,
		"error_backoff", p.cfg.ErrorBackoff,
	)

	for {
		wait := p.cfg.PollInterval
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Error("error in main loop", "error", err, "retry_in", p.cfg.ErrorBackoff)
			p.transition(StateBackoff)
			wait = p.cfg.ErrorBackoff
		} else {
			p.transition(StateSleep)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-p.stop:
			return nil
		case <-time.After(wait):
		}
		p.transition(StateIdle)
	}
}

// Stop stops the pipeline
func (p *Pipeline) Stop() error {
	p.once.Do(func() { close(p.stop) })
	return nil
}

// GetStatus returns the current status
func (p *Pipeline) GetStatus() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	current, _ := p.cfg.Cursor.Position()
	status := Status{
		Running:         p.running.Load(),
		State:           p.state,
		CurrentBlock:    current,
		LatestBlock:     p.latest,
		Lag:             p.cfg.Cursor.Lag(p.latest),
		BlocksPerSecond: p.cfg.Cursor.Metrics().BlocksPerSecond,
		LastCycleAt:     p.lastCycleAt,
	}
	if p.lastErr != nil {
		status.LastError = p.lastErr.Error()
	}
	return status
}

// RunOnce executes one poll cycle.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	err := p.cycle(ctx)

	p.mu.Lock()
	p.lastCycleAt = time.Now()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

func (p *Pipeline) cycle(ctx context.Context) error {
	p.transition(StateFetchTip)
	tip, err := p.cfg.Reader.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch chain tip: %w", err)
	}
	metrics.ChainLatestBlock.Set(float64(tip))
	p.mu.Lock()
	p.latest = tip
	p.mu.Unlock()

	current, err := p.cfg.Cursor.Current(ctx, tip)
	if err != nil {
		return err
	}

	if tip > current {
		p.transition(StateReorgCheck)
		if _, err := p.cfg.Reorg.Check(ctx, tip, current); err != nil {
			return fmt.Errorf("reorg check failed: %w", err)
		}

		p.transition(StateProcessBlocks)
		for height := current + 1; height <= tip; height++ {
			if err := p.processHeight(ctx, height); err != nil {
				return err
			}
		}
	}

	p.transition(StateRetryFailed)
	if p.cfg.Recovery != nil {
		if _, err := p.cfg.Recovery.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("failed block retry error", "error", err)
		}
	}
	return nil
}

// processHeight only returns an error when the context is done. A failed
// block moves the cursor on and goes to the retry queue.
func (p *Pipeline) processHeight(ctx context.Context, height uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.cfg.Processor.ProcessBlock(ctx, height)
	if err == nil {
		metrics.BlocksProcessed.WithLabelValues("ok").Inc()
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	metrics.BlocksProcessed.WithLabelValues("failed").Inc()
	p.log.Error("error processing block", "block", height, "error", err)
	p.cfg.Cursor.Skip(height)

	if p.cfg.Recovery != nil {
		if qerr := p.cfg.Recovery.HandleFailure(ctx, height, err); qerr != nil {
			p.log.Error("failed to queue block for retry", "block", height, "error", qerr)
		}
	}
	return nil
}

func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	from := p.state
	if !CanTransition(from, to) {
		p.mu.Unlock()
		p.log.Warn("unexpected state transition", "from", from, "to", to, "error", ErrInvalidTransition)
		p.setState(to)
		return
	}
	p.state = to
	p.mu.Unlock()
	p.notify(from, to)
}

// setState forces a state without validation.
func (p *Pipeline) setState(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()
	if from != to {
		p.notify(from, to)
	}
}

func (p *Pipeline) notify(from, to State) {
	p.log.Debug("pipeline state", "from", from, "to", to)
	if p.onTransition != nil {
		p.onTransition(Transition{From: from, To: to, Timestamp: time.Now()})
	}
}
