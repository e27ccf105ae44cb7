// Package cursor tracks the indexing position of the deposit watcher.
//
// The cursor is the highest block height whose processing completed. It is
// persisted as processed-block rows; the tracker keeps the high-water mark in
// memory so it never moves backwards, even when old heights are replayed.
//
// On first use with an empty store the cursor bootstraps a fixed number of
// blocks behind the chain tip instead of starting from genesis:
//
//	tracker := cursor.NewTracker(processedRepo, 100)
//	h, _ := tracker.Current(ctx, tip) // tip-100 on a fresh database
//	tracker.Advance(ctx, h+1)
package cursor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// DefaultLookback is how far behind the tip a fresh cursor starts.
const DefaultLookback = 100

// Tracker owns the processed-block high-water mark.
type Tracker struct {
	repo     storage.ProcessedBlockRepository
	lookback uint64

	mu      sync.RWMutex
	current uint64
	loaded  bool

	collector *MetricsCollector
	log       *slog.Logger
}

// NewTracker creates a tracker backed by the processed-block repository.
func NewTracker(repo storage.ProcessedBlockRepository, lookback uint64) *Tracker {
	return &Tracker{
		repo:      repo,
		lookback:  lookback,
		collector: NewMetricsCollector(100),
		log:       slog.Default().With("component", "cursor"),
	}
}

// Current returns the cursor, loading it from storage on first call.
// With no processed blocks recorded it bootstraps to tip-lookback, floored at 0.
func (t *Tracker) Current(ctx context.Context, tip uint64) (uint64, error) {
	t.mu.RLock()
	if t.loaded {
		defer t.mu.RUnlock()
		return t.current, nil
	}
	t.mu.RUnlock()

	latest, ok, err := t.repo.Latest(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load cursor: %w", err)
	}

	start := latest
	if !ok {
		start = bootstrap(tip, t.lookback)
		t.log.Info("no processed blocks, bootstrapping cursor", "tip", tip, "cursor", start)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded || start > t.current {
		t.current = start
	}
	t.loaded = true
	metrics.IndexerLatestBlock.Set(float64(t.current))
	return t.current, nil
}

// Advance records height as processed. Replaying an old height refreshes its
// row but leaves the high-water mark where it is.
func (t *Tracker) Advance(ctx context.Context, height uint64) error {
	if err := t.repo.Upsert(ctx, height); err != nil {
		return fmt.Errorf("%w: record processed block %d: %w", storage.ErrStorage, height, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.collector.RecordBlock(height, time.Now())
	t.raise(height)
	return nil
}

// Skip moves the in-memory mark past height without recording it as processed.
// Used when a block failed and was handed to the retry queue.
func (t *Tracker) Skip(height uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.raise(height)
}

// Position returns the in-memory cursor without touching storage.
// ok is false until Current has loaded it.
func (t *Tracker) Position() (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.loaded
}

// Lag returns how many blocks the cursor trails latest by. Negative values
// mean the cursor is ahead of the provided height.
func (t *Tracker) Lag(latest uint64) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int64(latest) - int64(t.current)
}

// Metrics returns the processing rate over the recent window.
func (t *Tracker) Metrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := t.collector.GetMetrics()
	metrics.BlocksPerSecond.Set(m.BlocksPerSecond)
	return m
}

func (t *Tracker) raise(height uint64) {
	if height > t.current || !t.loaded {
		t.current = height
		t.loaded = true
	}
	metrics.IndexerLatestBlock.Set(float64(t.current))
}

func bootstrap(tip, lookback uint64) uint64 {
	if tip < lookback {
		return 0
	}
	return tip - lookback
}
