package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// BlockFetcher re-runs processing for a failed height.
type BlockFetcher func(ctx context.Context, blockNum uint64) error

// Outcome reports what ProcessNext did.
type Outcome string

const (
	OutcomeIdle     Outcome = "idle"     // queue empty
	OutcomeWaiting  Outcome = "waiting"  // next entry still backing off
	OutcomeResolved Outcome = "resolved" // retry succeeded
	OutcomeRetrying Outcome = "retrying" // retry failed, will try again
	OutcomeDropped  Outcome = "dropped"  // gave up on the block
)

// Handler processes the failed block queue.
type Handler struct {
	repo     storage.FailedBlockRepository
	fetcher  BlockFetcher
	strategy RetryStrategy
	now      func() time.Time
	log      *slog.Logger
}

// NewHandler creates a new failed block handler.
func NewHandler(
	repo storage.FailedBlockRepository,
	fetcher BlockFetcher,
	strategy RetryStrategy,
) *Handler {
	return &Handler{
		repo:     repo,
		fetcher:  fetcher,
		strategy: strategy,
		now:      time.Now,
		log:      slog.Default().With("component", "recovery"),
	}
}

// ProcessNext picks the next failed block and retries it if backoff allows.
func (h *Handler) ProcessNext(ctx context.Context) (Outcome, error) {
	failedBlock, err := h.repo.GetNext(ctx)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("failed to get next failed block: %w", err)
	}
	if failedBlock == nil {
		metrics.FailedBlocksQueued.Set(0)
		return OutcomeIdle, nil
	}

	delay := h.strategy.GetDelay(failedBlock.RetryCount)
	lastAttempt := time.Unix(failedBlock.LastAttempt, 0)
	if h.now().Before(lastAttempt.Add(delay)) {
		return OutcomeWaiting, nil
	}

	fetchErr := h.fetcher(ctx, failedBlock.BlockNumber)
	if fetchErr == nil {
		if err := h.repo.MarkResolved(ctx, failedBlock.ID); err != nil {
			return OutcomeRetrying, fmt.Errorf("failed to resolve block %s: %w", failedBlock.ID, err)
		}
		h.log.Info("failed block recovered",
			"block", failedBlock.BlockNumber,
			"attempts", failedBlock.RetryCount+1,
		)
		h.refreshGauge(ctx)
		return OutcomeResolved, nil
	}

	// shutting down, leave the entry untouched
	if ctx.Err() != nil {
		return OutcomeWaiting, ctx.Err()
	}

	attempt := failedBlock.RetryCount + 1
	if !h.strategy.ShouldRetry(fetchErr, attempt) {
		if err := h.repo.MarkResolved(ctx, failedBlock.ID); err != nil {
			return OutcomeRetrying, fmt.Errorf("failed to drop block %s: %w", failedBlock.ID, err)
		}
		h.log.Error("giving up on failed block",
			"block", failedBlock.BlockNumber,
			"attempts", attempt,
			"error", fetchErr,
		)
		h.refreshGauge(ctx)
		return OutcomeDropped, nil
	}

	if err := h.repo.IncrementRetry(ctx, failedBlock.ID, fetchErr.Error()); err != nil {
		return OutcomeRetrying, fmt.Errorf("failed to increment retry: %w", err)
	}
	h.log.Warn("failed block retry failed",
		"block", failedBlock.BlockNumber,
		"attempt", attempt,
		"next_in", h.strategy.GetDelay(attempt),
		"error", fetchErr,
	)
	return OutcomeRetrying, nil
}

// HandleFailure is called by the main indexer loop when a block fails.
// It creates a new FailedBlock entry.
func (h *Handler) HandleFailure(ctx context.Context, blockNum uint64, cause error) error {
	if cause == nil {
		return errors.New("nil failure cause")
	}

	now := h.now().Unix()
	failedBlock := &domain.FailedBlock{
		ID:          uuid.New().String(),
		BlockNumber: blockNum,
		FailureType: FailureTypeOf(cause),
		Error:       cause.Error(),
		RetryCount:  0,
		Status:      domain.FailedBlockStatusPending,
		LastAttempt: now,
		CreatedAt:   now,
	}

	if err := h.repo.Add(ctx, failedBlock); err != nil {
		return fmt.Errorf("failed to add failed block: %w", err)
	}
	h.log.Warn("block queued for retry",
		"block", blockNum,
		"type", failedBlock.FailureType,
		"error", cause,
	)
	h.refreshGauge(ctx)
	return nil
}

// Count returns the number of queued blocks and refreshes the queue gauge.
func (h *Handler) Count(ctx context.Context) (int, error) {
	n, err := h.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	metrics.FailedBlocksQueued.Set(float64(n))
	return n, nil
}

func (h *Handler) refreshGauge(ctx context.Context) {
	_, _ = h.Count(ctx)
}
