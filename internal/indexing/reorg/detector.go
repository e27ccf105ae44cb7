package reorg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// Detector re-checks stored deposits inside the recent window.
type Detector struct {
	config    Config
	reader    chain.Reader
	deposits  storage.DepositRepository
	replay    ReplayFunc
	onInvalid InvalidateFunc
	log       *slog.Logger
}

// Result summarizes one re-validation pass.
type Result struct {
	FromBlock   uint64
	ToBlock     uint64
	Checked     int
	Invalidated []string
	Replayed    int
	Duration    time.Duration
}

func newDetector(
	config Config,
	reader chain.Reader,
	deposits storage.DepositRepository,
	replay ReplayFunc,
) *Detector {
	return &Detector{
		config:   config,
		reader:   reader,
		deposits: deposits,
		replay:   replay,
		log:      slog.Default().With("component", "reorg"),
	}
}

// SetInvalidateCallback registers fn to run after a deposit is marked invalid.
func (d *Detector) SetInvalidateCallback(fn InvalidateFunc) {
	d.onInvalid = fn
}

// Window returns the inclusive range of heights Check walks.
func (d *Detector) Window(tip, cursor uint64) (from, to uint64) {
	from = 0
	if tip > d.config.CheckDepth {
		from = tip - d.config.CheckDepth
	}
	if cursor > from {
		from = cursor
	}
	return from, tip
}

// Check walks [max(tip-depth, cursor), tip]. Deposit queries failing is an
// error for the whole pass; lookups and replays failing only affect one
// deposit or height and are logged.
func (d *Detector) Check(ctx context.Context, tip, cursor uint64) (*Result, error) {
	start := time.Now()
	from, to := d.Window(tip, cursor)
	result := &Result{FromBlock: from, ToBlock: to}
	metrics.ReorgChecks.Inc()

	for h := from; h <= to; h++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		stored, err := d.deposits.GetByHeight(ctx, h)
		if err != nil {
			return result, fmt.Errorf("failed to load deposits at %d: %w", h, err)
		}

		for _, dep := range stored {
			result.Checked++
			canonical, err := d.isCanonical(ctx, dep)
			if err != nil {
				d.log.Warn("deposit lookup failed", "block", h, "hash", dep.Hash, "error", err)
				continue
			}
			if canonical || !dep.IsValid() {
				continue
			}

			if err := d.deposits.MarkInvalid(ctx, dep.Hash); err != nil {
				d.log.Error("failed to invalidate deposit", "block", h, "hash", dep.Hash, "error", err)
				continue
			}
			dep.Status = domain.DepositStatusInvalid
			result.Invalidated = append(result.Invalidated, dep.Hash)
			metrics.DepositsInvalidated.Inc()
			d.log.Warn("deposit invalidated", "block", h, "hash", dep.Hash)

			if d.onInvalid != nil {
				d.onInvalid(ctx, dep)
			}
		}

		// heights above the cursor are processed by the normal path next
		if h <= cursor && d.replay != nil {
			if err := d.replay(ctx, h); err != nil {
				d.log.Error("replay failed", "block", h, "error", err)
				continue
			}
			result.Replayed++
		}
	}

	result.Duration = time.Since(start)
	if len(result.Invalidated) > 0 {
		d.log.Info("reorg check invalidated deposits",
			"from", from, "to", to, "invalidated", len(result.Invalidated))
	}
	return result, nil
}

// isCanonical reports whether the node still has the deposit's transaction
// mined at the stored height.
func (d *Detector) isCanonical(ctx context.Context, dep *domain.Deposit) (bool, error) {
	tx, err := d.reader.TransactionByHash(ctx, dep.Hash)
	if errors.Is(err, chain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if tx.Pending {
		return false, nil
	}
	return tx.BlockNumber == dep.BlockNumber, nil
}
