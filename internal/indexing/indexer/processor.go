package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/deposit-watcher/internal/core/cursor"
	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/indexing/decoder"
	"github.com/vietddude/deposit-watcher/internal/indexing/emitter"
	"github.com/vietddude/deposit-watcher/internal/indexing/filter"
	"github.com/vietddude/deposit-watcher/internal/indexing/metrics"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// ProcessorConfig wires the block processor.
type ProcessorConfig struct {
	Reader   chain.Reader
	Filter   filter.Filter
	Deposits storage.DepositRepository
	Cursor   *cursor.Tracker

	// Emitter is optional; nil disables notifications
	Emitter emitter.Emitter

	// SuppressReplays skips events for upserts that only confirm a stored valid row
	SuppressReplays bool
}

// BlockResult summarizes one processed block.
type BlockResult struct {
	Number       uint64
	Hash         string
	Transactions int
	Matched      int
	Created      int
	Revalidated  int
	Replayed     int
	DecodeErrors int
	Failed       int
}

// Processor turns one block into deposit rows.
type Processor struct {
	cfg ProcessorConfig
	log *slog.Logger
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		cfg: cfg,
		log: slog.Default().With("component", "processor"),
	}
}

// ProcessBlock fetches block height, stores a deposit for every transaction
// sent to a tracked contract and marks the height processed. Failures of
// single transactions are logged and skipped; the returned error is for
// failures that affect the whole block.
func (p *Processor) ProcessBlock(ctx context.Context, height uint64) (*BlockResult, error) {
	block, err := p.cfg.Reader.BlockByNumber(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("fetch block %d: %w", height, err)
	}

	result := &BlockResult{
		Number:       block.Number,
		Hash:         block.Hash,
		Transactions: len(block.Transactions),
	}

	for _, tx := range block.Transactions {
		if !filter.Qualifies(p.cfg.Filter, tx) {
			continue
		}
		result.Matched++

		if err := p.processTransaction(ctx, block, tx, result); err != nil {
			result.Failed++
			p.log.Error("error processing transaction",
				"block", height,
				"hash", tx.Hash,
				"error", err,
			)
		}
	}

	if err := p.cfg.Cursor.Advance(ctx, height); err != nil {
		return result, err
	}

	if result.Matched > 0 {
		p.log.Info("processed block",
			"block", height,
			"deposits", result.Matched,
			"created", result.Created,
			"failed", result.Failed,
		)
	} else {
		p.log.Debug("processed block", "block", height, "txs", result.Transactions)
	}
	return result, nil
}

// Replay re-runs ProcessBlock, discarding the summary.
func (p *Processor) Replay(ctx context.Context, height uint64) error {
	_, err := p.ProcessBlock(ctx, height)
	if err == nil {
		metrics.BlocksProcessed.WithLabelValues("replayed").Inc()
	}
	return err
}

func (p *Processor) processTransaction(
	ctx context.Context,
	block *domain.Block,
	tx *domain.Transaction,
	result *BlockResult,
) error {
	deposit := &domain.Deposit{
		Hash:           tx.Hash,
		BlockNumber:    block.Number,
		BlockTimestamp: block.Timestamp,
		Fee:            tx.Fee().String(),
		Status:         domain.DepositStatusValid,
	}

	pubkey, err := decoder.DecodePubkey(tx.Input)
	if err != nil {
		result.DecodeErrors++
		p.log.Warn("error decoding pubkey", "block", block.Number, "hash", tx.Hash, "error", err)
	} else {
		deposit.Pubkey = pubkey
	}

	upsert, err := p.cfg.Deposits.Upsert(ctx, deposit)
	if err != nil {
		return fmt.Errorf("save deposit: %w", err)
	}

	eventType := domain.EventTypeDepositReplayed
	switch {
	case upsert.Created:
		eventType = domain.EventTypeDepositCreated
		result.Created++
	case upsert.Revalidated:
		eventType = domain.EventTypeDepositRevalidated
		result.Revalidated++
		p.log.Info("deposit revalidated", "block", block.Number, "hash", tx.Hash)
	default:
		result.Replayed++
	}
	metrics.DepositsStored.WithLabelValues(string(eventType)).Inc()
	p.log.Debug("saved deposit", "hash", tx.Hash, "event", eventType)

	if p.cfg.Emitter == nil {
		return nil
	}
	if eventType == domain.EventTypeDepositReplayed && p.cfg.SuppressReplays {
		return nil
	}
	if err := p.cfg.Emitter.Emit(ctx, domain.NewDepositEvent(eventType, deposit)); err != nil {
		// dropped notifications never fail the transaction
		p.log.Warn("failed to queue notification", "hash", tx.Hash, "error", err)
	}
	return nil
}
