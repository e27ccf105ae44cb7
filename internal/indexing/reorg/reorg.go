// Package reorg re-validates recently stored deposits against the chain.
//
// # Design: Bounded Re-validation
//
// The watcher trusts the RPC node's current view instead of tracking fork
// choice locally. Each poll cycle re-checks a fixed window behind the tip:
//   - Load deposits stored at each height in the window
//   - Look each transaction up by hash
//   - If it is gone, still pending, or now in another block, mark it invalid
//   - Replay the height so the upsert confirms or corrects what is stored
//
// Reorgs deeper than the window are assumed not to happen.
//
// # Usage
//
//	detector := reorg.NewDetector(reorg.Config{CheckDepth: 10}, reader, depositRepo, processor.Replay)
//	result, err := detector.Check(ctx, tip, cursor)
package reorg

import (
	"context"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/infra/chain"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// DefaultCheckDepth is how many blocks behind the tip are re-validated.
const DefaultCheckDepth = 10

// ReplayFunc re-runs block processing for a height.
type ReplayFunc func(ctx context.Context, height uint64) error

// InvalidateFunc is notified for every deposit marked invalid.
type InvalidateFunc func(ctx context.Context, deposit *domain.Deposit)

// Config holds configuration for reorg detection.
type Config struct {
	CheckDepth uint64 // blocks behind tip to re-validate (default: 10)
}

// NewDetector creates a new reorg detector. replay may be nil.
func NewDetector(
	config Config,
	reader chain.Reader,
	deposits storage.DepositRepository,
	replay ReplayFunc,
) *Detector {
	if config.CheckDepth == 0 {
		config.CheckDepth = DefaultCheckDepth
	}
	return newDetector(config, reader, deposits, replay)
}
