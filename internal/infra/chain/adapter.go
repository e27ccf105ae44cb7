package chain

import (
	"context"
	"errors"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

var (
	// ErrNotFound is returned when the node has no record of a block or transaction.
	ErrNotFound = errors.New("not found")
)

// Reader is the read-only view of the chain the tracker needs.
type Reader interface {
	// LatestBlockNumber returns the current chain height.
	LatestBlockNumber(ctx context.Context) (uint64, error)

	// BlockByNumber fetches a block with full transaction objects.
	// Returns ErrNotFound for heights the node does not have yet.
	BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error)

	// TransactionByHash looks up a transaction. Returns ErrNotFound when the
	// node does not know it. Pending transactions come back with Pending set.
	TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error)
}
