package storage

import (
	"context"
	"errors"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

// ErrStorage marks failures of the backing store when callers need to tell
// them apart from chain errors.
var ErrStorage = errors.New("storage error")

// UpsertResult describes what an upsert did to the stored row.
type UpsertResult struct {
	// Created is true when no row existed for the hash.
	Created bool
	// Revalidated is true when an invalid row was flipped back to valid.
	Revalidated bool
}

// DepositRepository handles deposit storage operations
type DepositRepository interface {
	// Upsert inserts a deposit or refreshes block number, timestamp, fee and
	// pubkey of the existing row with the same hash. Status is set to valid.
	Upsert(ctx context.Context, deposit *domain.Deposit) (UpsertResult, error)

	// MarkInvalid flags a deposit as no longer canonical.
	MarkInvalid(ctx context.Context, hash string) error

	// GetByHeight returns all deposits recorded at a block height, any status.
	GetByHeight(ctx context.Context, blockNumber uint64) ([]*domain.Deposit, error)

	// GetByHash returns nil, nil when the hash is unknown.
	GetByHash(ctx context.Context, hash string) (*domain.Deposit, error)

	// CountByStatus returns row counts grouped by status.
	CountByStatus(ctx context.Context) (map[domain.DepositStatus]int, error)
}

// ProcessedBlockRepository records heights whose processing completed.
type ProcessedBlockRepository interface {
	// Upsert is idempotent; it refreshes the processed timestamp.
	Upsert(ctx context.Context, blockNumber uint64) error

	// Latest returns the highest processed height, ok=false when none.
	Latest(ctx context.Context) (blockNumber uint64, ok bool, err error)
}

// SubscriptionRepository handles notification recipients.
type SubscriptionRepository interface {
	// Add is idempotent; created reports whether the recipient is new.
	Add(ctx context.Context, recipientID string) (created bool, err error)

	// Remove reports whether a subscription existed.
	Remove(ctx context.Context, recipientID string) (removed bool, err error)

	List(ctx context.Context) ([]*domain.Subscription, error)
}

// FailedBlockRepository handles failed blocks queue
type FailedBlockRepository interface {
	// Add adds a failed block
	Add(ctx context.Context, failedBlock *domain.FailedBlock) error

	// GetNext retrieves the next failed block to retry, nil when empty
	GetNext(ctx context.Context) (*domain.FailedBlock, error)

	// IncrementRetry increments retry count and records the latest error
	IncrementRetry(ctx context.Context, id string, errMsg string) error

	// MarkResolved removes a failed block (successfully retried)
	MarkResolved(ctx context.Context, id string) error

	// Count returns the count of failed blocks
	Count(ctx context.Context) (int, error)
}
