package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// MemoryStorage backs all repositories when no database is configured.
type MemoryStorage struct {
	deposits      map[string]*domain.Deposit
	processed     map[uint64]time.Time
	subscriptions map[string]*domain.Subscription
	failed        []*domain.FailedBlock
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		deposits:      make(map[string]*domain.Deposit),
		processed:     make(map[uint64]time.Time),
		subscriptions: make(map[string]*domain.Subscription),
	}
}

// -----------------------------------------------------------------------------
// Deposit Repository
// -----------------------------------------------------------------------------

type DepositRepo struct {
	store *MemoryStorage
}

func NewDepositRepo(store *MemoryStorage) *DepositRepo {
	return &DepositRepo{store: store}
}

func (r *DepositRepo) Upsert(ctx context.Context, d *domain.Deposit) (storage.UpsertResult, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.store.deposits[d.Hash]
	if !ok {
		row := *d
		row.Status = domain.DepositStatusValid
		row.CreatedAt = now
		row.UpdatedAt = now
		r.store.deposits[d.Hash] = &row
		return storage.UpsertResult{Created: true}, nil
	}

	res := storage.UpsertResult{Revalidated: existing.Status == domain.DepositStatusInvalid}
	existing.BlockNumber = d.BlockNumber
	existing.BlockTimestamp = d.BlockTimestamp
	existing.Fee = d.Fee
	existing.Pubkey = d.Pubkey
	existing.Status = domain.DepositStatusValid
	existing.UpdatedAt = now
	return res, nil
}

func (r *DepositRepo) MarkInvalid(ctx context.Context, hash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.deposits[hash]
	if !ok {
		return fmt.Errorf("deposit %s not found", hash)
	}
	d.Status = domain.DepositStatusInvalid
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *DepositRepo) GetByHeight(ctx context.Context, blockNumber uint64) ([]*domain.Deposit, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Deposit
	for _, d := range r.store.deposits {
		if d.BlockNumber == blockNumber {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}

func (r *DepositRepo) GetByHash(ctx context.Context, hash string) (*domain.Deposit, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.deposits[hash]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (r *DepositRepo) CountByStatus(ctx context.Context) (map[domain.DepositStatus]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.DepositStatus]int)
	for _, d := range r.store.deposits {
		counts[d.Status]++
	}
	return counts, nil
}

// -----------------------------------------------------------------------------
// Processed Block Repository
// -----------------------------------------------------------------------------

type ProcessedBlockRepo struct {
	store *MemoryStorage
}

func NewProcessedBlockRepo(store *MemoryStorage) *ProcessedBlockRepo {
	return &ProcessedBlockRepo{store: store}
}

func (r *ProcessedBlockRepo) Upsert(ctx context.Context, blockNumber uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.processed[blockNumber] = time.Now().UTC()
	return nil
}

func (r *ProcessedBlockRepo) Latest(ctx context.Context) (uint64, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if len(r.store.processed) == 0 {
		return 0, false, nil
	}
	var max uint64
	for n := range r.store.processed {
		if n > max {
			max = n
		}
	}
	return max, true, nil
}

// -----------------------------------------------------------------------------
// Subscription Repository
// -----------------------------------------------------------------------------

type SubscriptionRepo struct {
	store *MemoryStorage
}

func NewSubscriptionRepo(store *MemoryStorage) *SubscriptionRepo {
	return &SubscriptionRepo{store: store}
}

func (r *SubscriptionRepo) Add(ctx context.Context, recipientID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now().UTC()
	if s, ok := r.store.subscriptions[recipientID]; ok {
		s.SubscribedAt = now
		return false, nil
	}
	r.store.subscriptions[recipientID] = &domain.Subscription{RecipientID: recipientID, SubscribedAt: now}
	return true, nil
}

func (r *SubscriptionRepo) Remove(ctx context.Context, recipientID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.subscriptions[recipientID]
	delete(r.store.subscriptions, recipientID)
	return ok, nil
}

func (r *SubscriptionRepo) List(ctx context.Context) ([]*domain.Subscription, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Subscription, 0, len(r.store.subscriptions))
	for _, s := range r.store.subscriptions {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscribedAt.Before(out[j].SubscribedAt) })
	return out, nil
}

// -----------------------------------------------------------------------------
// Failed Block Repository
// -----------------------------------------------------------------------------

type FailedRepo struct {
	store *MemoryStorage
}

func NewFailedRepo(s *MemoryStorage) *FailedRepo { return &FailedRepo{store: s} }

func (r *FailedRepo) Add(ctx context.Context, f *domain.FailedBlock) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *f
	r.store.failed = append(r.store.failed, &c)
	return nil
}

// GetNext returns the pending entry with the fewest retries, oldest first.
func (r *FailedRepo) GetNext(ctx context.Context) (*domain.FailedBlock, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var next *domain.FailedBlock
	for _, f := range r.store.failed {
		if next == nil || f.RetryCount < next.RetryCount {
			next = f
		}
	}
	if next == nil {
		return nil, nil
	}
	c := *next
	return &c, nil
}

func (r *FailedRepo) IncrementRetry(ctx context.Context, id string, errMsg string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, f := range r.store.failed {
		if f.ID == id {
			f.RetryCount++
			f.Error = errMsg
			f.LastAttempt = time.Now().Unix()
			return nil
		}
	}
	return fmt.Errorf("failed block %s not found", id)
}

func (r *FailedRepo) MarkResolved(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.failed[:0]
	for _, f := range r.store.failed {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	r.store.failed = kept
	return nil
}

func (r *FailedRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.failed), nil
}
