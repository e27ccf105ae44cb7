package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

const failedBlockTTL = 24 * time.Hour

// FailedBlockRepo implements FailedBlockRepository using Redis.
// Entries live in a sorted set scored by retry count with the payload stored
// under a per-id key.
type FailedBlockRepo struct {
	rdb    *redis.Client
	prefix string
}

// NewFailedBlockRepo creates a new Redis-backed failed block repository.
func NewFailedBlockRepo(client *Client, prefix string) *FailedBlockRepo {
	if prefix == "" {
		prefix = "deposit-watcher"
	}
	return &FailedBlockRepo{
		rdb:    client.rdb,
		prefix: prefix,
	}
}

func (r *FailedBlockRepo) queueKey() string {
	return fmt.Sprintf("%s:failed_blocks", r.prefix)
}

func (r *FailedBlockRepo) blockKey(id string) string {
	return fmt.Sprintf("%s:failed_block:%s", r.prefix, id)
}

// Add adds a failed block to the queue.
func (r *FailedBlockRepo) Add(ctx context.Context, fb *domain.FailedBlock) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to marshal failed block: %w", err)
	}

	if err := r.rdb.Set(ctx, r.blockKey(fb.ID), data, failedBlockTTL).Err(); err != nil {
		return fmt.Errorf("failed to set failed block: %w", err)
	}

	// lower score = retried first
	if err := r.rdb.ZAdd(ctx, r.queueKey(), redis.Z{
		Score:  float64(fb.RetryCount),
		Member: fb.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	return nil
}

// GetNext retrieves the failed block with the lowest retry count.
func (r *FailedBlockRepo) GetNext(ctx context.Context) (*domain.FailedBlock, error) {
	for {
		results, err := r.rdb.ZRange(ctx, r.queueKey(), 0, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("zrange failed: %w", err)
		}
		if len(results) == 0 {
			return nil, nil
		}

		id := results[0]
		fb, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if fb != nil {
			return fb, nil
		}

		// payload expired, drop the dangling id and look again
		if err := r.rdb.ZRem(ctx, r.queueKey(), id).Err(); err != nil {
			return nil, fmt.Errorf("zrem failed: %w", err)
		}
	}
}

// IncrementRetry increments retry count and updates last attempt.
func (r *FailedBlockRepo) IncrementRetry(ctx context.Context, id string, errMsg string) error {
	fb, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if fb == nil {
		return fmt.Errorf("failed block %s not found", id)
	}

	fb.RetryCount++
	fb.Error = errMsg
	fb.LastAttempt = time.Now().Unix()

	return r.Add(ctx, fb)
}

// MarkResolved removes a failed block (successfully retried).
func (r *FailedBlockRepo) MarkResolved(ctx context.Context, id string) error {
	if err := r.rdb.ZRem(ctx, r.queueKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	if err := r.rdb.Del(ctx, r.blockKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete failed block: %w", err)
	}
	return nil
}

// Count returns the count of failed blocks.
func (r *FailedBlockRepo) Count(ctx context.Context) (int, error) {
	count, err := r.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

func (r *FailedBlockRepo) load(ctx context.Context, id string) (*domain.FailedBlock, error) {
	data, err := r.rdb.Get(ctx, r.blockKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed block: %w", err)
	}

	var fb domain.FailedBlock
	if err := json.Unmarshal(data, &fb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failed block: %w", err)
	}
	return &fb, nil
}
