package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

func TestDepositRepo_UpsertIsIdempotent(t *testing.T) {
	repo := NewDepositRepo(NewMemoryStorage())
	ctx := context.Background()

	d := &domain.Deposit{Hash: "0xaa", BlockNumber: 10, BlockTimestamp: 100, Fee: "1", Pubkey: "0x01"}
	res, err := repo.Upsert(ctx, d)
	require.NoError(t, err)
	assert.True(t, res.Created)

	d2 := &domain.Deposit{Hash: "0xaa", BlockNumber: 11, BlockTimestamp: 110, Fee: "2"}
	res, err = repo.Upsert(ctx, d2)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.Revalidated)

	got, err := repo.GetByHash(ctx, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), got.BlockNumber)
	assert.Equal(t, "2", got.Fee)
	assert.Empty(t, got.Pubkey)
	assert.Equal(t, domain.DepositStatusValid, got.Status)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.DepositStatusValid])
}

func TestDepositRepo_MarkInvalidThenRevalidate(t *testing.T) {
	repo := NewDepositRepo(NewMemoryStorage())
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &domain.Deposit{Hash: "0xbb", BlockNumber: 5})
	require.NoError(t, err)
	require.NoError(t, repo.MarkInvalid(ctx, "0xbb"))

	got, _ := repo.GetByHash(ctx, "0xbb")
	assert.Equal(t, domain.DepositStatusInvalid, got.Status)

	// invalid rows are still visible by height
	rows, err := repo.GetByHeight(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	res, err := repo.Upsert(ctx, &domain.Deposit{Hash: "0xbb", BlockNumber: 6})
	require.NoError(t, err)
	assert.True(t, res.Revalidated)

	got, _ = repo.GetByHash(ctx, "0xbb")
	assert.Equal(t, domain.DepositStatusValid, got.Status)
	assert.Equal(t, uint64(6), got.BlockNumber)

	assert.Error(t, repo.MarkInvalid(ctx, "0xmissing"))
}

func TestProcessedBlockRepo_Latest(t *testing.T) {
	repo := NewProcessedBlockRepo(NewMemoryStorage())
	ctx := context.Background()

	_, ok, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, h := range []uint64{7, 9, 8, 9} {
		require.NoError(t, repo.Upsert(ctx, h))
	}
	latest, ok, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), latest)
}

func TestSubscriptionRepo(t *testing.T) {
	repo := NewSubscriptionRepo(NewMemoryStorage())
	ctx := context.Background()

	created, err := repo.Add(ctx, "42")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Add(ctx, "42")
	require.NoError(t, err)
	assert.False(t, created)

	subs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "42", subs[0].RecipientID)

	removed, err := repo.Remove(ctx, "42")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Remove(ctx, "42")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFailedRepo_Queue(t *testing.T) {
	repo := NewFailedRepo(NewMemoryStorage())
	ctx := context.Background()

	next, err := repo.GetNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	require.NoError(t, repo.Add(ctx, &domain.FailedBlock{ID: "a", BlockNumber: 1}))
	require.NoError(t, repo.Add(ctx, &domain.FailedBlock{ID: "b", BlockNumber: 2}))
	require.NoError(t, repo.IncrementRetry(ctx, "a", "boom"))

	next, err = repo.GetNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", next.ID)

	require.NoError(t, repo.MarkResolved(ctx, "b"))
	n, _ := repo.Count(ctx)
	assert.Equal(t, 1, n)
}
