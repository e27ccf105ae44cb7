package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/infra/storage"
)

// DepositRepo implements storage.DepositRepository using PostgreSQL.
type DepositRepo struct {
	db *DB
}

// NewDepositRepo creates a new PostgreSQL deposit repository.
func NewDepositRepo(db *DB) *DepositRepo {
	return &DepositRepo{db: db}
}

const depositColumns = `hash, block_number, block_timestamp, fee::text AS fee,
	COALESCE(pubkey, '') AS pubkey, status, created_at, updated_at`

// Upsert inserts or refreshes a deposit keyed by hash.
// prev captures the row as it was before the statement so the caller can tell
// a fresh insert from a revalidation.
func (r *DepositRepo) Upsert(ctx context.Context, d *domain.Deposit) (storage.UpsertResult, error) {
	query := `
		WITH prev AS (SELECT status FROM deposits WHERE hash = $1)
		INSERT INTO deposits (hash, block_number, block_timestamp, fee, pubkey, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), 'valid', NOW(), NOW())
		ON CONFLICT (hash) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			block_timestamp = EXCLUDED.block_timestamp,
			fee = EXCLUDED.fee,
			pubkey = EXCLUDED.pubkey,
			status = 'valid',
			updated_at = NOW()
		RETURNING COALESCE((SELECT status FROM prev), '') AS prev_status
	`

	fee := d.Fee
	if fee == "" {
		fee = "0"
	}

	var prevStatus string
	err := r.db.GetContext(ctx, &prevStatus, query,
		d.Hash, d.BlockNumber, d.BlockTimestamp, fee, d.Pubkey,
	)
	if err != nil {
		return storage.UpsertResult{}, fmt.Errorf("failed to upsert deposit %s: %w", d.Hash, err)
	}

	return storage.UpsertResult{
		Created:     prevStatus == "",
		Revalidated: prevStatus == string(domain.DepositStatusInvalid),
	}, nil
}

// MarkInvalid flags a deposit as invalid.
func (r *DepositRepo) MarkInvalid(ctx context.Context, hash string) error {
	query := `
		UPDATE deposits
		SET status = 'invalid', updated_at = NOW()
		WHERE hash = $1
	`
	res, err := r.db.ExecContext(ctx, query, hash)
	if err != nil {
		return fmt.Errorf("failed to invalidate deposit %s: %w", hash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deposit %s not found", hash)
	}
	return nil
}

// GetByHeight returns all deposits at a block height regardless of status.
func (r *DepositRepo) GetByHeight(ctx context.Context, blockNumber uint64) ([]*domain.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE block_number = $1 ORDER BY hash`

	var rows []*domain.Deposit
	if err := r.db.SelectContext(ctx, &rows, query, blockNumber); err != nil {
		return nil, fmt.Errorf("failed to get deposits at %d: %w", blockNumber, err)
	}
	return rows, nil
}

// GetByHash retrieves a deposit by transaction hash.
func (r *DepositRepo) GetByHash(ctx context.Context, hash string) (*domain.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE hash = $1`

	var d domain.Deposit
	err := r.db.GetContext(ctx, &d, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %s: %w", hash, err)
	}
	return &d, nil
}

// CountByStatus returns deposit counts grouped by status.
func (r *DepositRepo) CountByStatus(ctx context.Context) (map[domain.DepositStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM deposits GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count deposits: %w", err)
	}

	counts := make(map[domain.DepositStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.DepositStatus(row.Status)] = row.Count
	}
	return counts, nil
}
