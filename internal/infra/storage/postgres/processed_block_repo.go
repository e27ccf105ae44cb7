package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// ProcessedBlockRepo implements storage.ProcessedBlockRepository using PostgreSQL.
type ProcessedBlockRepo struct {
	db *DB
}

// NewProcessedBlockRepo creates a new PostgreSQL processed block repository.
func NewProcessedBlockRepo(db *DB) *ProcessedBlockRepo {
	return &ProcessedBlockRepo{db: db}
}

// Upsert records a processed height or touches its timestamp.
func (r *ProcessedBlockRepo) Upsert(ctx context.Context, blockNumber uint64) error {
	query := `
		INSERT INTO processed_blocks (block_number, processed_at)
		VALUES ($1, NOW())
		ON CONFLICT (block_number) DO UPDATE SET processed_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, blockNumber); err != nil {
		return fmt.Errorf("failed to save processed block %d: %w", blockNumber, err)
	}
	return nil
}

// Latest returns the highest processed height.
func (r *ProcessedBlockRepo) Latest(ctx context.Context) (uint64, bool, error) {
	var latest sql.NullInt64
	if err := r.db.GetContext(ctx, &latest, `SELECT MAX(block_number) FROM processed_blocks`); err != nil {
		return 0, false, fmt.Errorf("failed to get latest processed block: %w", err)
	}
	if !latest.Valid {
		return 0, false, nil
	}
	return uint64(latest.Int64), true, nil
}
