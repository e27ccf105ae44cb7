package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

// FailedBlockRepo implements storage.FailedBlockRepository using PostgreSQL.
type FailedBlockRepo struct {
	db *DB
}

// NewFailedBlockRepo creates a new PostgreSQL failed block repository.
func NewFailedBlockRepo(db *DB) *FailedBlockRepo {
	return &FailedBlockRepo{db: db}
}

type failedBlockRow struct {
	ID          string    `db:"id"`
	BlockNumber uint64    `db:"block_number"`
	FailureType string    `db:"failure_type"`
	ErrorMsg    string    `db:"error_msg"`
	RetryCount  int       `db:"retry_count"`
	LastAttempt time.Time `db:"last_attempt"`
	CreatedAt   time.Time `db:"created_at"`
	Status      string    `db:"status"`
}

func (row failedBlockRow) toDomain() *domain.FailedBlock {
	return &domain.FailedBlock{
		ID:          row.ID,
		BlockNumber: row.BlockNumber,
		FailureType: domain.FailureType(row.FailureType),
		Error:       row.ErrorMsg,
		RetryCount:  row.RetryCount,
		LastAttempt: row.LastAttempt.Unix(),
		CreatedAt:   row.CreatedAt.Unix(),
		Status:      domain.FailedBlockStatus(row.Status),
	}
}

// Add adds a failed block.
func (r *FailedBlockRepo) Add(ctx context.Context, fb *domain.FailedBlock) error {
	query := `
		INSERT INTO failed_blocks (id, block_number, failure_type, error_msg, retry_count, status, last_attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	status := string(fb.Status)
	if status == "" {
		status = string(domain.FailedBlockStatusPending)
	}

	_, err := r.db.ExecContext(ctx, query,
		fb.ID, fb.BlockNumber, string(fb.FailureType), fb.Error, fb.RetryCount, status,
	)
	if err != nil {
		return fmt.Errorf("failed to add failed block: %w", err)
	}
	return nil
}

// GetNext returns the pending failed block with the fewest retries.
func (r *FailedBlockRepo) GetNext(ctx context.Context) (*domain.FailedBlock, error) {
	query := `
		SELECT id, block_number, failure_type, error_msg, retry_count, last_attempt, created_at, status
		FROM failed_blocks
		WHERE status = 'pending'
		ORDER BY retry_count ASC, created_at ASC
		LIMIT 1
	`

	var row failedBlockRow
	err := r.db.GetContext(ctx, &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed block: %w", err)
	}
	return row.toDomain(), nil
}

// IncrementRetry increments retry count and updates timestamp.
func (r *FailedBlockRepo) IncrementRetry(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE failed_blocks
		SET retry_count = retry_count + 1, error_msg = $2, last_attempt = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, errMsg); err != nil {
		return fmt.Errorf("failed to increment retry: %w", err)
	}
	return nil
}

// MarkResolved marks a failed block as resolved.
func (r *FailedBlockRepo) MarkResolved(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE failed_blocks SET status = 'resolved' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to resolve failed block: %w", err)
	}
	return nil
}

// Count returns the number of pending failed blocks.
func (r *FailedBlockRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failed_blocks WHERE status = 'pending'`); err != nil {
		return 0, fmt.Errorf("failed to count failed blocks: %w", err)
	}
	return count, nil
}
