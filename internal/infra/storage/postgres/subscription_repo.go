package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

// SubscriptionRepo implements storage.SubscriptionRepository using PostgreSQL.
type SubscriptionRepo struct {
	db *DB
}

// NewSubscriptionRepo creates a new PostgreSQL subscription repository.
func NewSubscriptionRepo(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// Add subscribes a recipient; re-subscribing refreshes subscribed_at.
func (r *SubscriptionRepo) Add(ctx context.Context, recipientID string) (bool, error) {
	query := `
		INSERT INTO subscriptions (recipient_id, subscribed_at)
		VALUES ($1, NOW())
		ON CONFLICT (recipient_id) DO UPDATE SET subscribed_at = NOW()
		RETURNING (xmax = 0) AS created
	`
	var created bool
	if err := r.db.GetContext(ctx, &created, query, recipientID); err != nil {
		return false, fmt.Errorf("failed to add subscription %s: %w", recipientID, err)
	}
	return created, nil
}

// Remove deletes a subscription.
func (r *SubscriptionRepo) Remove(ctx context.Context, recipientID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE recipient_id = $1`, recipientID)
	if err != nil {
		return false, fmt.Errorf("failed to remove subscription %s: %w", recipientID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns all subscriptions, oldest first.
func (r *SubscriptionRepo) List(ctx context.Context) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	query := `SELECT recipient_id, subscribed_at FROM subscriptions ORDER BY subscribed_at`
	if err := r.db.SelectContext(ctx, &subs, query); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
